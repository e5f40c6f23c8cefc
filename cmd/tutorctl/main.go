package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiotutor/audiotutor/internal/config"
	"github.com/audiotutor/audiotutor/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var limit int

	root := &cobra.Command{
		Use:           "tutorctl",
		Short:         "Inspect saved tutoring conversations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().IntVar(&limit, "limit", 20, "maximum records to show")

	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List recent conversations with aggregate stats",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
					stats, err := s.Stats(ctx)
					if err != nil {
						return err
					}
					recs, err := s.ListRecent(ctx, limit)
					if err != nil {
						return err
					}
					fmt.Printf("%d conversations, %d users\n\n", stats.TotalConversations, stats.UniqueUsers)
					for _, rec := range recs {
						printSummary(rec)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "detail <id>",
			Short: "Show one conversation with its transcript and report",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", args[0])
				}
				return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
					rec, err := s.GetByID(ctx, id)
					if err != nil {
						return err
					}
					printDetail(rec)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "user <user_id>",
			Short: "List one user's conversations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
					recs, err := s.ListByUser(ctx, args[0], limit)
					if err != nil {
						return err
					}
					if len(recs) == 0 {
						fmt.Printf("no conversations for user %s\n", args[0])
						return nil
					}
					for _, rec := range recs {
						printSummary(rec)
					}
					return nil
				})
			},
		},
	)
	return root
}

func withStore(ctx context.Context, fn func(context.Context, store.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func printSummary(rec store.ConversationRecord) {
	analyzed := " "
	if rec.AnalysisReport != "" {
		analyzed = "*"
	}
	fmt.Printf("%5d %s user=%-12s %-10s %s\n",
		rec.ID, analyzed, rec.UserID, rec.Language, rec.StartTime.Local().Format("2006-01-02 15:04"))
}

func printDetail(rec store.ConversationRecord) {
	fmt.Printf("conversation %d\n", rec.ID)
	fmt.Printf("user:     %s\n", rec.UserID)
	fmt.Printf("language: %s\n", rec.Language)
	fmt.Printf("started:  %s\n", rec.StartTime.Local().Format(time.RFC1123))
	fmt.Printf("ended:    %s\n", rec.EndTime.Local().Format(time.RFC1123))
	fmt.Printf("\n%s\n", rec.Transcript)
	if rec.AnalysisReport != "" {
		fmt.Printf("\nanalysis report:\n%s\n", rec.AnalysisReport)
	}
}
