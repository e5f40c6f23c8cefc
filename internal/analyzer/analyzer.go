// Package analyzer produces post-session study reports. It retrieves the
// user's most similar past conversations from the vector index and asks
// the analysis model to categorize recurring mistakes.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/audiotutor/audiotutor/internal/vectorstore"
)

const analysisSystemFormat = `You are a language tutor. You are analyzing your students' work to help them improve their language skills.
Focus on grammar.
Your job is to find the mistakes they make the most often and categorize them precisely.
Use the following pieces of retrieved context to answer the question.
If you don't know the answer, say that you don't know.
Be positive and constructive: point out specific mistakes with examples from their conversations and suggest improvement resources.

%s`

const analysisRequest = `Please analyze the student's conversation data. Provide specific feedback with examples from their conversations, highlight the most frequent mistakes, and suggest improvement resources.`

// TextModel runs a single analysis completion.
type TextModel interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// Searcher retrieves a user's nearest past conversations.
type Searcher interface {
	Search(ctx context.Context, userID, query string, k int) ([]vectorstore.Result, error)
}

type Analyzer struct {
	model    TextModel
	searcher Searcher
	k        int
	log      zerolog.Logger
}

func New(model TextModel, searcher Searcher, k int, log zerolog.Logger) *Analyzer {
	if k <= 0 {
		k = 5
	}
	return &Analyzer{
		model:    model,
		searcher: searcher,
		k:        k,
		log:      log.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze builds a report for the session transcript, grounding it in
// the user's retrieved conversation history. A retrieval failure is not
// fatal; the report is then based on the current session alone.
func (a *Analyzer) Analyze(ctx context.Context, userID, transcript string) (string, error) {
	docs, err := a.searcher.Search(ctx, userID, transcript, a.k)
	if err != nil {
		a.log.Warn().Err(err).Str("user_id", userID).Msg("history retrieval failed, analyzing current session only")
		docs = nil
	}

	system := fmt.Sprintf(analysisSystemFormat, formatContext(userID, docs))
	prompt := analysisRequest + "\n\nCurrent session transcript:\n" + transcript

	report, err := a.model.GenerateText(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("generate analysis report: %w", err)
	}
	return report, nil
}

func formatContext(userID string, docs []vectorstore.Result) string {
	if len(docs) == 0 {
		return fmt.Sprintf("No conversation history found for user %s", userID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Retrieved %d conversations for user %s:\n", len(docs), userID)
	for i, doc := range docs {
		fmt.Fprintf(&b, "\nConversation %d:\n%s\n", i+1, doc.Content)
	}
	return b.String()
}
