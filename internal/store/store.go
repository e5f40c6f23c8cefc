package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a conversation record does not exist.
var ErrNotFound = errors.New("conversation not found")

// ConversationRecord is one finished tutoring session.
type ConversationRecord struct {
	ID             int64
	UserID         string
	Language       string
	StartTime      time.Time
	EndTime        time.Time
	Transcript     string
	AnalysisReport string
	CreatedAt      time.Time
}

// Stats summarizes the conversation history table.
type Stats struct {
	TotalConversations int64
	UniqueUsers        int64
}

// PostgresStore persists conversation records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation_history (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			language TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			transcript TEXT NOT NULL,
			analysis_report TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_history_user_created ON conversation_history (user_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// Save inserts a finished session and returns its assigned ID. Each
// session is saved exactly once; the controller only calls Save after
// the session reaches its terminal state.
func (s *PostgresStore) Save(ctx context.Context, rec ConversationRecord) (int64, error) {
	if rec.UserID == "" {
		return 0, fmt.Errorf("conversation record missing user_id")
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversation_history (user_id, language, start_time, end_time, transcript, analysis_report)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		rec.UserID,
		rec.Language,
		rec.StartTime,
		rec.EndTime,
		rec.Transcript,
		rec.AnalysisReport,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save conversation: %w", err)
	}
	return id, nil
}

// SetAnalysisReport fills in the analysis column after the analyzer runs.
func (s *PostgresStore) SetAnalysisReport(ctx context.Context, id int64, report string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversation_history SET analysis_report=$2 WHERE id=$1`,
		id, report,
	)
	if err != nil {
		return fmt.Errorf("set analysis report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (ConversationRecord, error) {
	var rec ConversationRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, language, start_time, end_time, transcript, COALESCE(analysis_report, ''), created_at
		 FROM conversation_history WHERE id=$1`,
		id,
	).Scan(&rec.ID, &rec.UserID, &rec.Language, &rec.StartTime, &rec.EndTime, &rec.Transcript, &rec.AnalysisReport, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ConversationRecord{}, ErrNotFound
	}
	if err != nil {
		return ConversationRecord{}, fmt.Errorf("get conversation: %w", err)
	}
	return rec, nil
}

// ListByUser returns a user's sessions, newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, language, start_time, end_time, transcript, COALESCE(analysis_report, ''), created_at
		 FROM conversation_history WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return scanRecords(rows)
}

// ListRecent returns the latest sessions across all users.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, language, start_time, end_time, transcript, COALESCE(analysis_report, ''), created_at
		 FROM conversation_history ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return scanRecords(rows)
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT user_id) FROM conversation_history`,
	).Scan(&st.TotalConversations, &st.UniqueUsers)
	if err != nil {
		return Stats{}, fmt.Errorf("conversation stats: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanRecords(rows pgx.Rows) ([]ConversationRecord, error) {
	defer rows.Close()

	var recs []ConversationRecord
	for rows.Next() {
		var rec ConversationRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Language, &rec.StartTime, &rec.EndTime, &rec.Transcript, &rec.AnalysisReport, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}
	return recs, nil
}
