package memory

import (
	"context"
	"time"
)

const (
	RoleUser  = "user"
	RoleTutor = "tutor"
)

// Message is one utterance or reply in a user's running dialogue context.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the keyed DialogueMemory store. Load materializes the working
// context for a user (empty on first use), Append grows it in order, and
// Flush checkpoints it durably; the controller flushes once per turn so a
// restarted process can resume an in-progress session. Writes for one
// user are serialized by the single-active-session rule.
type Store interface {
	Load(ctx context.Context, userID string) ([]Message, error)
	Append(ctx context.Context, userID string, msgs ...Message) error
	Flush(ctx context.Context, userID string) error
	Close() error
}
