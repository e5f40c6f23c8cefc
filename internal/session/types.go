package session

import (
	"time"

	"github.com/google/uuid"
)

type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerTutor Speaker = "tutor"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Turn is one committed utterance. Immutable once appended; indices are
// assigned at commit time so they stay gap-free across retries.
type Turn struct {
	Index     int       `json:"turn_index"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Session is one live tutoring conversation.
type Session struct {
	ID        string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Language  string    `json:"language"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Turns     []Turn    `json:"turns"`
}

func newSession(userID, language string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Language:  language,
		Status:    StatusActive,
		StartedAt: time.Now().UTC(),
	}
}

// commit appends a turn with the next index and returns it.
func (s *Session) commit(speaker Speaker, text string, startedAt time.Time) Turn {
	turn := Turn{
		Index:     len(s.Turns),
		Speaker:   speaker,
		Text:      text,
		StartedAt: startedAt,
		EndedAt:   time.Now().UTC(),
	}
	s.Turns = append(s.Turns, turn)
	return turn
}
