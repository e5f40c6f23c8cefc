package session

import (
	"errors"
	"testing"
)

func TestManagerSingleActiveSessionPerUser(t *testing.T) {
	m := NewManager()

	s1, err := m.Create("alice", "Spanish")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Create("alice", "French"); !errors.Is(err, ErrUserBusy) {
		t.Fatalf("second session for the same user should be rejected, got %v", err)
	}
	if _, err := m.Create("bob", "Spanish"); err != nil {
		t.Fatalf("other users are unaffected: %v", err)
	}

	if err := m.End(s1.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := m.Create("alice", "French"); err != nil {
		t.Fatalf("user slot should free up after End: %v", err)
	}
}

func TestManagerEndIsExactlyOnce(t *testing.T) {
	m := NewManager()
	s, err := m.Create("alice", "German")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.End(s.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := m.End(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ending twice should fail, got %v", err)
	}
	if err := m.End("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ending an unknown session should fail, got %v", err)
	}
}

func TestManagerActiveCount(t *testing.T) {
	m := NewManager()
	if m.ActiveCount() != 0 {
		t.Fatal("empty manager should have no active sessions")
	}

	s1, _ := m.Create("alice", "Italian")
	m.Create("bob", "Italian")
	if got := m.ActiveCount(); got != 2 {
		t.Fatalf("want 2 active, got %d", got)
	}

	m.End(s1.ID)
	if got := m.ActiveCount(); got != 1 {
		t.Fatalf("want 1 active after End, got %d", got)
	}
}

func TestSessionCommitAssignsGapFreeIndices(t *testing.T) {
	s := newSession("alice", "Japanese")
	s.commit(SpeakerTutor, "greeting", s.StartedAt)
	s.commit(SpeakerUser, "hello", s.StartedAt)
	s.commit(SpeakerTutor, "reply", s.StartedAt)

	for i, turn := range s.Turns {
		if turn.Index != i {
			t.Fatalf("turn %d has index %d", i, turn.Index)
		}
	}
}
