package tutor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/audiotutor/audiotutor/internal/memory"
)

type fakeModel struct {
	failures int
	calls    int
	reply    string
	lastSys  string
	lastHist []memory.Message
	err      error
}

func (m *fakeModel) Generate(ctx context.Context, system string, history []memory.Message) (string, error) {
	m.calls++
	m.lastSys = system
	m.lastHist = history
	if m.calls <= m.failures {
		if m.err != nil {
			return "", m.err
		}
		return "", errors.New("upstream unavailable")
	}
	return m.reply, nil
}

func newTestOrchestrator(model Model, mem memory.Store, retryMax int) *Orchestrator {
	return NewOrchestrator(model, mem, time.Second, retryMax, nil, zerolog.Nop())
}

func TestReplyCommitsBothSidesOfTheExchange(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewInMemoryStore()
	model := &fakeModel{reply: "¡Muy bien! ¿Y tú?"}
	o := newTestOrchestrator(model, mem, 2)

	reply, err := o.Reply(ctx, "alice", "Spanish", "Estoy bien, gracias")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply != "¡Muy bien! ¿Y tú?" {
		t.Fatalf("unexpected reply %q", reply)
	}

	msgs, err := mem.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages in memory, got %d", len(msgs))
	}
	if msgs[0].Role != memory.RoleUser || msgs[0].Content != "Estoy bien, gracias" {
		t.Fatalf("unexpected first message %+v", msgs[0])
	}
	if msgs[1].Role != memory.RoleTutor || msgs[1].Content != reply {
		t.Fatalf("unexpected second message %+v", msgs[1])
	}
}

func TestReplyUsesLanguageInSystemPrompt(t *testing.T) {
	mem := memory.NewInMemoryStore()
	model := &fakeModel{reply: "Bonjour !"}
	o := newTestOrchestrator(model, mem, 0)

	if _, err := o.Reply(context.Background(), "alice", "French", "Salut"); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if !strings.Contains(model.lastSys, "French") {
		t.Fatalf("system prompt does not carry the target language: %q", model.lastSys)
	}
	if len(model.lastHist) != 1 || model.lastHist[0].Content != "Salut" {
		t.Fatalf("model did not see the appended utterance: %+v", model.lastHist)
	}
}

func TestReplyRetriesTransientFailures(t *testing.T) {
	mem := memory.NewInMemoryStore()
	model := &fakeModel{failures: 2, reply: "Hallo!"}
	o := newTestOrchestrator(model, mem, 2)

	reply, err := o.Reply(context.Background(), "alice", "German", "Hi")
	if err != nil {
		t.Fatalf("Reply after retries: %v", err)
	}
	if reply != "Hallo!" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if model.calls != 3 {
		t.Fatalf("want 3 model calls, got %d", model.calls)
	}
}

func TestReplyFailsAfterRetryBudget(t *testing.T) {
	mem := memory.NewInMemoryStore()
	model := &fakeModel{failures: 10}
	o := newTestOrchestrator(model, mem, 2)

	if _, err := o.Reply(context.Background(), "alice", "English", "hi"); err == nil {
		t.Fatal("want error once retries are exhausted")
	}
	if model.calls != 3 {
		t.Fatalf("want 3 attempts, got %d", model.calls)
	}

	// The user's utterance stays committed even though no reply landed,
	// so the fallback turn has the full context.
	msgs, err := mem.Load(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != memory.RoleUser {
		t.Fatalf("unexpected memory after failure: %+v", msgs)
	}
}

func TestReplyDoesNotRetryCancellation(t *testing.T) {
	mem := memory.NewInMemoryStore()
	model := &fakeModel{failures: 10, err: context.Canceled}
	o := newTestOrchestrator(model, mem, 2)

	if _, err := o.Reply(context.Background(), "alice", "English", "hi"); err == nil {
		t.Fatal("want error")
	}
	if model.calls != 1 {
		t.Fatalf("cancellation must not be retried, got %d calls", model.calls)
	}
}

func TestGreetingAndFallbackAreCommittedTurns(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewInMemoryStore()
	o := newTestOrchestrator(&fakeModel{}, mem, 0)

	greeting, err := o.Greeting(ctx, "alice", "Japanese")
	if err != nil {
		t.Fatalf("Greeting: %v", err)
	}
	apology, err := o.Fallback(ctx, "alice", "Japanese")
	if err != nil {
		t.Fatalf("Fallback: %v", err)
	}

	msgs, err := mem.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 tutor turns, got %d", len(msgs))
	}
	if msgs[0].Content != greeting || msgs[1].Content != apology {
		t.Fatalf("memory does not match spoken lines: %+v", msgs)
	}
	if msgs[0].Role != memory.RoleTutor || msgs[1].Role != memory.RoleTutor {
		t.Fatal("greeting and apology must be tutor turns")
	}
}

func TestSpokenLinesFallBackToEnglish(t *testing.T) {
	if greetingLine("Klingon") != greetings["English"] {
		t.Fatal("unknown language should greet in English")
	}
	if apologyLine("Klingon") != apologies["English"] {
		t.Fatal("unknown language should apologize in English")
	}
}
