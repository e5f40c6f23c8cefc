package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/audiotutor/audiotutor/internal/store"
	"github.com/audiotutor/audiotutor/internal/voice"
)

type listenResult struct {
	text string
	err  error
}

type fakeListener struct {
	mu      sync.Mutex
	results []listenResult
	// drained is returned once the script runs out; zero means silence.
	drained error
}

func (l *fakeListener) Listen(ctx context.Context, _ <-chan []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.results) == 0 {
		if l.drained != nil {
			return "", l.drained
		}
		return "", voice.ErrNoSpeech
	}
	r := l.results[0]
	l.results = l.results[1:]
	return r.text, r.err
}

type fakeTutor struct {
	replyErrs int
	calls     int
}

func (f *fakeTutor) Greeting(_ context.Context, _, language string) (string, error) {
	return "greeting in " + language, nil
}

func (f *fakeTutor) Reply(_ context.Context, _, _, utterance string) (string, error) {
	f.calls++
	if f.calls <= f.replyErrs {
		return "", errors.New("model unavailable")
	}
	return "reply to: " + utterance, nil
}

func (f *fakeTutor) Fallback(_ context.Context, _, _ string) (string, error) {
	return "sorry, could you say that again?", nil
}

type fakeVoice struct {
	spoken []string
}

func (v *fakeVoice) Speak(_ context.Context, _, text string) error {
	v.spoken = append(v.spoken, text)
	return nil
}

// eventLog records the order of persistence-side effects so tests can
// check the index-never-precedes-save law.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

type fakeRecords struct {
	log     *eventLog
	failSav bool
	saved   []store.ConversationRecord
	reports map[int64]string
}

func (r *fakeRecords) Save(_ context.Context, rec store.ConversationRecord) (int64, error) {
	if r.failSav {
		return 0, errors.New("db down")
	}
	r.saved = append(r.saved, rec)
	id := int64(len(r.saved))
	r.log.add(fmt.Sprintf("save:%d", id))
	return id, nil
}

func (r *fakeRecords) SetAnalysisReport(_ context.Context, id int64, report string) error {
	if r.reports == nil {
		r.reports = make(map[int64]string)
	}
	r.reports[id] = report
	r.log.add(fmt.Sprintf("report:%d", id))
	return nil
}

type fakeIndexer struct {
	log  *eventLog
	docs []struct{ userID, content string }
}

func (ix *fakeIndexer) IndexText(_ context.Context, userID, content string) (string, error) {
	ix.docs = append(ix.docs, struct{ userID, content string }{userID, content})
	ix.log.add("index")
	return fmt.Sprintf("doc-%d", len(ix.docs)), nil
}

type fakeAnalyzer struct {
	report string
	err    error
}

func (a *fakeAnalyzer) Analyze(_ context.Context, _, _ string) (string, error) {
	return a.report, a.err
}

type controllerFixture struct {
	manager  *Manager
	tutor    *fakeTutor
	voice    *fakeVoice
	records  *fakeRecords
	indexer  *fakeIndexer
	listener *fakeListener
	ctrl     *Controller
}

func newFixture(results ...listenResult) *controllerFixture {
	log := &eventLog{}
	f := &controllerFixture{
		manager:  NewManager(),
		tutor:    &fakeTutor{},
		voice:    &fakeVoice{},
		records:  &fakeRecords{log: log},
		indexer:  &fakeIndexer{log: log},
		listener: &fakeListener{results: results},
	}
	f.ctrl = NewController(Config{
		Manager:     f.manager,
		Tutor:       f.tutor,
		Voice:       f.voice,
		Records:     f.records,
		Indexer:     f.indexer,
		Analyzer:    &fakeAnalyzer{report: "analysis report"},
		NewListener: func(string) Listener { return f.listener },
		StopKeyword: "stop",
		Log:         zerolog.Nop(),
	})
	return f
}

func TestRunHolaThenStop(t *testing.T) {
	f := newFixture(
		listenResult{text: "Hola, ¿cómo estás?"},
		listenResult{text: "Stop."},
	)

	id, err := f.ctrl.Run(context.Background(), "alice", "Spanish", make(chan []byte))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if id != 1 {
		t.Fatalf("unexpected record id %d", id)
	}

	if len(f.records.saved) != 1 {
		t.Fatalf("want exactly one saved record, got %d", len(f.records.saved))
	}
	rec := f.records.saved[0]

	// Greeting + one user turn + one reply; the stop turn is excluded.
	if got := strings.Count(rec.Transcript, "\n"); got != 3 {
		t.Fatalf("want 3 turn lines in transcript, got %d:\n%s", got, rec.Transcript)
	}
	if strings.Contains(strings.ToLower(rec.Transcript), "stop") {
		t.Fatalf("stop turn must not be persisted:\n%s", rec.Transcript)
	}
	if !strings.Contains(rec.Transcript, "USER: Hola, ¿cómo estás?") {
		t.Fatalf("transcript missing user turn:\n%s", rec.Transcript)
	}
	if !strings.Contains(rec.Transcript, "TUTOR: reply to: Hola, ¿cómo estás?") {
		t.Fatalf("transcript missing tutor reply:\n%s", rec.Transcript)
	}

	if len(f.indexer.docs) == 0 || f.indexer.docs[0].userID != "alice" {
		t.Fatalf("transcript not indexed under user namespace: %+v", f.indexer.docs)
	}
	if f.indexer.docs[0].content != rec.Transcript {
		t.Fatal("first indexed document must be the transcript")
	}
	if f.records.reports[1] != "analysis report" {
		t.Fatalf("analysis report not stored: %+v", f.records.reports)
	}
}

func TestRunTurnsAlternateStartingWithGreeting(t *testing.T) {
	f := newFixture(
		listenResult{text: "Bonjour"},
		listenResult{text: "J'aime le fromage"},
		listenResult{text: "stop"},
	)

	if _, err := f.ctrl.Run(context.Background(), "alice", "French", make(chan []byte)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	transcript := f.records.saved[0].Transcript
	lines := strings.Split(transcript, "\n")[1:]
	if len(lines) != 5 {
		t.Fatalf("want 5 turns, got %d:\n%s", len(lines), transcript)
	}
	if !strings.HasPrefix(lines[0], "TUTOR: ") {
		t.Fatalf("first turn must be the tutor greeting: %q", lines[0])
	}
	for i, line := range lines {
		wantPrefix := "TUTOR: "
		if i%2 == 1 {
			wantPrefix = "USER: "
		}
		if !strings.HasPrefix(line, wantPrefix) {
			t.Fatalf("turn %d = %q, want prefix %q", i, line, wantPrefix)
		}
	}
}

func TestRunStreamDropRecovery(t *testing.T) {
	f := newFixture(
		listenResult{err: voice.ErrStreamInterrupted},
		listenResult{text: "Bonjour"},
		listenResult{text: "stop"},
	)

	if _, err := f.ctrl.Run(context.Background(), "alice", "French", make(chan []byte)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	transcript := f.records.saved[0].Transcript
	if got := strings.Count(transcript, "USER: Bonjour"); got != 1 {
		t.Fatalf("dropped stream must not duplicate turns, got %d:\n%s", got, transcript)
	}
	if got := strings.Count(transcript, "\n"); got != 3 {
		t.Fatalf("want 3 turns with no index gaps, got %d lines:\n%s", got, transcript)
	}
}

func TestRunModelFailureSubstitutesApology(t *testing.T) {
	f := newFixture(
		listenResult{text: "Hello there"},
		listenResult{text: "stop"},
	)
	// Reply fails; the orchestrator's own retries are already exhausted
	// by the time the controller sees the error.
	f.tutor.replyErrs = 1

	id, err := f.ctrl.Run(context.Background(), "alice", "English", make(chan []byte))
	if err != nil {
		t.Fatalf("model failure must not crash the session: %v", err)
	}
	if id == 0 {
		t.Fatal("session should still finalize")
	}

	transcript := f.records.saved[0].Transcript
	if !strings.Contains(transcript, "TUTOR: sorry, could you say that again?") {
		t.Fatalf("apology turn missing:\n%s", transcript)
	}

	spokenApology := false
	for _, line := range f.voice.spoken {
		if line == "sorry, could you say that again?" {
			spokenApology = true
		}
	}
	if !spokenApology {
		t.Fatal("the apology must be spoken, not just recorded")
	}
}

func TestRunIndexNeverPrecedesSave(t *testing.T) {
	f := newFixture(listenResult{text: "stop"})

	if _, err := f.ctrl.Run(context.Background(), "alice", "English", make(chan []byte)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	events := f.records.log.events
	saveAt, indexAt := -1, -1
	for i, e := range events {
		if strings.HasPrefix(e, "save:") && saveAt == -1 {
			saveAt = i
		}
		if e == "index" && indexAt == -1 {
			indexAt = i
		}
	}
	if saveAt == -1 || indexAt == -1 || indexAt < saveAt {
		t.Fatalf("index must follow save, got order %v", events)
	}
}

func TestRunSaveFailureKeepsSessionActive(t *testing.T) {
	f := newFixture(listenResult{text: "stop"})
	f.records.failSav = true

	_, err := f.ctrl.Run(context.Background(), "alice", "English", make(chan []byte))
	if err == nil {
		t.Fatal("save failure must surface as a session-save error")
	}
	if len(f.indexer.docs) != 0 {
		t.Fatal("nothing may be indexed when the record write failed")
	}
	if f.manager.ActiveCount() != 1 {
		t.Fatal("session must stay active for a retry after save failure")
	}
}

func TestRunRejectsConcurrentSessionForUser(t *testing.T) {
	f := newFixture()
	if _, err := f.manager.Create("alice", "English"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := f.ctrl.Run(context.Background(), "alice", "English", make(chan []byte))
	if !errors.Is(err, ErrUserBusy) {
		t.Fatalf("want ErrUserBusy, got %v", err)
	}
}

func TestRunEndsAfterSilenceBudget(t *testing.T) {
	// The fake listener reports no speech once its script runs out, so
	// the session should end after the re-prompt budget.
	f := newFixture()

	if _, err := f.ctrl.Run(context.Background(), "alice", "German", make(chan []byte)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.records.saved) != 1 {
		t.Fatal("silent session should still be saved")
	}
	transcript := f.records.saved[0].Transcript
	if got := strings.Count(transcript, "\n"); got != 1 {
		t.Fatalf("silent session should hold only the greeting, got %d turns", got)
	}
}

func TestRunDeadTranscriptionEndsSession(t *testing.T) {
	// Every Listen fails with a retryable interruption; the session must
	// stop apologizing at some point, end, and still persist what it has.
	f := newFixture()
	f.listener.drained = voice.ErrStreamInterrupted

	if _, err := f.ctrl.Run(context.Background(), "alice", "Italian", make(chan []byte)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.records.saved) != 1 {
		t.Fatalf("want one saved record, got %d", len(f.records.saved))
	}
	if f.manager.ActiveCount() != 0 {
		t.Fatal("session must be ended once transcription is unrecoverable")
	}

	transcript := f.records.saved[0].Transcript
	if !strings.Contains(transcript, "TUTOR: greeting in Italian") {
		t.Fatalf("greeting missing from transcript:\n%s", transcript)
	}
	// One apology per exhausted reconnect budget, capped by the session
	// failure budget. Unbounded apologies would mean the loop never exits.
	apologies := strings.Count(transcript, "TUTOR: sorry, could you say that again?")
	if apologies != 3 {
		t.Fatalf("want 3 apology turns before giving up, got %d:\n%s", apologies, transcript)
	}
}

func TestStopKeywordNormalization(t *testing.T) {
	cases := []struct {
		text string
		stop bool
	}{
		{"stop", true},
		{"Stop.", true},
		{"STOP!", true},
		{"stop talking now", true},
		{"", false},
		{"please stop", false},
		{"stopwatch", false},
	}
	for _, tc := range cases {
		if got := isStopUtterance(tc.text, "stop"); got != tc.stop {
			t.Errorf("isStopUtterance(%q) = %v, want %v", tc.text, got, tc.stop)
		}
	}
}

func TestTranscriptFormat(t *testing.T) {
	s := newSession("alice", "Spanish")
	s.commit(SpeakerTutor, "¡Hola!", s.StartedAt)
	s.commit(SpeakerUser, "Hola", s.StartedAt)

	got := Transcript(s)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("want date line plus 2 turns, got %q", got)
	}
	if lines[0] != s.StartedAt.Format("2006-01-02") {
		t.Fatalf("first line must be the session date, got %q", lines[0])
	}
	if lines[1] != "TUTOR: ¡Hola!" || lines[2] != "USER: Hola" {
		t.Fatalf("unexpected turn lines: %q", got)
	}
}

func TestRunTurnIndicesGapFree(t *testing.T) {
	f := newFixture(
		listenResult{text: "one"},
		listenResult{err: voice.ErrStreamInterrupted},
		listenResult{text: "two"},
		listenResult{text: "stop"},
	)

	if _, err := f.ctrl.Run(context.Background(), "alice", "English", make(chan []byte)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.records.saved) != 1 {
		t.Fatalf("want one record, got %d", len(f.records.saved))
	}
	// Greeting, user, reply, user, reply. The interrupted listen in the
	// middle must not leave an index gap or a duplicate.
	lines := strings.Split(f.records.saved[0].Transcript, "\n")[1:]
	if len(lines) != 5 {
		t.Fatalf("want 5 turns, got %d: %q", len(lines), lines)
	}
	for i, line := range lines {
		wantPrefix := "TUTOR: "
		if i%2 == 1 {
			wantPrefix = "USER: "
		}
		if !strings.HasPrefix(line, wantPrefix) {
			t.Fatalf("turn %d = %q, want prefix %q", i, line, wantPrefix)
		}
	}
}
