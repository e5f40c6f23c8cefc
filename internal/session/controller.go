package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/audiotutor/audiotutor/internal/observability"
	"github.com/audiotutor/audiotutor/internal/store"
	"github.com/audiotutor/audiotutor/internal/voice"
)

// Tutor produces the spoken lines of the conversation.
type Tutor interface {
	Greeting(ctx context.Context, userID, language string) (string, error)
	Reply(ctx context.Context, userID, language, utterance string) (string, error)
	Fallback(ctx context.Context, userID, language string) (string, error)
}

// Listener blocks until one committed user utterance is available.
type Listener interface {
	Listen(ctx context.Context, frames <-chan []byte) (string, error)
}

// Voice speaks a tutor line to the user.
type Voice interface {
	Speak(ctx context.Context, language, text string) error
}

// RecordStore persists finished sessions.
type RecordStore interface {
	Save(ctx context.Context, rec store.ConversationRecord) (int64, error)
	SetAnalysisReport(ctx context.Context, id int64, report string) error
}

// Indexer adds transcripts to the user's retrieval namespace.
type Indexer interface {
	IndexText(ctx context.Context, userID, content string) (string, error)
}

// Analyzer builds the post-session feedback report.
type Analyzer interface {
	Analyze(ctx context.Context, userID, transcript string) (string, error)
}

type controllerState int

const (
	stateListening controllerState = iota
	stateReplying
	stateEnding
)

// Config wires a Controller.
type Config struct {
	Manager  *Manager
	Tutor    Tutor
	Voice    Voice
	Records  RecordStore
	Indexer  Indexer
	Analyzer Analyzer

	// NewListener opens a transcription stream for the session language.
	// A fresh Listener state is implied per Listen call.
	NewListener func(language string) Listener

	StopKeyword  string
	RepromptMax  int
	ReconnectMax int

	Metrics *observability.Metrics
	Log     zerolog.Logger
}

// Controller runs the turn-taking state machine for tutoring sessions:
// Listening, Replying, Speaking in a loop until the stop keyword, then
// finalization (save, index, analyze). Half-duplex: capture frames are
// consumed only while Listening and drained-but-dropped otherwise.
type Controller struct {
	cfg Config
	log zerolog.Logger
}

func NewController(cfg Config) *Controller {
	if cfg.StopKeyword == "" {
		cfg.StopKeyword = "stop"
	}
	if cfg.RepromptMax <= 0 {
		cfg.RepromptMax = 3
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 2
	}
	return &Controller{
		cfg: cfg,
		log: cfg.Log.With().Str("component", "session").Logger(),
	}
}

// Run drives one session from greeting to persisted record. It returns
// the conversation record ID. A record-save failure leaves the session
// active so the caller can retry finalization without losing the
// transcript.
func (c *Controller) Run(ctx context.Context, userID, language string, frames <-chan []byte) (int64, error) {
	sess, err := c.cfg.Manager.Create(userID, language)
	if err != nil {
		return 0, err
	}
	log := c.log.With().Str("session_id", sess.ID).Str("user_id", userID).Str("language", language).Logger()
	c.gaugeActive(1)
	defer c.gaugeActive(-1)
	c.countEvent("session_started")

	greeting, err := c.cfg.Tutor.Greeting(ctx, userID, language)
	if err != nil {
		c.cfg.Manager.End(sess.ID)
		return 0, fmt.Errorf("open session: %w", err)
	}
	c.commit(sess, SpeakerTutor, greeting, time.Now().UTC())
	c.speak(ctx, log, language, greeting)

	listener := c.cfg.NewListener(language)
	var (
		state       = stateListening
		utterance   string
		reprompts   int
		reconnects  int
		failedTurns int
	)

	for state != stateEnding {
		switch state {
		case stateListening:
			drainFrames(frames)
			heardAt := time.Now().UTC()
			text, err := listener.Listen(ctx, frames)
			c.observeStage("listen", heardAt)
			switch {
			case ctx.Err() != nil:
				log.Warn().Err(ctx.Err()).Msg("session context done, finalizing")
				state = stateEnding

			case errors.Is(err, voice.ErrNoSpeech):
				reprompts++
				c.countEvent("no_speech")
				if reprompts > c.cfg.RepromptMax {
					log.Info().Int("reprompts", reprompts).Msg("no speech, ending session")
					state = stateEnding
				}

			case errors.Is(err, voice.ErrStreamInterrupted):
				reconnects++
				c.countEvent("stream_interrupted")
				if reconnects > c.cfg.ReconnectMax {
					failedTurns++
					if failedTurns > c.cfg.RepromptMax {
						// The provider is not coming back; save what we have.
						log.Error().Int("failed_turns", failedTurns).Msg("transcription unrecoverable, ending session")
						state = stateEnding
						continue
					}
					// Give up on this turn, not yet on the session.
					log.Warn().Int("reconnects", reconnects).Msg("transcription kept failing, apologizing")
					c.apologize(ctx, log, sess, userID, language)
					reconnects = 0
				}

			case err != nil:
				log.Error().Err(err).Msg("transcription failed, ending session")
				state = stateEnding

			case isStopUtterance(text, c.cfg.StopKeyword):
				// The stop turn itself is never committed.
				c.countEvent("stop_keyword")
				state = stateEnding

			default:
				reprompts, reconnects, failedTurns = 0, 0, 0
				utterance = text
				c.commit(sess, SpeakerUser, utterance, heardAt)
				state = stateReplying
			}

		case stateReplying:
			startedAt := time.Now().UTC()
			reply, err := c.cfg.Tutor.Reply(ctx, userID, language, utterance)
			c.observeStage("reply", startedAt)
			if err != nil {
				log.Error().Err(err).Msg("reply generation exhausted retries, apologizing")
				c.apologize(ctx, log, sess, userID, language)
				state = stateListening
				continue
			}
			c.commit(sess, SpeakerTutor, reply, startedAt)
			c.speak(ctx, log, language, reply)
			state = stateListening
		}
	}

	// Finalization must survive a cancellation that ended the loop.
	return c.finalize(context.WithoutCancel(ctx), log, sess)
}

func (c *Controller) finalize(ctx context.Context, log zerolog.Logger, sess *Session) (int64, error) {
	transcript := Transcript(sess)
	rec := store.ConversationRecord{
		UserID:     sess.UserID,
		Language:   sess.Language,
		StartTime:  sess.StartedAt,
		EndTime:    time.Now().UTC(),
		Transcript: transcript,
	}

	id, err := c.cfg.Records.Save(ctx, rec)
	if err != nil {
		// Session stays active so the transcript can be retried.
		return 0, fmt.Errorf("save session record: %w", err)
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.SessionsSaved.Inc()
	}
	if err := c.cfg.Manager.End(sess.ID); err != nil {
		log.Warn().Err(err).Msg("session already ended")
	}
	c.countEvent("session_saved")

	// Indexing never precedes the record write; a failure here is
	// logged and does not invalidate the record.
	if _, err := c.cfg.Indexer.IndexText(ctx, sess.UserID, transcript); err != nil {
		log.Error().Err(err).Int64("record_id", id).Msg("transcript indexing failed")
	}

	report, err := c.cfg.Analyzer.Analyze(ctx, sess.UserID, transcript)
	if err != nil {
		log.Error().Err(err).Int64("record_id", id).Msg("analysis failed")
		return id, nil
	}
	if err := c.cfg.Records.SetAnalysisReport(ctx, id, report); err != nil {
		log.Error().Err(err).Int64("record_id", id).Msg("storing analysis report failed")
		return id, nil
	}
	if _, err := c.cfg.Indexer.IndexText(ctx, sess.UserID, report); err != nil {
		log.Error().Err(err).Int64("record_id", id).Msg("report indexing failed")
	}
	return id, nil
}

// apologize substitutes a spoken apology tutor turn for a failed one.
func (c *Controller) apologize(ctx context.Context, log zerolog.Logger, sess *Session, userID, language string) {
	line, err := c.cfg.Tutor.Fallback(ctx, userID, language)
	if err != nil {
		log.Error().Err(err).Msg("fallback line failed")
		return
	}
	c.commit(sess, SpeakerTutor, line, time.Now().UTC())
	c.speak(ctx, log, language, line)
}

func (c *Controller) commit(sess *Session, speaker Speaker, text string, startedAt time.Time) {
	sess.commit(speaker, text, startedAt)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.TurnsCommitted.WithLabelValues(string(speaker)).Inc()
	}
}

// speak plays a committed line. Synthesis failure degrades to text-only
// delivery of an already committed turn, so it is logged, not returned.
func (c *Controller) speak(ctx context.Context, log zerolog.Logger, language, text string) {
	started := time.Now()
	if err := c.cfg.Voice.Speak(ctx, language, text); err != nil {
		log.Warn().Err(err).Msg("speech playback failed, reply delivered as text only")
	}
	c.observeStage("speak", started)
}

func (c *Controller) observeStage(stage string, since time.Time) {
	if c.cfg.Metrics != nil && c.cfg.Metrics.Stages != nil {
		c.cfg.Metrics.Stages.Observe(stage, time.Since(since))
	}
}

func (c *Controller) gaugeActive(delta float64) {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ActiveSessions.Add(delta)
	}
}

func (c *Controller) countEvent(event string) {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.SessionEvents.WithLabelValues(event).Inc()
		c.cfg.Metrics.Stages.ObserveIndicator(event)
	}
}

// drainFrames drops any capture frames buffered while the system was
// speaking, so a new Listen starts from live audio.
func drainFrames(frames <-chan []byte) {
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
