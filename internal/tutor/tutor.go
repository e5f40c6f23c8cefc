package tutor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/audiotutor/audiotutor/internal/memory"
	"github.com/audiotutor/audiotutor/internal/observability"
	"github.com/audiotutor/audiotutor/internal/reliability"
)

const retryBackoffBase = 500 * time.Millisecond

// Model generates the next tutor reply from the running dialogue context.
type Model interface {
	Generate(ctx context.Context, system string, history []memory.Message) (string, error)
}

// Orchestrator produces tutor turns. Every accepted user utterance is
// appended to the user's dialogue memory before the model call, and the
// memory is flushed before the reply is returned, so a crash between
// turns never loses a committed exchange.
type Orchestrator struct {
	model    Model
	memory   memory.Store
	timeout  time.Duration
	retryMax int
	metrics  *observability.Metrics
	log      zerolog.Logger
}

func NewOrchestrator(model Model, mem memory.Store, timeout time.Duration, retryMax int, metrics *observability.Metrics, log zerolog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if retryMax < 0 {
		retryMax = 0
	}
	return &Orchestrator{
		model:    model,
		memory:   mem,
		timeout:  timeout,
		retryMax: retryMax,
		metrics:  metrics,
		log:      log.With().Str("component", "tutor").Logger(),
	}
}

// Reply appends the utterance to the user's memory, generates the next
// reply with bounded retries, appends it, and flushes the checkpoint.
func (o *Orchestrator) Reply(ctx context.Context, userID, language, utterance string) (string, error) {
	now := time.Now().UTC()
	if err := o.memory.Append(ctx, userID, memory.Message{Role: memory.RoleUser, Content: utterance, CreatedAt: now}); err != nil {
		return "", fmt.Errorf("append utterance: %w", err)
	}

	history, err := o.memory.Load(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load dialogue memory: %w", err)
	}

	reply, err := o.generate(ctx, systemPrompt(language), history)
	if err != nil {
		return "", err
	}

	if err := o.memory.Append(ctx, userID, memory.Message{Role: memory.RoleTutor, Content: reply, CreatedAt: time.Now().UTC()}); err != nil {
		return "", fmt.Errorf("append reply: %w", err)
	}
	if err := o.memory.Flush(ctx, userID); err != nil {
		return "", fmt.Errorf("flush dialogue memory: %w", err)
	}
	return reply, nil
}

// Greeting opens a session with a fixed spoken line in the target
// language and records it in memory so the model sees its own opener.
func (o *Orchestrator) Greeting(ctx context.Context, userID, language string) (string, error) {
	line := greetingLine(language)
	if err := o.commitTutorLine(ctx, userID, line); err != nil {
		return "", err
	}
	return line, nil
}

// Fallback produces the spoken apology used when reply generation has
// exhausted its retries. The apology itself becomes a committed tutor
// turn so the transcript reflects what the user actually heard.
func (o *Orchestrator) Fallback(ctx context.Context, userID, language string) (string, error) {
	line := apologyLine(language)
	if err := o.commitTutorLine(ctx, userID, line); err != nil {
		return "", err
	}
	return line, nil
}

func (o *Orchestrator) commitTutorLine(ctx context.Context, userID, line string) error {
	if err := o.memory.Append(ctx, userID, memory.Message{Role: memory.RoleTutor, Content: line, CreatedAt: time.Now().UTC()}); err != nil {
		return fmt.Errorf("append tutor line: %w", err)
	}
	if err := o.memory.Flush(ctx, userID); err != nil {
		return fmt.Errorf("flush dialogue memory: %w", err)
	}
	return nil
}

func (o *Orchestrator) generate(ctx context.Context, system string, history []memory.Message) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= o.retryMax; attempt++ {
		if attempt > 0 {
			if o.metrics != nil {
				o.metrics.ModelRetries.Inc()
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt-1, retryBackoffBase, 4*time.Second)):
			}
		}

		started := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		reply, err := o.model.Generate(callCtx, system, history)
		cancel()
		if err == nil {
			if o.metrics != nil {
				o.metrics.ObserveReplyLatency(time.Since(started))
			}
			return reply, nil
		}

		lastErr = err
		if !reliability.IsRetryableModelError(err) {
			break
		}
		o.log.Warn().Err(err).Int("attempt", attempt+1).Msg("reply generation failed")
	}
	return "", fmt.Errorf("generate reply: %w", lastErr)
}
