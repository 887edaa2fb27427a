package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samsaffron/proxychat/internal/llm"
)

// ErrEmptyMessage is returned when the submitted text is blank.
var ErrEmptyMessage = errors.New("message is empty")

// ErrorPrefix marks an assistant message that was replaced by an error.
const ErrorPrefix = "Error: "

// Orchestrator runs sends for one conversation. At most one send is in
// flight at a time.
type Orchestrator struct {
	store     *Store
	transport llm.Transport
	log       zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewOrchestrator(store *Store, transport llm.Transport, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{store: store, transport: transport, log: log}
}

func (o *Orchestrator) Store() *Store {
	return o.store
}

// Submit sends text as a new user turn and streams the reply into the
// store. It blocks until the send completes, fails or is cancelled, and
// returns the send's error.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	result, err := o.Start(ctx, text)
	if err != nil {
		return err
	}
	return <-result
}

// Start begins a send and returns as soon as the user turn and placeholder
// are in the store and the send can be cancelled. The reply streams in the
// background; the returned channel receives the send's error (nil on
// success) and is then closed.
func (o *Orchestrator) Start(ctx context.Context, text string) (<-chan error, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	ctx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	p, err := o.store.begin(text)
	if err != nil {
		o.mu.Unlock()
		cancel()
		return nil, err
	}
	done := make(chan struct{})
	o.cancel, o.done = cancel, done
	o.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		err := o.send(ctx, p)
		cancel()
		o.store.setStreaming(false)
		o.mu.Lock()
		if o.done == done {
			o.cancel, o.done = nil, nil
		}
		o.mu.Unlock()
		close(done)
		result <- err
		close(result)
	}()
	return result, nil
}

func (o *Orchestrator) send(ctx context.Context, p *pending) error {
	log := o.log.With().Str("model", p.settings.Model).Str("message_id", p.placeholder.ID).Logger()
	start := time.Now()
	log.Debug().Int("history", len(p.history)).Msg("send started")

	text, err := o.run(ctx, p)
	if err != nil {
		o.store.fail(p.placeholder.ID, errorText(err))
		log.Warn().Str("kind", llm.KindOf(err).String()).Dur("elapsed", time.Since(start)).Msg("send failed")
		return err
	}

	log.Debug().Int("chars", len(text)).Dur("elapsed", time.Since(start)).Msg("send completed")
	return nil
}

func (o *Orchestrator) run(ctx context.Context, p *pending) (string, error) {
	stream, err := o.transport.Stream(ctx, llm.Request{
		Model:       p.settings.Model,
		Messages:    p.history,
		Temperature: p.settings.Temperature,
		MaxTokens:   p.settings.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	var shown string
	final, err := llm.Collect(stream, func(text string) {
		shown = text
		o.store.updateMessage(p.placeholder.ID, text)
	})
	if err != nil {
		return final, err
	}
	if final != shown {
		o.store.updateMessage(p.placeholder.ID, final)
	}
	return final, nil
}

// Cancel stops the in-flight send, if any. The send ends as a failure
// with a cancellation error.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// Clear cancels any in-flight send, waits for it to finish and then
// empties the conversation.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	for o.done != nil {
		cancel, done := o.cancel, o.done
		o.mu.Unlock()
		cancel()
		<-done
		o.mu.Lock()
	}
	defer o.mu.Unlock()
	o.store.ClearMessages()
}

// SetSettings updates the settings used by the next send.
func (o *Orchestrator) SetSettings(patch SettingsPatch) Settings {
	return o.store.SetSettings(patch)
}

// errorText is the user-facing message for a failed send.
func errorText(err error) string {
	var llmErr *llm.Error
	if !errors.As(err, &llmErr) && llm.KindOf(err) == llm.KindCanceled {
		return "request cancelled"
	}
	return err.Error()
}
