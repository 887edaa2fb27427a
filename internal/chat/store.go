// Package chat holds a single conversation and drives sends against the
// proxy transport.
package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samsaffron/proxychat/internal/llm"
)

// ErrBusy is returned when a send is started while another is in flight.
var ErrBusy = errors.New("a response is already streaming")

// Message is one entry of the conversation. Only the content of the last
// message changes, and only while it is being streamed into.
type Message struct {
	ID        string    `json:"id"`
	Role      llm.Role  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Settings apply to the next send.
type Settings struct {
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	SystemPrompt string  `json:"system_prompt"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Model:        "tinyllama",
		Temperature:  0.7,
		MaxTokens:    2048,
		SystemPrompt: "You are a helpful AI assistant.",
	}
}

// SettingsPatch is a partial settings update; nil fields are left alone.
type SettingsPatch struct {
	Model        *string  `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	SystemPrompt *string  `json:"system_prompt,omitempty"`
}

func (p SettingsPatch) apply(s Settings) Settings {
	if p.Model != nil {
		s.Model = *p.Model
	}
	if p.Temperature != nil {
		s.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		s.MaxTokens = *p.MaxTokens
	}
	if p.SystemPrompt != nil {
		s.SystemPrompt = *p.SystemPrompt
	}
	return s
}

// ChangeType identifies what a store mutation changed.
type ChangeType string

const (
	ChangeAppended  ChangeType = "appended"
	ChangeUpdated   ChangeType = "updated"
	ChangeCleared   ChangeType = "cleared"
	ChangeSettings  ChangeType = "settings"
	ChangeStreaming ChangeType = "streaming"
	ChangeError     ChangeType = "error"
)

// Change describes one store mutation. Only the fields relevant to Type are
// set. An updated change with a non-empty Error is the error marker of a
// failed send.
type Change struct {
	Type      ChangeType
	Message   Message
	Settings  Settings
	Streaming bool
	Error     string
}

// Store is one conversation: ordered messages, the active settings, the
// streaming flag and the last error shown to the user.
type Store struct {
	mu        sync.Mutex
	messages  []Message
	settings  Settings
	streaming bool
	lastErr   string

	// Changes are queued under mu and delivered under notifyMu, so
	// watchers see them in mutation order. Watchers may read the store
	// but must not mutate it.
	notifyMu  sync.Mutex
	queued    []Change
	watchers  map[int]func(Change)
	nextWatch int

	now func() time.Time
}

// NewStore creates an empty conversation with the given settings.
func NewStore(settings Settings) *Store {
	return &Store{
		settings: settings,
		watchers: make(map[int]func(Change)),
		now:      time.Now,
	}
}

// Messages returns a copy of the conversation.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Store) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// LastError returns the message of the most recent failed send, or "".
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Watch registers fn to be called after every mutation. The returned
// function unregisters it.
func (s *Store) Watch(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// AddMessage appends a message with a fresh id and timestamp.
func (s *Store) AddMessage(role llm.Role, content string) Message {
	s.mu.Lock()
	msg := s.appendLocked(role, content)
	s.commit(Change{Type: ChangeAppended, Message: msg})
	return msg
}

// UpdateLastMessage replaces the content of the last message. It reports
// false when the conversation is empty.
func (s *Store) UpdateLastMessage(content string) bool {
	s.mu.Lock()
	if len(s.messages) == 0 {
		s.mu.Unlock()
		return false
	}
	return s.updateLocked(len(s.messages)-1, content)
}

// updateMessage replaces the content of the last message only if it is id.
func (s *Store) updateMessage(id, content string) bool {
	s.mu.Lock()
	last := len(s.messages) - 1
	if last < 0 || s.messages[last].ID != id {
		s.mu.Unlock()
		return false
	}
	return s.updateLocked(last, content)
}

func (s *Store) updateLocked(i int, content string) bool {
	s.messages[i].Content = content
	s.commit(Change{Type: ChangeUpdated, Message: s.messages[i]})
	return true
}

// fail replaces the placeholder id with the error marker and records msg
// as the last error. The update change carries msg in its Error field.
func (s *Store) fail(id, msg string) {
	s.mu.Lock()
	var changes []Change
	if last := len(s.messages) - 1; last >= 0 && s.messages[last].ID == id {
		s.messages[last].Content = ErrorPrefix + msg
		changes = append(changes, Change{Type: ChangeUpdated, Message: s.messages[last], Error: msg})
	}
	s.lastErr = msg
	changes = append(changes, Change{Type: ChangeError, Error: msg})
	s.commit(changes...)
}

// ClearMessages empties the conversation and the last error.
func (s *Store) ClearMessages() {
	s.mu.Lock()
	s.messages = nil
	s.lastErr = ""
	s.commit(Change{Type: ChangeCleared})
}

// SetSettings applies patch and returns the resulting settings. An
// in-flight send keeps the settings it started with.
func (s *Store) SetSettings(patch SettingsPatch) Settings {
	s.mu.Lock()
	s.settings = patch.apply(s.settings)
	settings := s.settings
	s.commit(Change{Type: ChangeSettings, Settings: settings})
	return settings
}

// SetError records msg as the last error. An empty msg clears it.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.commit(Change{Type: ChangeError, Error: msg})
}

func (s *Store) setStreaming(streaming bool) {
	s.mu.Lock()
	s.streaming = streaming
	s.commit(Change{Type: ChangeStreaming, Streaming: streaming})
}

// pending is the state captured when a send starts.
type pending struct {
	settings    Settings
	history     []llm.Message
	placeholder Message
}

// begin starts a send in one step: it clears the last error, appends the
// user message and an empty assistant placeholder, and sets streaming.
// The history sent to the proxy is the system prompt, the prior
// messages and the new user message.
func (s *Store) begin(text string) (*pending, error) {
	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	p := &pending{settings: s.settings}
	p.history = make([]llm.Message, 0, len(s.messages)+2)
	p.history = append(p.history, llm.SystemText(s.settings.SystemPrompt))
	for _, m := range s.messages {
		p.history = append(p.history, llm.Message{Role: m.Role, Content: m.Content})
	}
	p.history = append(p.history, llm.UserText(text))

	var changes []Change
	if s.lastErr != "" {
		s.lastErr = ""
		changes = append(changes, Change{Type: ChangeError})
	}
	user := s.appendLocked(llm.RoleUser, text)
	p.placeholder = s.appendLocked(llm.RoleAssistant, "")
	s.streaming = true
	changes = append(changes,
		Change{Type: ChangeAppended, Message: user},
		Change{Type: ChangeAppended, Message: p.placeholder},
		Change{Type: ChangeStreaming, Streaming: true},
	)
	s.commit(changes...)
	return p, nil
}

func (s *Store) appendLocked(role llm.Role, content string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}
	s.messages = append(s.messages, msg)
	return msg
}

// commit must be called with mu held. It queues changes, releases mu and
// delivers everything queued so far to the watchers.
func (s *Store) commit(changes ...Change) {
	s.queued = append(s.queued, changes...)
	s.mu.Unlock()
	s.flush()
}

func (s *Store) flush() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.deliverQueued()
}

// Snapshot is a copy of the conversation state at one point in the change
// sequence.
type Snapshot struct {
	Messages  []Message
	Settings  Settings
	Streaming bool
}

// Snapshot calls fn with the current state once every earlier change has
// reached the watchers. No change is delivered while fn runs, so watchers
// see exactly the changes made after the snapshot. Like a watcher, fn must
// not mutate the store.
func (s *Store) Snapshot(fn func(Snapshot)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for {
		s.mu.Lock()
		if len(s.queued) == 0 {
			snap := Snapshot{
				Messages:  append([]Message(nil), s.messages...),
				Settings:  s.settings,
				Streaming: s.streaming,
			}
			s.mu.Unlock()
			fn(snap)
			return
		}
		s.mu.Unlock()
		s.deliverQueued()
	}
}

// deliverQueued runs the watchers for everything queued. notifyMu must be held.
func (s *Store) deliverQueued() {
	s.mu.Lock()
	batch := s.queued
	s.queued = nil
	watchers := make([]func(Change), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	for _, c := range batch {
		for _, fn := range watchers {
			fn(c)
		}
	}
}
