package llm

import "context"

// Role identifies the author of a chat message on the wire.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the provider-agnostic role/content pair sent to the proxy.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemText returns a system message with the given content.
func SystemText(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserText returns a user message with the given content.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantText returns an assistant message with the given content.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// Request is a single chat completion call. Temperature and MaxTokens are
// forwarded as-is; the proxy is the authority on their ranges.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// EventType distinguishes stream events.
type EventType string

const (
	// EventText carries the cumulative assistant text assembled so far.
	EventText  EventType = "text"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is a single item produced by a Stream.
type Event struct {
	Type EventType
	// Text is the full assistant text so far, never just the delta.
	Text  string
	Delta string
	Err   error
}

// Stream is a cancellable producer of Events. Recv returns io.EOF once the
// stream is exhausted. Close releases the underlying response body.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Transport is the part of Client the orchestrator depends on.
type Transport interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}

// chatCompletionRequest is the OpenAI-compatible request body.
type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}
