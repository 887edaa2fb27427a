package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockTurn is a single scripted response from MockTransport.
type MockTurn struct {
	Chunks     []string      // Deltas to emit, in order
	ChunkDelay time.Duration // Optional pause between deltas
	Error      error         // Returned after the chunks, if set
	// Hold keeps the stream open after the chunks until the context ends.
	Hold bool
}

// MockTransport is a scripted Transport for tests. It records every request.
type MockTransport struct {
	turns     []MockTurn
	turnIndex int
	Requests  []Request
	mu        sync.Mutex
}

// NewMockTransport creates an empty mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// AddTurn adds a response turn and returns the transport for chaining.
func (m *MockTransport) AddTurn(t MockTurn) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return m
}

// AddTextResponse adds a turn that streams text split into word-sized deltas.
func (m *MockTransport) AddTextResponse(text string) *MockTransport {
	return m.AddTurn(MockTurn{Chunks: chunkText(text, 10)})
}

// AddError adds a turn that fails immediately with err.
func (m *MockTransport) AddError(err error) *MockTransport {
	return m.AddTurn(MockTurn{Error: err})
}

// LastRequest returns the most recent recorded request.
func (m *MockTransport) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return Request{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

// RequestCount returns how many requests were made.
func (m *MockTransport) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// Stream implements Transport.
func (m *MockTransport) Stream(ctx context.Context, req Request) (Stream, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	if m.turnIndex >= len(m.turns) {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock transport: no more turns configured (expected turn %d, have %d)", m.turnIndex, len(m.turns))
	}
	turn := m.turns[m.turnIndex]
	m.turnIndex++
	m.mu.Unlock()

	return newEventStream(ctx, req, "mock://", func(ctx context.Context, ch chan<- Event) error {
		var text strings.Builder
		for i, chunk := range turn.Chunks {
			if i > 0 && turn.ChunkDelay > 0 {
				select {
				case <-ctx.Done():
					return canceledError(req.Model, "mock://", ctx.Err())
				case <-time.After(turn.ChunkDelay):
				}
			}
			text.WriteString(chunk)
			if !emit(ctx, ch, Event{Type: EventText, Text: text.String(), Delta: chunk}) {
				return canceledError(req.Model, "mock://", ctx.Err())
			}
		}
		if turn.Hold {
			<-ctx.Done()
			return canceledError(req.Model, "mock://", ctx.Err())
		}
		if turn.Error != nil {
			return turn.Error
		}
		emit(ctx, ch, Event{Type: EventDone, Text: text.String()})
		return nil
	}), nil
}

// chunkText splits text into chunks of roughly chunkSize bytes, preferring
// to break after a space.
func chunkText(text string, chunkSize int) []string {
	if len(text) == 0 {
		return nil
	}
	var chunks []string
	for len(text) > chunkSize {
		breakPoint := chunkSize
		for i := chunkSize; i > chunkSize/2; i-- {
			if text[i] == ' ' {
				breakPoint = i + 1
				break
			}
		}
		chunks = append(chunks, text[:breakPoint])
		text = text[breakPoint:]
	}
	return append(chunks, text)
}
