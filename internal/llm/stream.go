package llm

import (
	"context"
	"io"
)

type channelStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	events <-chan Event
	model  string
	url    string
	done   bool
}

func newEventStream(ctx context.Context, req Request, url string, run func(context.Context, chan<- Event) error) Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		if err := run(streamCtx, ch); err != nil {
			ev := Event{Type: EventError, Err: err}
			select {
			case ch <- ev:
			default:
				// The consumer may have stopped reading after Close.
				select {
				case ch <- ev:
				case <-streamCtx.Done():
				}
			}
		}
	}()
	return &channelStream{ctx: streamCtx, cancel: cancel, events: ch, model: req.Model, url: url}
}

func (s *channelStream) Recv() (Event, error) {
	// Drain buffered events before checking ctx.Done() so a finished stream
	// is not reported as cancelled.
	select {
	case event, ok := <-s.events:
		return s.received(event, ok)
	default:
	}

	select {
	case <-s.ctx.Done():
		return Event{}, canceledError(s.model, s.url, s.ctx.Err())
	case event, ok := <-s.events:
		return s.received(event, ok)
	}
}

func (s *channelStream) received(event Event, ok bool) (Event, error) {
	if !ok {
		// A producer that stopped early because of cancellation is not a
		// clean end of stream.
		if !s.done && s.ctx.Err() != nil {
			return Event{}, canceledError(s.model, s.url, s.ctx.Err())
		}
		return Event{}, io.EOF
	}
	if event.Type == EventDone {
		s.done = true
	}
	return event, nil
}

func (s *channelStream) Close() error {
	s.cancel()
	return nil
}

// Collect drains stream, calling onChunk with the cumulative text for every
// text event, and returns the final text. The stream is closed on return.
func Collect(stream Stream, onChunk func(string)) (string, error) {
	defer stream.Close()

	var text string
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			return text, nil
		}
		if err != nil {
			return text, err
		}
		switch ev.Type {
		case EventText:
			text = ev.Text
			if onChunk != nil {
				onChunk(text)
			}
		case EventDone:
			text = ev.Text
		case EventError:
			return text, ev.Err
		}
	}
}
