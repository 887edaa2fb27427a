package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samsaffron/proxychat/internal/chat"
	"github.com/samsaffron/proxychat/internal/llm"
	"github.com/samsaffron/proxychat/internal/testutil"
)

func TestSuffixPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &suffixPrinter{w: &buf}
	for _, text := range []string{"He", "Hello", "Hello, wor", "Hello, world"} {
		p.update(text)
	}
	p.update("Goodbye")
	if buf.String() != "Hello, world" {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestAskStreamingPrintsAnswer(t *testing.T) {
	const reply = "Paris is the capital of France."
	mock := llm.NewMockTransport().AddTextResponse(reply)
	settings := chat.DefaultSettings()
	settings.Model = "gpt-4o"

	var out bytes.Buffer
	if err := askStreaming(context.Background(), mock, settings, "capital of France?", &out); err != nil {
		t.Fatalf("askStreaming failed: %v", err)
	}
	if out.String() != reply+"\n" {
		t.Fatalf("output = %q, want %q", out.String(), reply+"\n")
	}
	req, _ := mock.LastRequest()
	if req.Model != "gpt-4o" || len(req.Messages) != 2 {
		t.Fatalf("request = %+v", req)
	}
}

func TestAskStreamingDoesNotPrintErrorMarker(t *testing.T) {
	mock := llm.NewMockTransport().AddError(&llm.Error{Kind: llm.KindAuth, Status: 401})

	var out bytes.Buffer
	err := askStreaming(context.Background(), mock, chat.DefaultSettings(), "hi", &out)
	if llm.KindOf(err) != llm.KindAuth {
		t.Fatalf("err = %v, want auth", err)
	}
	if out.Len() != 0 {
		t.Fatalf("output = %q, want nothing", out.String())
	}
}

func TestAskOnceAgainstProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["stream"] != false {
			t.Errorf("stream = %v, want false", body["stream"])
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  42\n"}}]}`)
	}))
	defer srv.Close()

	client := llm.NewClient(llm.ClientConfig{BaseURL: srv.URL, Logger: zerolog.Nop()})
	var out bytes.Buffer
	if err := askOnce(context.Background(), client, chat.DefaultSettings(), "answer?", &out); err != nil {
		t.Fatalf("askOnce failed: %v", err)
	}
	if out.String() != "  42\n\n" {
		t.Fatalf("output = %q", out.String())
	}

	if err := askOnce(context.Background(), client, chat.DefaultSettings(), "   ", io.Discard); err != chat.ErrEmptyMessage {
		t.Fatalf("empty question = %v", err)
	}
}

func TestAskStreamingAgainstProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := llm.NewClient(llm.ClientConfig{BaseURL: srv.URL, Logger: zerolog.Nop()})
	var out bytes.Buffer
	if err := askStreaming(context.Background(), client, chat.DefaultSettings(), "hi", &out); err != nil {
		t.Fatalf("askStreaming failed: %v", err)
	}
	testutil.AssertContains(t, out.String(), "Hello")
}
