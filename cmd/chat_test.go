package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samsaffron/proxychat/internal/catalog"
	"github.com/samsaffron/proxychat/internal/chat"
	"github.com/samsaffron/proxychat/internal/llm"
	"github.com/samsaffron/proxychat/internal/testutil"
	"github.com/samsaffron/proxychat/internal/ui"
)

func runREPLInput(t *testing.T, mock *llm.MockTransport, input string) (*chat.Orchestrator, string) {
	t.Helper()
	orch := chat.NewOrchestrator(chat.NewStore(chat.DefaultSettings()), mock, zerolog.Nop())
	var out bytes.Buffer
	r := newREPL(orch, catalog.Default(), &out, ui.NewStyles(&out))
	if err := r.run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return orch, out.String()
}

func TestREPLConversation(t *testing.T) {
	mock := llm.NewMockTransport().
		AddTextResponse("First reply.").
		AddTextResponse("Second reply.")
	orch, out := runREPLInput(t, mock, "hello\n\nagain\n/quit\nignored\n")

	testutil.AssertContainsPlain(t, out, "Chatting with tinyllama")
	testutil.AssertContainsPlain(t, out, "First reply.\n")
	testutil.AssertContainsPlain(t, out, "Second reply.\n")
	if mock.RequestCount() != 2 {
		t.Fatalf("requests = %d, want 2", mock.RequestCount())
	}
	req, _ := mock.LastRequest()
	if len(req.Messages) != 4 {
		t.Fatalf("second request history = %+v", req.Messages)
	}
	if n := len(orch.Store().Messages()); n != 4 {
		t.Fatalf("messages = %d, want 4", n)
	}
}

func TestREPLCommands(t *testing.T) {
	mock := llm.NewMockTransport().AddTextResponse("ok")
	input := strings.Join([]string{
		"/model gpt-4o",
		"/temp 0.25",
		"/temp hot",
		"/system Be terse.",
		"/model my-local-model",
		"/models",
		"/bogus",
		"hi",
		"/clear",
	}, "\n")
	orch, out := runREPLInput(t, mock, input)

	testutil.AssertContainsPlain(t, out, "Model set to gpt-4o")
	testutil.AssertContainsPlain(t, out, "Temperature set to 0.25")
	testutil.AssertContainsPlain(t, out, `invalid temperature "hot"`)
	testutil.AssertContainsPlain(t, out, "not in the catalog")
	testutil.AssertContainsPlain(t, out, "claude-3-5-sonnet-20240620")
	testutil.AssertContainsPlain(t, out, "unknown command /bogus")
	testutil.AssertContainsPlain(t, out, "Conversation cleared.")

	req, _ := mock.LastRequest()
	if req.Model != "my-local-model" || req.Temperature != 0.25 || req.Messages[0].Content != "Be terse." {
		t.Fatalf("request = %+v", req)
	}
	if n := len(orch.Store().Messages()); n != 0 {
		t.Fatalf("messages after /clear = %d", n)
	}
}

func TestREPLShowsErrors(t *testing.T) {
	mock := llm.NewMockTransport().AddError(&llm.Error{Kind: llm.KindServer, Status: 500, Body: "boom"})
	_, out := runREPLInput(t, mock, "hi\n")
	testutil.AssertContainsPlain(t, out, "Error: Server error:\nboom")
}
