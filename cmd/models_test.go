package cmd

import (
	"bytes"
	"testing"

	"github.com/samsaffron/proxychat/internal/catalog"
	"github.com/samsaffron/proxychat/internal/testutil"
	"github.com/samsaffron/proxychat/internal/ui"
)

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	printCatalog(&buf, ui.NewStyles(&buf), catalog.Default(), "gpt-4o")
	out := buf.String()

	testutil.AssertContainsPlain(t, out, ui.CurrentIcon+" gpt-4o")
	testutil.AssertContainsPlain(t, out, ui.OtherIcon+" ollama/phi3:mini")
	testutil.AssertContainsPlain(t, out, "anthropic")
}

func TestPrintRemoteModels(t *testing.T) {
	var buf bytes.Buffer
	printRemoteModels(&buf, ui.NewStyles(&buf), catalog.Default(), []string{"gpt-4o", "mystery"}, "http://proxy")
	out := buf.String()

	testutil.AssertContainsPlain(t, out, "Models served by http://proxy:")
	testutil.AssertContainsPlain(t, out, "gpt-4o  openai")
	testutil.AssertContainsPlain(t, out, "mystery")

	buf.Reset()
	printRemoteModels(&buf, ui.NewStyles(&buf), catalog.Default(), nil, "http://proxy")
	testutil.AssertContains(t, buf.String(), "No models found.")
}
