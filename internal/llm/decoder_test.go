package llm

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// splitReader returns its parts one Read at a time, regardless of buffer size.
type splitReader struct {
	parts []string
}

func (r *splitReader) Read(p []byte) (int, error) {
	if len(r.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.parts[0])
	r.parts[0] = r.parts[0][n:]
	if r.parts[0] == "" {
		r.parts = r.parts[1:]
	}
	return n, nil
}

func deltaFrame(content string) string {
	return `data: {"choices":[{"delta":{"content":"` + content + `"}}]}` + "\n\n"
}

func decodeAll(t *testing.T, r io.Reader) ([]string, *ChunkDecoder) {
	t.Helper()
	dec := NewChunkDecoder(r)
	var out []string
	for {
		delta, err := dec.Next()
		if err == io.EOF {
			return out, dec
		}
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		out = append(out, delta)
	}
}

func TestChunkDecoderBasic(t *testing.T) {
	body := deltaFrame("Hel") + deltaFrame("lo") + "data: [DONE]\n\n"
	got, dec := decodeAll(t, strings.NewReader(body))
	if strings.Join(got, "|") != "Hel|lo" {
		t.Fatalf("deltas = %q, want [Hel lo]", got)
	}
	if dec.Skipped() != 0 {
		t.Fatalf("skipped = %d, want 0", dec.Skipped())
	}
}

func TestChunkDecoderReassemblesSplitLines(t *testing.T) {
	body := deltaFrame("Hello") + deltaFrame(", world") + "data: [DONE]\n"
	whole, _ := decodeAll(t, strings.NewReader(body))

	cut := strings.Index(body, "content") + 3
	split, _ := decodeAll(t, &splitReader{parts: []string{body[:cut], body[cut:]}})
	oneByte, _ := decodeAll(t, iotest.OneByteReader(strings.NewReader(body)))

	want := strings.Join(whole, "")
	if want != "Hello, world" {
		t.Fatalf("whole = %q, want %q", want, "Hello, world")
	}
	if got := strings.Join(split, ""); got != want {
		t.Fatalf("split read = %q, want %q", got, want)
	}
	if got := strings.Join(oneByte, ""); got != want {
		t.Fatalf("one-byte reads = %q, want %q", got, want)
	}
}

func TestChunkDecoderSplitMultibyteRune(t *testing.T) {
	body := deltaFrame("héllo ✓")
	idx := strings.Index(body, "✓") + 1 // inside the 3-byte rune
	got, _ := decodeAll(t, &splitReader{parts: []string{body[:idx], body[idx:]}})
	if strings.Join(got, "") != "héllo ✓" {
		t.Fatalf("deltas = %q, want %q", got, "héllo ✓")
	}
}

func TestChunkDecoderSkipsMalformedFrames(t *testing.T) {
	body := deltaFrame("a") +
		"data: {not json\n" +
		`data: {"choices":[]}` + "\n" +
		deltaFrame("b")
	got, dec := decodeAll(t, strings.NewReader(body))
	if strings.Join(got, "") != "ab" {
		t.Fatalf("deltas = %q, want a then b", got)
	}
	if dec.Skipped() != 2 {
		t.Fatalf("skipped = %d, want 2", dec.Skipped())
	}
}

func TestChunkDecoderSkipsOversizedLine(t *testing.T) {
	huge := "data: " + strings.Repeat("x", maxFrameLine+10) + "\n\n"
	body := deltaFrame("before") + huge + deltaFrame("after") + "data: [DONE]\n\n"
	got, dec := decodeAll(t, strings.NewReader(body))
	if strings.Join(got, "|") != "before|after" {
		t.Fatalf("deltas = %q, want [before after]", got)
	}
	if dec.Skipped() != 1 {
		t.Fatalf("skipped = %d, want 1", dec.Skipped())
	}
}

func TestChunkDecoderOversizedFinalLine(t *testing.T) {
	body := deltaFrame("only") + "data: " + strings.Repeat("y", maxFrameLine+1)
	got, dec := decodeAll(t, strings.NewReader(body))
	if strings.Join(got, "|") != "only" {
		t.Fatalf("deltas = %q, want [only]", got)
	}
	if dec.Skipped() != 1 {
		t.Fatalf("skipped = %d, want 1", dec.Skipped())
	}
}

func TestChunkDecoderIgnoresNonDataLines(t *testing.T) {
	body := ": keepalive\n" +
		"event: message\n" +
		"data:" + `{"choices":[{"delta":{"content":"no-space"}}]}` + "\n" +
		`data: {"choices":[{"delta":{"role":"assistant","content":""}}]}` + "\n" +
		`data: {"choices":[{"delta":{"content":null}}]}` + "\n" +
		deltaFrame("kept")
	got, _ := decodeAll(t, strings.NewReader(body))
	if len(got) != 1 || got[0] != "kept" {
		t.Fatalf("deltas = %q, want [kept]", got)
	}
}

func TestChunkDecoderDoneProducesNothing(t *testing.T) {
	got, _ := decodeAll(t, strings.NewReader("data: [DONE]\n\ndata: [DONE]\n"))
	if len(got) != 0 {
		t.Fatalf("deltas = %q, want none", got)
	}
}

func TestChunkDecoderFinalLineWithoutNewline(t *testing.T) {
	body := deltaFrame("x") + `data: {"choices":[{"delta":{"content":"y"}}]}`
	got, _ := decodeAll(t, strings.NewReader(body))
	if strings.Join(got, "") != "xy" {
		t.Fatalf("deltas = %q, want x then y", got)
	}
}

func TestChunkDecoderCRLF(t *testing.T) {
	body := "data: " + `{"choices":[{"delta":{"content":"crlf"}}]}` + "\r\n\r\ndata: [DONE]\r\n"
	got, _ := decodeAll(t, strings.NewReader(body))
	if len(got) != 1 || got[0] != "crlf" {
		t.Fatalf("deltas = %q, want [crlf]", got)
	}
}

func TestChunkDecoderReadError(t *testing.T) {
	r := io.MultiReader(strings.NewReader(deltaFrame("ok")), iotest.ErrReader(io.ErrUnexpectedEOF))
	dec := NewChunkDecoder(r)
	delta, err := dec.Next()
	if err != nil || delta != "ok" {
		t.Fatalf("first Next = %q, %v; want ok, nil", delta, err)
	}
	if _, err := dec.Next(); err == nil || err == io.EOF {
		t.Fatalf("expected read error, got %v", err)
	}
}
