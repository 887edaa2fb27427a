package llm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	sseDataPrefix = "data: "
	sseDone       = "[DONE]"

	// maxFrameLine bounds a single SSE line; longer lines are dropped.
	maxFrameLine = 1024 * 1024
)

// ChunkDecoder turns a chat completions event stream into content deltas.
// Lines are reassembled across reads, so a frame split between two network
// chunks decodes the same as one delivered whole.
type ChunkDecoder struct {
	r       *bufio.Reader
	skipped int
	done    bool
}

// NewChunkDecoder wraps r. The decoder is single-use.
func NewChunkDecoder(r io.Reader) *ChunkDecoder {
	return &ChunkDecoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next non-empty content delta, or io.EOF when the
// underlying reader is exhausted. Malformed frames are skipped.
func (d *ChunkDecoder) Next() (string, error) {
	for !d.done {
		line, err := d.readLine()
		if err == io.EOF {
			d.done = true
			if line == "" {
				break
			}
		} else if err != nil {
			return "", err
		}

		if delta, ok := d.frame(line); ok {
			return delta, nil
		}
	}
	return "", io.EOF
}

// Skipped reports how many frames were dropped because they did not parse
// had no delta content path or exceeded maxFrameLine.
func (d *ChunkDecoder) Skipped() int {
	return d.skipped
}

// readLine returns the next line without its terminator. An oversized line
// is consumed up to its newline, counted as skipped and returned empty.
func (d *ChunkDecoder) readLine() (string, error) {
	var sb strings.Builder
	tooLong := false
	for {
		chunk, err := d.r.ReadSlice('\n')
		if !tooLong {
			sb.Write(chunk)
			if sb.Len() > maxFrameLine {
				tooLong = true
				sb.Reset()
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read event stream: %w", err)
		}
		if tooLong {
			d.skipped++
			return "", err
		}
		line := strings.TrimSuffix(sb.String(), "\n")
		line = strings.TrimSuffix(line, "\r")
		return line, err
	}
}

func (d *ChunkDecoder) frame(line string) (string, bool) {
	if !strings.HasPrefix(line, sseDataPrefix) {
		return "", false
	}
	payload := line[len(sseDataPrefix):]
	if payload == sseDone {
		return "", false
	}
	if !gjson.Valid(payload) {
		d.skipped++
		return "", false
	}
	content := gjson.Get(payload, "choices.0.delta.content")
	if content.Type != gjson.String {
		if !content.Exists() {
			d.skipped++
		}
		return "", false
	}
	if content.Str == "" {
		return "", false
	}
	return content.Str, true
}
