package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// DefaultProxyURL is used when no proxy URL is configured.
const DefaultProxyURL = "http://localhost:11434"

const (
	chatCompletionsPath = "/v1/chat/completions"

	// defaultHTTPTimeout bounds a whole request, including a streamed body.
	defaultHTTPTimeout = 10 * time.Minute

	// maxErrorBody caps how much of a failed response is read for the message.
	maxErrorBody = 64 * 1024
)

// CredentialSource selects the bearer credential for a model.
type CredentialSource interface {
	ForModel(model string) string
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL     string
	Credentials CredentialSource
	HTTPClient  *http.Client
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// Client talks to an OpenAI-compatible chat completions proxy. It is safe
// for concurrent use and holds no conversation state.
type Client struct {
	baseURL  string
	endpoint string
	creds    CredentialSource
	http     *http.Client
	log      zerolog.Logger
}

// NewClient returns a Client for cfg, applying defaults for empty fields.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultProxyURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:  baseURL,
		endpoint: baseURL + chatCompletionsPath,
		creds:    cfg.Credentials,
		http:     httpClient,
		log:      cfg.Logger.With().Str("component", "transport").Logger(),
	}
}

// BaseURL returns the proxy base URL in use.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send performs one chat completion. A non-nil onChunk requests streaming
// and is called with the cumulative text after every delta; a nil onChunk
// requests a single-shot response.
func (c *Client) Send(ctx context.Context, req Request, onChunk func(string)) (string, error) {
	if onChunk == nil {
		return c.Complete(ctx, req)
	}
	stream, err := c.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	return Collect(stream, onChunk)
}

// Stream starts a streaming chat completion. Connection and status errors
// are delivered as an EventError from Recv.
func (c *Client) Stream(ctx context.Context, req Request) (Stream, error) {
	body, err := c.encode(req, true)
	if err != nil {
		return nil, err
	}

	return newEventStream(ctx, req, c.baseURL, func(ctx context.Context, events chan<- Event) error {
		start := time.Now()
		resp, err := c.do(ctx, req, body, true)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		dec := NewChunkDecoder(resp.Body)
		var text strings.Builder
		chunks := 0
		for {
			delta, err := dec.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				if ctx.Err() != nil {
					return canceledError(req.Model, c.baseURL, ctx.Err())
				}
				return &Error{Kind: KindStream, Model: req.Model, URL: c.baseURL, Err: err}
			}
			text.WriteString(delta)
			chunks++
			if !emit(ctx, events, Event{Type: EventText, Text: text.String(), Delta: delta}) {
				return canceledError(req.Model, c.baseURL, ctx.Err())
			}
		}

		c.log.Debug().
			Str("model", req.Model).
			Int("chunks", chunks).
			Int("skipped_frames", dec.Skipped()).
			Dur("elapsed", time.Since(start)).
			Msg("stream finished")

		if !emit(ctx, events, Event{Type: EventDone, Text: text.String()}) {
			return canceledError(req.Model, c.baseURL, ctx.Err())
		}
		return nil
	}), nil
}

// Complete performs a single-shot chat completion and returns the first
// choice's message content unchanged.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	body, err := c.encode(req, false)
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, req, body, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", canceledError(req.Model, c.baseURL, ctx.Err())
		}
		return "", &Error{Kind: KindStream, Model: req.Model, URL: c.baseURL, Err: err}
	}
	if !gjson.ValidBytes(data) {
		return "", &Error{Kind: KindDecode, Model: req.Model, URL: c.baseURL, Err: fmt.Errorf("body is not JSON")}
	}
	content := gjson.GetBytes(data, "choices.0.message.content")
	if content.Type != gjson.String {
		return "", &Error{Kind: KindDecode, Model: req.Model, URL: c.baseURL, Err: fmt.Errorf("missing choices[0].message.content")}
	}
	return content.Str, nil
}

func (c *Client) encode(req Request, stream bool) ([]byte, error) {
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	messages := req.Messages
	if messages == nil {
		messages = []Message{}
	}
	body, err := json.Marshal(chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, req Request, body []byte, stream bool) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.credentialFor(req.Model))
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	c.log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Bool("stream", stream).
		Str("url", c.endpoint).
		Msg("sending chat completion")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceledError(req.Model, c.baseURL, ctx.Err())
		}
		c.log.Warn().Err(err).Str("url", c.baseURL).Msg("proxy unreachable")
		return nil, &Error{Kind: KindConnectivity, Model: req.Model, URL: c.baseURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		e := statusError(resp.StatusCode, req.Model, c.baseURL, func() string {
			return readErrorBody(resp.Body)
		})
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("kind", e.Kind.String()).
			Str("model", req.Model).
			Msg("chat completion failed")
		return nil, e
	}
	return resp, nil
}

func (c *Client) credentialFor(model string) string {
	if c.creds == nil {
		return ""
	}
	return c.creds.ForModel(model)
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "Unable to read error response"
	}
	return string(data)
}

// emit sends ev unless ctx is done first.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
