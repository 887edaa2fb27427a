package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed chat completion.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindConnectivity: the proxy could not be reached at all.
	KindConnectivity
	KindNotFound
	KindAuth
	KindServer
	// KindHTTP covers any other non-2xx status.
	KindHTTP
	KindCanceled
	// KindStream: the response stream broke after it started.
	KindStream
	// KindDecode: a single-shot body was not a completion.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindServer:
		return "server"
	case KindHTTP:
		return "http"
	case KindCanceled:
		return "canceled"
	case KindStream:
		return "stream"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Sentinel errors usable with errors.Is against an *Error.
var (
	ErrConnectivity = errors.New("proxy unreachable")
	ErrNotFound     = errors.New("model not found")
	ErrAuth         = errors.New("authentication failed")
	ErrServer       = errors.New("server error")
	ErrHTTP         = errors.New("api error")
	ErrCanceled     = errors.New("request cancelled")
	ErrStream       = errors.New("response stream interrupted")
	ErrDecode       = errors.New("invalid completion response")
)

// Error is returned for every failed transport call. Its message is meant
// to be shown to the user verbatim.
type Error struct {
	Kind   ErrorKind
	Status int
	Model  string
	URL    string
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConnectivity:
		return fmt.Sprintf("Cannot connect to proxy at %s.\n"+
			"Ensure:\n"+
			"1. The proxy is running\n"+
			"2. The local model backend is running for local models\n"+
			"3. The proxy URL is correct", e.URL)
	case KindNotFound:
		return fmt.Sprintf("Model %q not found.\n"+
			"Check:\n"+
			"1. The model exists in the proxy's model registry\n"+
			"2. Local models are pulled\n"+
			"3. The API key is correct", e.Model)
	case KindAuth:
		return "Authentication failed.\nCheck API keys and restart the proxy."
	case KindServer:
		return "Server error:\n" + e.Body
	case KindHTTP:
		return fmt.Sprintf("API Error (%d): %s", e.Status, e.Body)
	case KindCanceled:
		return "request cancelled"
	case KindStream:
		if e.Err != nil {
			return "response stream interrupted: " + e.Err.Error()
		}
		return "response stream interrupted"
	case KindDecode:
		if e.Err != nil {
			return "invalid completion response: " + e.Err.Error()
		}
		return "invalid completion response"
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "unknown error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an *Error against the kind sentinels.
func (e *Error) Is(target error) bool {
	return sentinelFor(e.Kind) == target
}

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindConnectivity:
		return ErrConnectivity
	case KindNotFound:
		return ErrNotFound
	case KindAuth:
		return ErrAuth
	case KindServer:
		return ErrServer
	case KindHTTP:
		return ErrHTTP
	case KindCanceled:
		return ErrCanceled
	case KindStream:
		return ErrStream
	case KindDecode:
		return ErrDecode
	default:
		return nil
	}
}

// KindOf reports the ErrorKind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}

// statusError maps a non-2xx status to an *Error. readBody is invoked at
// most once and only for kinds whose message includes the body.
func statusError(status int, model, url string, readBody func() string) *Error {
	e := &Error{Status: status, Model: model, URL: url}
	switch {
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuth
	case status >= 500 && status <= 599:
		e.Kind = KindServer
		e.Body = readBody()
	default:
		e.Kind = KindHTTP
		e.Body = readBody()
	}
	return e
}

// canceledError wraps a context error, keeping it reachable through Unwrap.
func canceledError(model, url string, err error) *Error {
	return &Error{Kind: KindCanceled, Model: model, URL: url, Err: err}
}
