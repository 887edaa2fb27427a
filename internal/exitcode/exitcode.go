package exitcode

import (
	"errors"

	"github.com/samsaffron/proxychat/internal/llm"
)

// Exit codes for proxychat commands
const (
	Success     = 0
	Error       = 1
	Unreachable = 3 // proxy could not be reached
	Auth        = 4 // credential rejected
	NotFound    = 5 // model not found
	Upstream    = 6 // proxy or backend returned an error
	Cancelled   = 130
)

// ExitError is an error that carries a specific exit code
type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	return e.Err.Error()
}

func (e ExitError) Unwrap() error {
	return e.Err
}

// Wrap attaches the exit code matching err. It returns nil for a nil err.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var exitErr ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return ExitError{Code: For(err), Err: err}
}

// For maps an error to an exit code.
func For(err error) int {
	if err == nil {
		return Success
	}
	var exitErr ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch llm.KindOf(err) {
	case llm.KindConnectivity:
		return Unreachable
	case llm.KindAuth:
		return Auth
	case llm.KindNotFound:
		return NotFound
	case llm.KindServer, llm.KindHTTP, llm.KindStream, llm.KindDecode:
		return Upstream
	case llm.KindCanceled:
		return Cancelled
	default:
		return Error
	}
}
