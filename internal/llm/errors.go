package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors for gateway failures the caller must branch on. All of
// them abort the current turn; none are retried internally, since a tool
// call already executed in an earlier round must not run twice.
var (
	// ErrTimeout indicates the model request exceeded its deadline.
	// Retryable by the caller, never auto-retried.
	ErrTimeout = errors.New("model request timed out")

	// ErrUnauthorized indicates the API rejected our credentials.
	ErrUnauthorized = errors.New("model API rejected credentials")

	// ErrRateLimited indicates the API throttled the request.
	ErrRateLimited = errors.New("model API rate limited")
)

// MalformedResponseError wraps any response body that could not be decoded
// into the expected shape. Raw parse failures never escape the gateway.
type MalformedResponseError struct {
	Detail string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed model response: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("malformed model response: %s", e.Detail)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
