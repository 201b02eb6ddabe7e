package agent

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned for a user utterance with no content.
var ErrEmptyInput = errors.New("empty input")

// ToolLoopExceededError is returned when the model keeps requesting tool
// calls past the configured round cap. The turn is abandoned: nothing is
// persisted, and the conversation is exactly as it was before the turn.
type ToolLoopExceededError struct {
	Rounds int
}

// Error implements the error interface.
func (e *ToolLoopExceededError) Error() string {
	return fmt.Sprintf("tool loop exceeded %d rounds without a final reply", e.Rounds)
}
