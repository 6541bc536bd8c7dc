package tlm

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is matched by every strict-mode failure.
	ErrTimeout = errors.New("tlm: prompt timed out")

	ErrInvalidResponse = errors.New("tlm: invalid response")
	ErrEmptyBatch      = errors.New("tlm: no prompts given")
)

// PromptError reports the failure of one unit of work.
type PromptError struct {
	Index  int
	Prompt string
	Err    error
}

func (e *PromptError) Error() string {
	return fmt.Sprintf("%s: prompt %d: %v", ErrTimeout, e.Index, e.Err)
}

func (e *PromptError) Unwrap() error {
	return e.Err
}

// Is makes every PromptError a timeout-kind error, whatever its cause.
func (e *PromptError) Is(target error) bool {
	return target == ErrTimeout
}
