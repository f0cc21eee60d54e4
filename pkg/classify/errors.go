package classify

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCandidates is returned when the candidate list is empty.
	ErrNoCandidates = errors.New("no available model")

	// ErrEmptyName marks a response that sanitized to nothing usable.
	ErrEmptyName = errors.New("classify: model returned no usable name")

	// ErrAbandoned is returned when the caller cancelled the request. No
	// name is reported even if a candidate answered afterwards.
	ErrAbandoned = errors.New("classify: request abandoned")
)

// AttemptError is one failed candidate attempt.
type AttemptError struct {
	Candidate string
	Err       error
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Candidate, e.Err)
}

func (e AttemptError) Unwrap() error {
	return e.Err
}

// ClassificationError is returned when every candidate failed. Its message
// is the last failure's message.
type ClassificationError struct {
	Last     error
	Attempts []AttemptError
}

func (e *ClassificationError) Error() string {
	if e.Last == nil {
		return ErrNoCandidates.Error()
	}
	return e.Last.Error()
}

func (e *ClassificationError) Unwrap() error {
	return e.Last
}

func emptyName(raw string) error {
	const max = 80
	if len(raw) > max {
		raw = raw[:max] + "..."
	}
	return fmt.Errorf("%w (got %q)", ErrEmptyName, raw)
}
