package capture

import (
	"errors"
	"fmt"
)

// ErrUnreadableFile matches every UnreadableFileError via errors.Is.
var ErrUnreadableFile = errors.New("capture: unreadable image file")

// UnreadableFileError is returned when input bytes cannot be decoded as an
// image.
type UnreadableFileError struct {
	// Reason is a short, user-presentable explanation.
	Reason string

	// Err is the underlying decoder error, if any.
	Err error
}

func (e *UnreadableFileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrUnreadableFile, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrUnreadableFile, e.Reason)
}

func (e *UnreadableFileError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrUnreadableFile) succeed.
func (e *UnreadableFileError) Is(target error) bool {
	return target == ErrUnreadableFile
}

func unreadable(reason string, err error) error {
	return &UnreadableFileError{Reason: reason, Err: err}
}
