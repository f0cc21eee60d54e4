package camera

import (
	"errors"
	"fmt"
)

// AccessMessage is the user-facing text for a denied or missing camera.
const AccessMessage = "Could not access camera. Please check permissions."

// Sentinel errors for camera operations.
var (
	// ErrCameraAccess matches every AccessError via errors.Is.
	ErrCameraAccess = errors.New("camera: access denied or no device")

	// ErrInvalidSession is returned when capturing from a session that is
	// not the manager's active session (never started, or stopped).
	ErrInvalidSession = errors.New("camera: session is not active")

	// ErrNoFrame is returned by devices that could not produce a frame.
	ErrNoFrame = errors.New("camera: no frame available")

	// ErrManagerClosed is returned by Start after Close.
	ErrManagerClosed = errors.New("camera: manager closed")
)

// AccessError is returned when a video device cannot be opened.
type AccessError struct {
	Device int
	Err    error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("camera: could not access device %d: %v", e.Device, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrCameraAccess) succeed.
func (e *AccessError) Is(target error) bool {
	return target == ErrCameraAccess
}
