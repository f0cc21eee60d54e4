package camera

import (
	"image"
	"sync"
	"time"
)

// State is a point in the session lifecycle:
// Idle -> Requesting -> Active -> Stopped.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText lets State render as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is one grant of the video device. Sessions are single use: once
// stopped a new one must be started.
type Session struct {
	ID        string
	StartedAt time.Time

	mu        sync.Mutex
	state     State
	device    Device
	stoppedAt time.Time
}

func newSession(id string, device Device) *Session {
	return &Session{
		ID:        id,
		StartedAt: time.Now(),
		state:     StateActive,
		device:    device,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StoppedAt returns when the session was stopped, or the zero time.
func (s *Session) StoppedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stoppedAt
}

// read returns the current frame while the session is active.
func (s *Session) read() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return nil, ErrInvalidSession
	}
	return s.device.Read()
}

// stop releases the device once. It reports whether this call did the
// release, and the device's close error if any.
func (s *Session) stop() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return false, nil
	}

	s.state = StateStopped
	s.stoppedAt = time.Now()

	var err error
	if s.device != nil {
		err = s.device.Close()
		s.device = nil
	}
	return true, err
}
