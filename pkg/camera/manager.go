package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-wasteid/internal/log"
	"github.com/teslashibe/go-wasteid/internal/metrics"
	"github.com/teslashibe/go-wasteid/pkg/capture"
)

// Manager owns the video device and hands out at most one active Session.
type Manager struct {
	open   Opener
	logger *slog.Logger

	// startMu serializes Start so two callers never both hold the device.
	startMu sync.Mutex

	mu     sync.RWMutex
	config Config
	state  State
	active *Session
	closed bool
}

// NewManager creates a camera manager. A nil opener uses OpenGoCV.
func NewManager(open Opener, cfg Config, logger *slog.Logger) *Manager {
	if open == nil {
		open = OpenGoCV
	}
	return &Manager{
		open:   open,
		config: cfg,
		state:  StateIdle,
		logger: log.Component(logger, "camera.Manager"),
	}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig updates the configuration used by the next Start.
func (m *Manager) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// ApplyPreset replaces the configuration with a named preset, keeping the
// configured device index.
func (m *Manager) ApplyPreset(name string) error {
	preset := GetPreset(name)
	if preset == nil {
		return fmt.Errorf("unknown preset: %s", name)
	}

	m.mu.Lock()
	preset.Device = m.config.Device
	m.config = *preset
	m.mu.Unlock()
	return nil
}

// State returns the manager's lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Active returns the active session, or nil.
func (m *Manager) Active() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Start requests the device and returns a new active session. Any session
// already active is stopped first. When the device cannot be opened the
// manager returns to idle and the error is an *AccessError.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	prev := m.active
	m.mu.Unlock()

	if prev != nil {
		m.Stop(prev)
	}

	m.mu.Lock()
	m.state = StateRequesting
	cfg := m.config
	m.mu.Unlock()

	device, err := m.openDevice(ctx, cfg)
	if err != nil {
		m.mu.Lock()
		m.state = StateIdle
		m.mu.Unlock()

		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			m.logger.Debug("camera request abandoned", "device", cfg.Device)
			return nil, err
		}
		m.logger.Warn("camera access failed", "device", cfg.Device, "error", err)
		return nil, &AccessError{Device: cfg.Device, Err: err}
	}

	s := newSession(uuid.NewString(), device)

	m.mu.Lock()
	if m.closed {
		m.state = StateIdle
		m.mu.Unlock()
		s.stop()
		return nil, ErrManagerClosed
	}
	m.active = s
	m.state = StateActive
	m.mu.Unlock()

	metrics.CameraSessionsActive.Set(1)
	m.logger.Info("camera session started", "session", s.ID, "device", cfg.Device,
		"width", cfg.Width, "height", cfg.Height)
	return s, nil
}

// openDevice runs the opener so a cancelled ctx returns immediately. A
// device that arrives after cancellation is closed.
func (m *Manager) openDevice(ctx context.Context, cfg Config) (Device, error) {
	type result struct {
		device Device
		err    error
	}

	done := make(chan result, 1)
	go func() {
		d, err := m.open(ctx, cfg)
		done <- result{d, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if err := ctx.Err(); err != nil {
			r.device.Close()
			return nil, err
		}
		return r.device, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil && r.device != nil {
				r.device.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Capture reads one frame from s and encodes it. s must be the manager's
// active session; otherwise ErrInvalidSession is returned.
func (m *Manager) Capture(s *Session) (capture.Image, error) {
	img, err := m.capture(s)
	if err != nil {
		metrics.CameraCapturesTotal.WithLabelValues("error").Inc()
		return capture.Image{}, err
	}
	metrics.CameraCapturesTotal.WithLabelValues("success").Inc()
	return img, nil
}

func (m *Manager) capture(s *Session) (capture.Image, error) {
	if s == nil || m.Active() != s {
		return capture.Image{}, ErrInvalidSession
	}

	frame, err := s.read()
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			return capture.Image{}, err
		}
		return capture.Image{}, fmt.Errorf("camera: read frame: %w", err)
	}

	img, err := capture.FromFrame(frame, m.GetConfig().Quality)
	if err != nil {
		return capture.Image{}, fmt.Errorf("camera: encode frame: %w", err)
	}
	return img, nil
}

// Stop ends s and releases the device. Stopping a stopped or nil session is
// a no-op.
func (m *Manager) Stop(s *Session) {
	if s == nil {
		return
	}

	released, err := s.stop()

	m.mu.Lock()
	wasActive := m.active == s
	if wasActive {
		m.active = nil
		m.state = StateIdle
	}
	m.mu.Unlock()

	if wasActive {
		metrics.CameraSessionsActive.Set(0)
	}
	if !released {
		return
	}
	if err != nil {
		m.logger.Warn("camera release failed", "session", s.ID, "error", err)
	}
	m.logger.Info("camera session stopped", "session", s.ID,
		"duration", time.Since(s.StartedAt).Round(time.Millisecond))
}

// CaptureAndStop captures one image from s and then stops it, whether or
// not the capture succeeded.
func (m *Manager) CaptureAndStop(s *Session) (capture.Image, error) {
	defer m.Stop(s)
	return m.Capture(s)
}

// WithSession starts a session, runs fn, and stops the session on every
// exit path including panics.
func (m *Manager) WithSession(ctx context.Context, fn func(*Session) error) error {
	s, err := m.Start(ctx)
	if err != nil {
		return err
	}
	defer m.Stop(s)
	return fn(s)
}

// Preview calls fn with a frame from s every interval until s stops or ctx
// ends. A zero interval uses the configured preview interval, or the
// default when none is configured. Individual frame failures are skipped.
func (m *Manager) Preview(ctx context.Context, s *Session, interval time.Duration, fn func(capture.Image)) error {
	if interval <= 0 {
		interval = m.GetConfig().PreviewInterval
	}
	if interval <= 0 {
		interval = DefaultConfig().PreviewInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			img, err := m.capture(s)
			if errors.Is(err, ErrInvalidSession) {
				return nil
			}
			if err != nil {
				m.logger.Debug("preview frame skipped", "session", s.ID, "error", err)
				continue
			}
			fn(img)
		}
	}
}

// Close stops any active session. Start fails afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	s := m.active
	m.mu.Unlock()

	m.Stop(s)
	return nil
}
