package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wasteid/internal/log"
	"github.com/teslashibe/go-wasteid/pkg/capture"
)

type fakeDevice struct {
	mu      sync.Mutex
	reads   int
	closes  int
	readErr error
}

func (d *fakeDevice) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.readErr != nil {
		return nil, d.readErr
	}
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	return img, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

type fakeOpener struct {
	mu      sync.Mutex
	devices []*fakeDevice
	err     error
}

func (o *fakeOpener) open(ctx context.Context, cfg Config) (Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	d := &fakeDevice{}
	o.devices = append(o.devices, d)
	return d, nil
}

func (o *fakeOpener) device(i int) *fakeDevice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.devices[i]
}

func newTestManager(open Opener) *Manager {
	return NewManager(open, DefaultConfig(), log.Discard())
}

func TestStartCaptureStop(t *testing.T) {
	opener := &fakeOpener{}
	m := newTestManager(opener.open)

	assert.Equal(t, StateIdle, m.State())

	s, err := m.Start(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, StateActive, m.State())
	assert.Same(t, s, m.Active())

	img, err := m.Capture(s)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)
	assert.Equal(t, capture.SourceCamera, img.Source)
	assert.Equal(t, 64, img.Width)
	assert.Equal(t, 48, img.Height)
	assert.False(t, img.Empty())

	m.Stop(s)
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, StateIdle, m.State())
	assert.Nil(t, m.Active())
	assert.Equal(t, 1, opener.device(0).closeCount())
}

func TestStopIsIdempotent(t *testing.T) {
	opener := &fakeOpener{}
	m := newTestManager(opener.open)

	s, err := m.Start(context.Background())
	require.NoError(t, err)

	m.Stop(s)
	m.Stop(s)
	m.Stop(nil)

	assert.Equal(t, 1, opener.device(0).closeCount())
	assert.Equal(t, StateStopped, s.State())
}

func TestCaptureAfterStop(t *testing.T) {
	opener := &fakeOpener{}
	m := newTestManager(opener.open)

	s, err := m.Start(context.Background())
	require.NoError(t, err)
	m.Stop(s)

	img, err := m.Capture(s)
	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.True(t, img.Empty())
}

func TestCaptureNilSession(t *testing.T) {
	m := newTestManager((&fakeOpener{}).open)

	_, err := m.Capture(nil)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestCaptureReadFailure(t *testing.T) {
	d := &fakeDevice{readErr: ErrNoFrame}
	m := newTestManager(func(ctx context.Context, cfg Config) (Device, error) {
		return d, nil
	})

	s, err := m.Start(context.Background())
	require.NoError(t, err)

	_, err = m.Capture(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoFrame)
	assert.Equal(t, StateActive, s.State())
}

func TestStartAccessDenied(t *testing.T) {
	opener := &fakeOpener{err: errors.New("permission denied")}
	m := newTestManager(opener.open)

	s, err := m.Start(context.Background())
	assert.Nil(t, s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCameraAccess)

	var accessErr *AccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, 0, accessErr.Device)
	assert.Contains(t, accessErr.Error(), "permission denied")

	assert.Equal(t, StateIdle, m.State())
	assert.Nil(t, m.Active())
}

func TestStartStopsPreviousSession(t *testing.T) {
	opener := &fakeOpener{}
	m := newTestManager(opener.open)

	first, err := m.Start(context.Background())
	require.NoError(t, err)

	second, err := m.Start(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, StateStopped, first.State())
	assert.Equal(t, 1, opener.device(0).closeCount())
	assert.Same(t, second, m.Active())

	_, err = m.Capture(first)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = m.Capture(second)
	assert.NoError(t, err)
}

func TestConcurrentStartsKeepOneActive(t *testing.T) {
	opener := &fakeOpener{}
	m := newTestManager(opener.open)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Start(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	opener.mu.Lock()
	devices := append([]*fakeDevice(nil), opener.devices...)
	opener.mu.Unlock()

	open := 0
	for _, d := range devices {
		if d.closeCount() == 0 {
			open++
		}
	}
	assert.Equal(t, 1, open)
	assert.NotNil(t, m.Active())
}

func TestStartCancelledWhileRequesting(t *testing.T) {
	release := make(chan struct{})
	d := &fakeDevice{}
	m := newTestManager(func(ctx context.Context, cfg Config) (Device, error) {
		<-release
		return d, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Start(ctx)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return m.State() == StateRequesting }, time.Second, time.Millisecond)
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateIdle, m.State())

	close(release)
	assert.Eventually(t, func() bool { return d.closeCount() == 1 }, time.Second, time.Millisecond)
	assert.Nil(t, m.Active())
}

func TestCaptureAndStop(t *testing.T) {
	opener := &fakeOpener{}
	m := newTestManager(opener.open)

	s, err := m.Start(context.Background())
	require.NoError(t, err)

	img, err := m.CaptureAndStop(s)
	require.NoError(t, err)
	assert.False(t, img.Empty())
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, StateIdle, m.State())
}

func TestCaptureAndStopReleasesOnFailure(t *testing.T) {
	d := &fakeDevice{readErr: errors.New("usb reset")}
	m := newTestManager(func(ctx context.Context, cfg Config) (Device, error) {
		return d, nil
	})

	s, err := m.Start(context.Background())
	require.NoError(t, err)

	_, err = m.CaptureAndStop(s)
	assert.Error(t, err)
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, 1, d.closeCount())
}

func TestWithSessionReleasesOnPanic(t *testing.T) {
	opener := &fakeOpener{}
	m := newTestManager(opener.open)

	assert.Panics(t, func() {
		_ = m.WithSession(context.Background(), func(s *Session) error {
			panic("boom")
		})
	})

	assert.Equal(t, 1, opener.device(0).closeCount())
	assert.Equal(t, StateIdle, m.State())
}

func TestWithSessionReturnsError(t *testing.T) {
	opener := &fakeOpener{}
	m := newTestManager(opener.open)
	want := errors.New("classify failed")

	var seen *Session
	err := m.WithSession(context.Background(), func(s *Session) error {
		seen = s
		_, err := m.Capture(s)
		require.NoError(t, err)
		return want
	})

	assert.ErrorIs(t, err, want)
	require.NotNil(t, seen)
	assert.Equal(t, StateStopped, seen.State())
}

func TestPreviewStopsWithSession(t *testing.T) {
	opener := &fakeOpener{}
	m := newTestManager(opener.open)

	s, err := m.Start(context.Background())
	require.NoError(t, err)

	var frames atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- m.Preview(context.Background(), s, 5*time.Millisecond, func(capture.Image) {
			frames.Add(1)
		})
	}()

	require.Eventually(t, func() bool { return frames.Load() >= 2 }, time.Second, time.Millisecond)
	m.Stop(s)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("preview did not stop with the session")
	}
}

func TestPreviewStopsWithContext(t *testing.T) {
	opener := &fakeOpener{}
	m := newTestManager(opener.open)

	s, err := m.Start(context.Background())
	require.NoError(t, err)
	defer m.Stop(s)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err = m.Preview(ctx, s, 5*time.Millisecond, func(capture.Image) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateActive, s.State())
}

func TestPreviewWithoutInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WarmupFrames = 0
	cfg.PreviewInterval = 0
	m := NewManager((&fakeOpener{}).open, cfg, log.Discard())

	s, err := m.Start(context.Background())
	require.NoError(t, err)

	var frames atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- m.Preview(context.Background(), s, 0, func(capture.Image) {
			frames.Add(1)
		})
	}()

	require.Eventually(t, func() bool { return frames.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	m.Stop(s)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("preview did not stop with the session")
	}
}

func TestCloseStopsActiveSession(t *testing.T) {
	opener := &fakeOpener{}
	m := newTestManager(opener.open)

	s, err := m.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.Equal(t, StateStopped, s.State())

	_, err = m.Start(context.Background())
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestApplyPresetKeepsDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = 2
	m := NewManager((&fakeOpener{}).open, cfg, log.Discard())

	require.NoError(t, m.ApplyPreset(PresetHD))
	got := m.GetConfig()
	assert.Equal(t, 1920, got.Width)
	assert.Equal(t, 2, got.Device)

	assert.Error(t, m.ApplyPreset("ultra"))
}

func TestSetConfigValidates(t *testing.T) {
	m := newTestManager((&fakeOpener{}).open)

	bad := DefaultConfig()
	bad.Width = 10
	assert.Error(t, m.SetConfig(bad))

	good := LowConfig()
	require.NoError(t, m.SetConfig(good))
	assert.Equal(t, 640, m.GetConfig().Width)
}

func TestStateText(t *testing.T) {
	b, err := StateActive.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "active", string(b))
	assert.Equal(t, "unknown", State(42).String())
}
