// Package camera owns the video capture device used for live photos of waste
// items. A Manager hands out at most one active Session at a time and every
// session must be stopped, which releases the device.
package camera

import "time"

// Config holds the capture parameters applied when a session starts.
type Config struct {
	// Device is the OS video device index (0 is the first camera).
	Device int `json:"device"`

	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100

	// WarmupFrames are read and discarded right after the device opens so
	// auto exposure and white balance can settle.
	WarmupFrames int `json:"warmup_frames"`

	// PreviewInterval is the delay between preview frames.
	PreviewInterval time.Duration `json:"preview_interval"`
}

// Limits accepted by Validate.
const (
	MaxWidth        = 4096
	MaxHeight       = 2160
	MaxFramerate    = 60
	MaxWarmupFrames = 60
)

// DefaultConfig returns the recommended configuration: 720p is plenty for a
// vision model and keeps uploads small.
func DefaultConfig() Config {
	return Config{
		Device:          0,
		Width:           1280,
		Height:          720,
		Framerate:       30,
		Quality:         85,
		WarmupFrames:    5,
		PreviewInterval: 200 * time.Millisecond,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must be >= 0")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 4096")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 60")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.WarmupFrames < 0 || c.WarmupFrames > MaxWarmupFrames {
		errors = append(errors, "warmup_frames must be between 0 and 60")
	}
	if c.PreviewInterval < 10*time.Millisecond {
		errors = append(errors, "preview_interval must be at least 10ms")
	}

	return errors
}
