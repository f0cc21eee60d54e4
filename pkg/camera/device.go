package camera

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Device is an opened video input. Implementations need not be safe for
// concurrent use; Session serializes access.
type Device interface {
	// Read returns the current frame.
	Read() (image.Image, error)

	// Close releases the device.
	Close() error
}

// Opener requests access to a video device. It fails when permission is
// denied or the device does not exist.
type Opener func(ctx context.Context, cfg Config) (Device, error)

// gocvDevice reads frames through OpenCV.
type gocvDevice struct {
	mu    sync.Mutex
	vc    *gocv.VideoCapture
	frame gocv.Mat
}

// OpenGoCV opens cfg.Device with OpenCV and discards cfg.WarmupFrames frames.
func OpenGoCV(ctx context.Context, cfg Config) (Device, error) {
	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open video capture: %w", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video device %d not available", cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	d := &gocvDevice{vc: vc, frame: gocv.NewMat()}

	for i := 0; i < cfg.WarmupFrames; i++ {
		if err := ctx.Err(); err != nil {
			d.Close()
			return nil, err
		}
		d.vc.Read(&d.frame)
	}

	return d, nil
}

// Read grabs the next frame and converts it to an image.Image.
func (d *gocvDevice) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ok := d.vc.Read(&d.frame); !ok || d.frame.Empty() {
		return nil, ErrNoFrame
	}

	img, err := d.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Close releases the frame buffer and the device.
func (d *gocvDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.frame.Close()
	return d.vc.Close()
}
