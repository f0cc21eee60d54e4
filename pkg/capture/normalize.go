package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Defaults for the encoding sent to vision models.
const (
	DefaultMaxDimension = 1536
	DefaultQuality      = 85
)

// NormalizeOptions controls how an Image is re-encoded for transmission.
type NormalizeOptions struct {
	// MaxDimension caps the long side in pixels. 0 keeps the original size.
	MaxDimension int

	// Quality is the JPEG quality (1-100).
	Quality int
}

// DefaultNormalizeOptions returns the settings used by the classifier.
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		MaxDimension: DefaultMaxDimension,
		Quality:      DefaultQuality,
	}
}

func (o NormalizeOptions) withDefaults() NormalizeOptions {
	if o.MaxDimension < 0 {
		o.MaxDimension = 0
	}
	if o.Quality < 1 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	return o
}

// Normalize re-encodes img as a JPEG no larger than opts.MaxDimension on its
// long side. A JPEG already within bounds is returned unchanged.
func Normalize(img Image, opts NormalizeOptions) (Image, error) {
	opts = opts.withDefaults()

	if img.Empty() {
		return Image{}, unreadable("file is empty", nil)
	}

	oversized := opts.MaxDimension > 0 &&
		(img.Width > opts.MaxDimension || img.Height > opts.MaxDimension)
	if img.MIMEType == "image/jpeg" && !oversized {
		return img, nil
	}

	src, err := img.Decoded()
	if err != nil {
		return Image{}, unreadable("not a supported image", err)
	}

	if oversized {
		b := src.Bounds()
		if b.Dx() >= b.Dy() {
			src = imaging.Resize(src, opts.MaxDimension, 0, imaging.Lanczos)
		} else {
			src = imaging.Resize(src, 0, opts.MaxDimension, imaging.Lanczos)
		}
	}

	// JPEG has no alpha; flatten onto white instead of black.
	b := src.Bounds()
	flat := imaging.New(b.Dx(), b.Dy(), color.White)
	flat = imaging.Overlay(flat, src, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
		return Image{}, fmt.Errorf("capture: encode jpeg: %w", err)
	}

	return Image{
		Data:       buf.Bytes(),
		MIMEType:   "image/jpeg",
		Width:      b.Dx(),
		Height:     b.Dy(),
		Source:     img.Source,
		CapturedAt: img.CapturedAt,
		decoded:    flat,
	}, nil
}
