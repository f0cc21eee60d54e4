package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes bounds FromReader when no limit is given.
const DefaultMaxBytes = 10 << 20

var formatMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// decode sniffs the format and decodes data, honouring EXIF orientation so
// phone photos arrive upright.
func decode(data []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		img, derr := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if derr == nil {
			return img, format, nil
		}
		err = derr
	}

	// Some WebP variants are only understood by libwebp.
	if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return img, "webp", nil
	}
	return nil, "", err
}

// FromBytes decodes a user-selected file into an Image. The bytes are kept
// as-is; use Normalize to re-encode them for transmission.
func FromBytes(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, unreadable("file is empty", nil)
	}

	img, format, err := decode(data)
	if err != nil {
		return Image{}, unreadable("not a supported image", err)
	}

	mime, ok := formatMIME[format]
	if !ok {
		return Image{}, unreadable(fmt.Sprintf("unsupported image format %q", format), nil)
	}

	b := img.Bounds()
	if b.Empty() {
		return Image{}, unreadable("image has no pixels", nil)
	}

	return Image{
		Data:       data,
		MIMEType:   mime,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Source:     SourceFile,
		CapturedAt: time.Now(),
		decoded:    img,
	}, nil
}

// FromReader reads at most limit bytes from r and decodes them with
// FromBytes. A non-positive limit means DefaultMaxBytes.
func FromReader(r io.Reader, limit int64) (Image, error) {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return Image{}, unreadable("read failed", err)
	}
	if int64(len(data)) > limit {
		return Image{}, unreadable(fmt.Sprintf("file exceeds %d bytes", limit), nil)
	}
	return FromBytes(data)
}

// FromDataURL decodes a "data:image/...;base64," URL, or bare base64 text,
// into an Image.
func FromDataURL(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Image{}, unreadable("file is empty", nil)
	}

	payload := s
	if strings.HasPrefix(s, "data:") {
		header, rest, ok := strings.Cut(s, ",")
		if !ok {
			return Image{}, unreadable("malformed data URL", nil)
		}
		if !strings.HasSuffix(header, ";base64") {
			return Image{}, unreadable("data URL is not base64 encoded", nil)
		}
		if !strings.HasPrefix(header, "data:image/") {
			return Image{}, unreadable("data URL is not an image", nil)
		}
		payload = rest
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return Image{}, unreadable("invalid base64 payload", err)
		}
	}
	return FromBytes(data)
}

// FromFrame encodes a raw camera frame as a JPEG Image.
func FromFrame(frame image.Image, quality int) (Image, error) {
	if frame == nil || frame.Bounds().Empty() {
		return Image{}, fmt.Errorf("capture: empty frame")
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return Image{}, fmt.Errorf("capture: encode frame: %w", err)
	}

	b := frame.Bounds()
	return Image{
		Data:       buf.Bytes(),
		MIMEType:   "image/jpeg",
		Width:      b.Dx(),
		Height:     b.Dy(),
		Source:     SourceCamera,
		CapturedAt: time.Now(),
		decoded:    frame,
	}, nil
}
