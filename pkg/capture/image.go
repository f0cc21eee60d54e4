// Package capture turns user-provided bytes and camera frames into encoded
// still images ready to be attached to a classification request.
package capture

import (
	"encoding/base64"
	"image"
	"time"
)

// Source identifies how an image was acquired.
type Source string

const (
	SourceFile   Source = "file"
	SourceCamera Source = "camera"
)

// Image is one encoded still image. It is created once per user action and
// treated as immutable: helpers return new values instead of modifying it.
type Image struct {
	// Data holds the encoded bytes (JPEG, PNG, GIF or WebP).
	Data []byte

	// MIMEType is always an image/* type matching Data.
	MIMEType string

	Width  int
	Height int

	Source     Source
	CapturedAt time.Time

	decoded image.Image
}

// Len returns the encoded payload size in bytes.
func (i Image) Len() int {
	return len(i.Data)
}

// Empty reports whether the image carries no payload.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// Base64 returns the payload as standard base64 text.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the payload as a data: URL, the form browsers produce.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64()
}

// Decoded returns the decoded pixels, decoding the payload if needed.
func (i Image) Decoded() (image.Image, error) {
	if i.decoded != nil {
		return i.decoded, nil
	}
	img, _, err := decode(i.Data)
	return img, err
}
