package inference

import "encoding/base64"

// DefaultMIMEType is assumed when a request does not name one.
const DefaultMIMEType = "image/jpeg"

// EncodeBase64 encodes raw image bytes with standard padding.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DataURL builds a data URL for inline image attachments.
func DataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	return "data:" + mimeType + ";base64," + EncodeBase64(data)
}
