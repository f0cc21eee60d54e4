// Package hub fans camera preview frames and status events out to websocket
// clients using a single goroutine that owns the client set.
package hub

import "time"

// Message is one broadcast payload: a JPEG preview frame or an encoded
// Event.
type Message struct {
	Frame bool
	Data  []byte
}

// frameMessage wraps a JPEG preview frame.
func frameMessage(jpeg []byte) Message {
	return Message{Frame: true, Data: jpeg}
}

// eventMessage wraps an encoded Event.
func eventMessage(data []byte) Message {
	return Message{Data: data}
}

// Event is the JSON envelope for everything that is not a frame, e.g.
// session state changes and classification results.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}
