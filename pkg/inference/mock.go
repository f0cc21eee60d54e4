package inference

import (
	"context"
	"sync"
)

// Reply is one scripted answer from a Mock.
type Reply struct {
	Content string
	Err     error
}

// Mock is a Provider test double. It answers from VisionFunc when set,
// otherwise from its scripted replies in order, repeating the last one.
type Mock struct {
	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	VisionFunc func(ctx context.Context, req *VisionRequest) (*VisionResponse, error)
	HealthFunc func(ctx context.Context) error
	CloseFunc  func() error

	mu       sync.Mutex
	replies  []Reply
	counts   map[string]int
	requests []VisionRequest
}

// NewMock answers every vision request with content.
func NewMock(content string) *Mock {
	return NewScripted(Reply{Content: content})
}

// WithError fails every vision and health request with err.
func WithError(err error) *Mock {
	m := NewScripted(Reply{Err: err})
	m.HealthFunc = func(context.Context) error { return err }
	return m
}

// NewScripted answers successive vision requests with replies. Useful for
// a backend that recovers, or degrades, between calls.
func NewScripted(replies ...Reply) *Mock {
	return &Mock{replies: replies}
}

// Name returns NameValue or "mock".
func (m *Mock) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

// Vision records a copy of req and answers it.
func (m *Mock) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	m.mu.Lock()
	n := m.count("Vision")
	m.requests = append(m.requests, *req)
	m.mu.Unlock()

	if m.VisionFunc != nil {
		return m.VisionFunc(ctx, req)
	}
	if len(m.replies) == 0 {
		return nil, WrapError(m.Name(), ErrEmptyResponse)
	}

	reply := m.replies[min(n, len(m.replies))-1]
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &VisionResponse{
		Content: reply.Content,
		Model:   req.Model,
		Usage:   Usage{PromptTokens: 258, CompletionTokens: 4, TotalTokens: 262},
	}, nil
}

// Health calls HealthFunc, or succeeds.
func (m *Mock) Health(ctx context.Context) error {
	m.mu.Lock()
	m.count("Health")
	m.mu.Unlock()

	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close calls CloseFunc, or succeeds.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.count("Close")
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// count bumps and returns the call count for method. Callers hold mu.
func (m *Mock) count(method string) int {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[method]++
	return m.counts[method]
}

// CallCount returns how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[method]
}

// Requests returns copies of every vision request received.
func (m *Mock) Requests() []VisionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]VisionRequest(nil), m.requests...)
}

// Reset forgets recorded calls and requests. Scripted replies start over.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = nil
	m.requests = nil
}

var _ Provider = (*Mock)(nil)
