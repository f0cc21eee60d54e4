// Package httpc builds the HTTP clients used to reach vision backends.
// Every client has an overall timeout and identifies itself with a
// User-Agent.
package httpc

import (
	"net"
	"net/http"
	"time"
)

// Defaults. Vision calls upload an image and wait for generation, so the
// overall timeout is generous while connecting is not.
const (
	DefaultTimeout         = 60 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	DefaultUserAgent       = "go-wasteid/1.0"
)

// Option customizes a client.
type Option func(*settings)

type settings struct {
	userAgent string
	transport http.RoundTripper
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(s *settings) { s.userAgent = ua }
}

// WithTransport replaces the pooled transport, e.g. in tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *settings) { s.transport = rt }
}

var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   DefaultConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	MaxIdleConns:          50,
	MaxIdleConnsPerHost:   4,
	IdleConnTimeout:       DefaultIdleConnTimeout,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: time.Second,
}

// NewClient returns a client with the given overall request timeout. A
// non-positive timeout means DefaultTimeout. Clients share one connection
// pool.
func NewClient(timeout time.Duration, opts ...Option) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := settings{userAgent: DefaultUserAgent, transport: sharedTransport}
	for _, opt := range opts {
		opt(&s)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgent{next: s.transport, value: s.userAgent},
	}
}

type userAgent struct {
	next  http.RoundTripper
	value string
}

func (u *userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" || u.value == "" {
		return u.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", u.value)
	return u.next.RoundTrip(r)
}
