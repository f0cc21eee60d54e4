package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey      = errors.New("inference: API key required")
	ErrNoModel       = errors.New("inference: model required")
	ErrNoImage       = errors.New("inference: image required")
	ErrNoProject     = errors.New("inference: project required")
	ErrEmptyResponse = errors.New("inference: empty response")
)

// APIError is a non-2xx answer from a vision backend. Every provider maps
// its native error shape onto it so callers can treat backends alike.
// Code is the backend's symbolic status, e.g. "NOT_FOUND", if any.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("inference [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("inference [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
}

// IsRateLimited reports an HTTP 429.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports an HTTP 404. Retired model variants surface this way.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsRetryable reports whether repeating the same request may succeed.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.StatusCode >= 500
}

// Kind is a coarse failure category used for metrics and logs.
type Kind string

// KindUnavailable means the model is missing or retired; KindRejected
// means the backend refused the request or the image.
const (
	KindUnavailable Kind = "unavailable"
	KindQuota       Kind = "quota"
	KindAuth        Kind = "auth"
	KindRejected    Kind = "rejected"
	KindServer      Kind = "server"
	KindTimeout     Kind = "timeout"
	KindEmpty       Kind = "empty"
	KindOther       Kind = "error"
)

// Kind maps the status code to a failure category.
func (e *APIError) Kind() Kind {
	switch {
	case e.IsNotFound():
		return KindUnavailable
	case e.IsRateLimited():
		return KindQuota
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return KindAuth
	case e.StatusCode >= 500:
		return KindServer
	case e.StatusCode >= 400:
		return KindRejected
	}
	return KindOther
}

// KindOf categorizes any error returned by a Provider.
func KindOf(err error) Kind {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Kind()
	case errors.Is(err, ErrEmptyResponse):
		return KindEmpty
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindOther
}

// ProviderError tags an error that happened before or after the HTTP
// exchange (configuration, decoding) with the provider name.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError tags err with provider. A nil err stays nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
