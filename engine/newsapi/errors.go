package newsapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies an upstream failure.
type Kind string

const (
	KindRateLimited  Kind = "rate_limited"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindUnavailable  Kind = "unavailable"
	KindClient       Kind = "client_error"
	KindTimeout      Kind = "timeout"
	KindNetwork      Kind = "network"
	KindMalformed    Kind = "malformed"
)

var kindMessages = map[Kind]string{
	KindRateLimited:  "Rate limit exceeded. Using cached content.",
	KindUnauthorized: "API key invalid. Using offline content.",
	KindForbidden:    "Access forbidden. Using cached content.",
	KindUnavailable:  "News service temporarily unavailable. Using offline content.",
	KindTimeout:      "Request timeout. Using cached content.",
	KindNetwork:      "Network error. Using offline content.",
	KindMalformed:    "Invalid response format from news service.",
}

// UpstreamError is a classified failure talking to the provider.
type UpstreamError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Message is the human-readable explanation for the failure.
func (e *UpstreamError) Message() string {
	if m, ok := kindMessages[e.Kind]; ok {
		return m
	}
	return "Using offline content due to connectivity issues."
}

// statusError classifies a non-200 response.
func statusError(code int) *UpstreamError {
	err := fmt.Errorf("http %d", code)
	switch {
	case code == http.StatusTooManyRequests:
		return &UpstreamError{Kind: KindRateLimited, StatusCode: code, Err: err}
	case code == http.StatusUnauthorized:
		return &UpstreamError{Kind: KindUnauthorized, StatusCode: code, Err: err}
	case code == http.StatusForbidden:
		return &UpstreamError{Kind: KindForbidden, StatusCode: code, Err: err}
	case code >= 500:
		return &UpstreamError{Kind: KindUnavailable, StatusCode: code, Err: err}
	default:
		return &UpstreamError{Kind: KindClient, StatusCode: code, Err: err}
	}
}

// transportError classifies an error from http.Client.Do.
func transportError(err error) *UpstreamError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &UpstreamError{Kind: KindTimeout, Err: err}
	}
	return &UpstreamError{Kind: KindNetwork, Err: err}
}
