package transcription

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a transcription failure. Every failure maps to exactly
// one kind; the kind decides retryability.
type Kind string

const (
	KindRateLimited  Kind = "rate_limited"  // HTTP 429
	KindServerError  Kind = "server_error"  // HTTP 5xx
	KindNetworkError Kind = "network_error" // connection reset / timeout / DNS
	KindClientError  Kind = "client_error"  // HTTP 4xx excluding 429
	KindUnknown      Kind = "unknown"
)

// ServiceError is the normalized transcription failure surfaced to the
// pipeline. Unknown errors stay retryable: fail open toward availability
// rather than silently dropping a recording.
type ServiceError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transcription %s (http %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transcription %s: %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServerError, KindNetworkError, KindUnknown:
		return true
	case KindClientError:
		return false
	}
	return true
}

// Classify wraps an arbitrary failure into a ServiceError.
func Classify(statusCode int, body string, err error) *ServiceError {
	switch {
	case statusCode == 429:
		return &ServiceError{Kind: KindRateLimited, StatusCode: statusCode, Message: body, Err: err}
	case statusCode >= 500 && statusCode <= 599:
		return &ServiceError{Kind: KindServerError, StatusCode: statusCode, Message: body, Err: err}
	case statusCode >= 400 && statusCode <= 499:
		return &ServiceError{Kind: KindClientError, StatusCode: statusCode, Message: body, Err: err}
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &ServiceError{Kind: KindNetworkError, Message: "request timeout", Err: err}
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return &ServiceError{Kind: KindNetworkError, Message: netErr.Error(), Err: err}
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return &ServiceError{Kind: KindNetworkError, Message: opErr.Error(), Err: err}
		}
		return &ServiceError{Kind: KindUnknown, Message: err.Error(), Err: err}
	}

	return &ServiceError{Kind: KindUnknown, Message: body}
}
