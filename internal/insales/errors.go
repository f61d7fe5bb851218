package insales

import (
	"errors"
	"fmt"
)

// NetworkError covers transport failures, timeouts and HTTP error statuses.
type NetworkError struct {
	Domain     string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("insales %s: http %d: %v", e.Domain, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("insales %s: %v", e.Domain, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means the shop answered but the payload had an unexpected shape
// or an unreadable paid_till.
type ParseError struct {
	Domain string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("insales %s: unexpected payload: %v", e.Domain, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Kind names the error class for logs and metrics labels.
func Kind(err error) string {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "network"
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	return "other"
}
