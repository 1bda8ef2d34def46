// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package mediaserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ManuGH/couchplay/internal/domain/session/ports"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound    = errors.New("mediaserver: resource not found")
	ErrForbidden   = errors.New("mediaserver: access forbidden")
	ErrUnavailable = errors.New("mediaserver: host unreachable or transport failure")
	ErrUpstream    = errors.New("mediaserver: internal error (5xx)")
	ErrBadResponse = errors.New("mediaserver: invalid response format or malformed data")
	ErrTimeout     = errors.New("mediaserver: request timed out")
)

// Error wraps a sentinel with the failing operation and what the server said.
type Error struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // lower-level cause, e.g. a net.Error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("mediaserver: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the sentinel, and the port-level network error for transport failures.
func (e *Error) Unwrap() []error {
	errs := []error{e.Sentinel}
	if errors.Is(e.Sentinel, ErrUnavailable) || errors.Is(e.Sentinel, ErrTimeout) {
		errs = append(errs, ports.ErrNetworkUnavailable)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func statusSentinel(status int) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrForbidden
	case status >= 500:
		return ErrUpstream
	default:
		return ErrBadResponse
	}
}

func transportSentinel(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return ErrUnavailable
}

// result is the metric label for an error.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "bad_response"
	}
}
