package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies provider failures
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindRateLimit ErrorKind = "rate_limit"
	KindSafety    ErrorKind = "safety"
	KindEmpty     ErrorKind = "empty"
	KindAPI       ErrorKind = "api"
)

// ProviderError is returned by every provider on failure
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Status > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindOf returns the failure kind of err, or KindAPI for foreign errors
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if isTimeout(err) {
		return KindTimeout
	}
	return KindAPI
}

func newError(provider string, kind ErrorKind, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Status: status, Err: err}
}

// classify maps a transport error or HTTP status onto a ProviderError
func classify(provider string, status int, err error) *ProviderError {
	if err != nil && isTimeout(err) {
		return newError(provider, KindTimeout, status, err)
	}
	switch {
	case status == http.StatusTooManyRequests:
		return newError(provider, KindRateLimit, status, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return newError(provider, KindTimeout, status, err)
	}
	return newError(provider, KindAPI, status, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
