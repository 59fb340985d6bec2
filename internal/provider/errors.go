// Package provider holds what every external service wrapper shares: a common
// error type and call metrics.
package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindAuth        Kind = "auth"
	KindRateLimit   Kind = "rate_limit"
	KindInvalid     Kind = "invalid_request"
	KindUnavailable Kind = "unavailable"
	KindEmpty       Kind = "empty_response"
	KindUnknown     Kind = "unknown"
)

// ProviderError is the error every LLM, TTS and STT wrapper returns when the
// remote service fails.
type ProviderError struct {
	Kind     Kind
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider, e.Op)
	if e.Kind != "" && e.Kind != KindUnknown {
		msg += " (" + string(e.Kind) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Wrap turns an SDK error into a ProviderError, keeping an existing one as is.
func Wrap(providerName, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Kind: kindFromMessage(err.Error()), Provider: providerName, Op: op, Err: err}
}

// Empty reports a call that succeeded but returned nothing usable.
func Empty(providerName, op, what string) error {
	return &ProviderError{Kind: KindEmpty, Provider: providerName, Op: op, Err: errors.New(what)}
}

// FromStatus builds the error for a non-2xx HTTP response.
func FromStatus(providerName, op string, status int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > 300 {
		text = text[:300] + "..."
	}
	return &ProviderError{
		Kind:     KindFromStatus(status),
		Provider: providerName,
		Op:       op,
		Err:      fmt.Errorf("status %d: %s", status, text),
	}
}

func KindFromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 400 && status < 500:
		return KindInvalid
	case status >= 500:
		return KindUnavailable
	}
	return KindUnknown
}

func kindFromMessage(msg string) Kind {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"),
		strings.Contains(msg, "unauthenticated"), strings.Contains(msg, "permissiondenied"),
		strings.Contains(msg, "permission denied"), strings.Contains(msg, "api key"):
		return KindAuth
	case strings.Contains(msg, "429"), strings.Contains(msg, "resourceexhausted"),
		strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"):
		return KindRateLimit
	case strings.Contains(msg, "400"), strings.Contains(msg, "invalidargument"),
		strings.Contains(msg, "invalid argument"):
		return KindInvalid
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"),
		strings.Contains(msg, "unavailable"), strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "connection refused"):
		return KindUnavailable
	}
	return KindUnknown
}

// KindOf returns the kind of the first ProviderError in err's chain.
func KindOf(err error) Kind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
