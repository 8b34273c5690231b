package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindCredential        Kind = "credential"
	KindRateLimit         Kind = "rate_limit"
	KindNetwork           Kind = "network"
	KindTimeout           Kind = "timeout"
	KindCanceled          Kind = "canceled"
	KindMalformedResponse Kind = "malformed_response"
	KindInvalidRequest    Kind = "invalid_request"
	KindUnavailable       Kind = "unavailable"
	KindAPI               Kind = "api"
)

// Error is returned by every adapter call that does not produce a reply.
type Error struct {
	Provider string
	Kind     Kind
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCredential reports a missing or rejected API key.
func (e *Error) IsCredential() bool {
	return e.Kind == KindCredential
}

// KindOf returns the kind of a provider error, or KindAPI for anything else.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindAPI
}

func IsCredential(err error) bool {
	return KindOf(err) == KindCredential
}

func errCredential(provider, msg string) *Error {
	return &Error{Provider: provider, Kind: KindCredential, Message: msg}
}

func errInvalid(provider, msg string) *Error {
	return &Error{Provider: provider, Kind: KindInvalidRequest, Message: msg}
}

func errMalformed(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindMalformedResponse, Err: err}
}

// kindForStatus maps an HTTP status onto the error taxonomy.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindCredential
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	case status == http.StatusBadRequest, status == http.StatusNotFound,
		status == http.StatusRequestEntityTooLarge, status == http.StatusUnprocessableEntity:
		return KindInvalidRequest
	case status >= 500:
		return KindUnavailable
	default:
		return KindAPI
	}
}

// apiErrorBody covers both the OpenAI and Anthropic error envelopes.
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// statusError builds an Error from a non-2xx response body.
func statusError(provider string, status int, body []byte) *Error {
	msg := strings.TrimSpace(string(body))
	var env apiErrorBody
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		msg = env.Error.Message
	}
	return &Error{Provider: provider, Kind: kindForStatus(status), Status: status, Message: truncate(msg, maxErrorMessage)}
}

const maxErrorMessage = 512

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// transportError classifies failures that happen before a response arrives.
func transportError(provider string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Provider: provider, Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Provider: provider, Kind: KindCanceled, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Provider: provider, Kind: KindTimeout, Err: err}
	}
	return &Error{Provider: provider, Kind: KindNetwork, Err: err}
}
