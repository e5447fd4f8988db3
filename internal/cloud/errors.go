// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/codecraft-tui/internal/util"
)

// Error variables for common completion-service failures. They are wrapped
// inside TransportError so callers can still match on them.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist upstream.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account has insufficient credits.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// TransportError is a network failure, a non-2xx response, or a read failure
// partway through a stream. The client retries it under its backoff policy;
// the caller only sees the error from the final attempt.
type TransportError struct {
	Status   int // HTTP status, 0 when the request never got a response
	Attempts int // attempts made before giving up
	Err      error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("transport error")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// AbortError reports that the caller's cancellation token fired. It is
// never retried. Partial holds the text streamed before the abort.
type AbortError struct {
	Partial string
	Err     error
}

func (e *AbortError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("request aborted (partial content received: %d chars)", len(e.Partial))
	}
	return "request aborted"
}

func (e *AbortError) Unwrap() error { return e.Err }

// MalformedRecordError describes a single stream record whose payload could
// not be decoded. The reassembler logs and drops these; they never reach
// callers of Complete.
type MalformedRecordError struct {
	Record string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed stream record %q: %v", truncate(e.Record, 80), e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// IsAbort reports whether err is an AbortError.
func IsAbort(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// =============================================================================
// HTTP STATUS MAPPING
// =============================================================================

// apiErrorResponse is the error envelope returned by OpenAI-compatible APIs.
type apiErrorResponse struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusError converts a non-2xx response into a TransportError.
func statusError(status int, body []byte) *TransportError {
	msg := strings.TrimSpace(string(body))
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	var base error
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		base = ErrAuthFailed
	case http.StatusPaymentRequired:
		base = ErrInsufficientCredits
	case http.StatusNotFound:
		base = ErrModelNotFound
	case http.StatusTooManyRequests:
		base = ErrRateLimited
	}

	var err error
	switch {
	case base != nil && msg != "":
		err = fmt.Errorf("%w: %s", base, truncate(msg, 200))
	case base != nil:
		err = base
	case msg != "":
		err = errors.New(truncate(msg, 200))
	default:
		err = errors.New(http.StatusText(status))
	}
	return &TransportError{Status: status, Err: err}
}

// truncate cuts s to n runes, marking the cut.
func truncate(s string, n int) string {
	if util.RuneLen(s) <= n {
		return s
	}
	return util.CutRunes(s, n) + "..."
}
