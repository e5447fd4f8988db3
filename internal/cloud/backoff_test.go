// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDefaultBackoff(t *testing.T) {
	p := DefaultBackoff()
	assert.Equal(t, 3, p.Attempts())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, p.Schedule())
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name   string
		policy BackoffPolicy
		failed int
		want   time.Duration
	}{
		{"first", BackoffPolicy{BaseDelay: time.Second, Multiplier: 2}, 1, time.Second},
		{"third", BackoffPolicy{BaseDelay: time.Second, Multiplier: 2}, 3, 4 * time.Second},
		{"capped", BackoffPolicy{BaseDelay: time.Second, Multiplier: 2, MaxDelay: 3 * time.Second}, 3, 3 * time.Second},
		{"zero multiplier is constant", BackoffPolicy{BaseDelay: 500 * time.Millisecond}, 4, 500 * time.Millisecond},
		{"clamped index", BackoffPolicy{BaseDelay: time.Second, Multiplier: 2}, 0, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Delay(tt.failed))
		})
	}
}

func TestBackoffAttemptsNeverBelowOne(t *testing.T) {
	assert.Equal(t, 1, BackoffPolicy{}.Attempts())
	assert.Equal(t, 1, BackoffPolicy{MaxAttempts: -2}.Attempts())
	assert.Len(t, BackoffPolicy{}.Schedule(), 1)
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuthFailed},
		{http.StatusForbidden, ErrAuthFailed},
		{http.StatusPaymentRequired, ErrInsufficientCredits},
		{http.StatusNotFound, ErrModelNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tt := range tests {
		err := statusError(tt.status, nil)
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		assert.True(t, IsTransport(err))
	}
}

func TestStatusErrorKeepsRunesWhole(t *testing.T) {
	body := []byte(strings.Repeat("é", 300))
	err := statusError(http.StatusBadGateway, body)

	msg := err.Error()
	assert.True(t, utf8.ValidString(msg), "message split a rune: %q", msg)
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.Equal(t, 200, strings.Count(msg, "é"))

	short := statusError(http.StatusBadGateway, []byte("ünïcode"))
	assert.Contains(t, short.Error(), "ünïcode")
	assert.NotContains(t, short.Error(), "...")
}
