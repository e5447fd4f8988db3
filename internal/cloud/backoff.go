// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"math"
	"time"
)

// BackoffPolicy describes how failed attempts are retried.
type BackoffPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration
	// Multiplier scales each subsequent wait.
	Multiplier float64
	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultBackoff retries up to three attempts, waiting 1s, 2s, 4s.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
	}
}

// Attempts returns MaxAttempts, never less than one.
func (p BackoffPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait after the given failed attempt (1-based), that is
// BaseDelay * Multiplier^(failed-1).
func (p BackoffPolicy) Delay(failed int) time.Duration {
	if failed < 1 {
		failed = 1
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(failed-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Schedule lists every wait the policy can produce: one per attempt, with
// the last entry unused because the final failure propagates immediately.
func (p BackoffPolicy) Schedule() []time.Duration {
	out := make([]time.Duration, p.Attempts())
	for i := range out {
		out[i] = p.Delay(i + 1)
	}
	return out
}
