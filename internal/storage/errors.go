// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "fmt"

// =============================================================================
// ERRORS
// =============================================================================

// ErrSessionNotFound is returned when a session id is not in the store.
// Use errors.Is(err, ErrSessionNotFound) to check for this error.
var ErrSessionNotFound = &StoreError{Message: "session not found"}

// ErrNoRemote is returned by Sync when no remote store is attached.
var ErrNoRemote = &StoreError{Message: "no remote store attached"}

// StoreError represents a store-level error.
// It implements the error interface and can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// PersistenceError reports a failed write to local disk or to the remote
// store. Local failures fail the operation that caused them; remote
// failures are only logged.
type PersistenceError struct {
	Op     string // "save", "load", "push", "pull"
	Path   string // file path for local errors
	Remote bool
	Err    error
}

func (e *PersistenceError) Error() string {
	where := "local"
	if e.Remote {
		where = "remote"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s persistence failed: %s %s: %v", where, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s persistence failed: %s: %v", where, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
