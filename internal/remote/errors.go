// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotSignedIn is returned by operations that need a signed-in user.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrUnauthorized matches an APIError with status 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict matches an APIError with status 409.
	ErrConflict = errors.New("conflict")
)

// APIError is a non-2xx response from the document store.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("docstore: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("docstore: %s (%d)", e.Message, e.Status)
}

// Is matches ErrUnauthorized and ErrConflict by status.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}
