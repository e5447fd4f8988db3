// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and display for codecraft CLI commands.
//
// Commands always return errors; Execute prints them once and maps them
// to the exit code.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/codecraft-tui/internal/cloud"
	"github.com/jeranaias/codecraft-tui/internal/registry"
	"github.com/jeranaias/codecraft-tui/internal/remote"
	"github.com/jeranaias/codecraft-tui/internal/storage"
)

const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0
	// ExitError indicates any failure.
	ExitError = 1
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a failed command with a human-readable reason.
type CommandError struct {
	Command string // e.g. "sessions"
	Action  string // e.g. "delete"
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err with a recovery tip when one is known.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), err.Error())
	if tip := ErrorTip(err); tip != "" {
		fmt.Fprintf(w, "%s %s\n", DimStyle.Render("Tip:"), tip)
	}
}

// ErrorTip suggests a fix for well-known errors.
func ErrorTip(err error) string {
	var tty *TTYRequiredError
	switch {
	case errors.Is(err, cloud.ErrNotConfigured):
		return "set OPENROUTER_API_KEY or api.key in the config file (codecraft config path)"
	case errors.Is(err, registry.ErrUnknownModel):
		return "run 'codecraft models' to list available models"
	case errors.Is(err, storage.ErrSessionNotFound):
		return "run 'codecraft sessions list' to see session ids"
	case errors.Is(err, storage.ErrNoRemote), errors.Is(err, remote.ErrNotSignedIn):
		return "set remote.url and run 'codecraft auth signin'"
	case errors.Is(err, ErrNoRemoteURL):
		return "set remote.url in the config file or CODECRAFT_REMOTE_URL"
	case errors.As(err, &tty):
		return "pass the value as a flag instead"
	}
	return ""
}

// GetExitCode maps an error to the process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	return ExitError
}
