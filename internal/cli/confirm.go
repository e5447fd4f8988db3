// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation and input prompts for codecraft CLI commands.
//
// Destructive commands take --yes. Without it they prompt, which needs a
// terminal on stdin.

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/peterh/liner"
)

// ErrCancelled is returned when the user declines a prompt.
var ErrCancelled = errors.New("cancelled")

// Prompter reads answers from the user. Tests replace it.
type Prompter interface {
	Line(prompt string) (string, error)
	Password(prompt string) (string, error)
}

// linerPrompter prompts on the terminal with line editing.
type linerPrompter struct{}

func (linerPrompter) Line(prompt string) (string, error) {
	if err := RequiresTTY("prompt for input"); err != nil {
		return "", err
	}
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	text, err := line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", ErrCancelled
	}
	return strings.TrimSpace(text), err
}

func (linerPrompter) Password(prompt string) (string, error) {
	if err := RequiresTTY("read a password"); err != nil {
		return "", err
	}
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	text, err := line.PasswordPrompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", ErrCancelled
	}
	return text, err
}

// =============================================================================
// CONFIRMATION
// =============================================================================

// RequireConfirmation returns nil when yes is set or the user answers y.
func RequireConfirmation(p Prompter, yes bool, action string) error {
	if yes {
		return nil
	}
	answer, err := p.Line(fmt.Sprintf("Are you sure you want to %s? [y/N]: ", action))
	if err != nil {
		var tty *TTYRequiredError
		if errors.As(err, &tty) {
			return fmt.Errorf("confirmation required but stdin is not a terminal; use --yes")
		}
		return err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return nil
	}
	return ErrCancelled
}

// promptIfEmpty returns value, or asks for it when empty.
func promptIfEmpty(p Prompter, value, prompt string, secret bool) (string, error) {
	if value != "" {
		return value, nil
	}
	if secret {
		return p.Password(prompt)
	}
	return p.Line(prompt)
}
