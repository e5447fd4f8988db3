// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	// ErrNotCommand is returned by Execute for input without a leading slash.
	ErrNotCommand = errors.New("not a command")

	// ErrUnknownCommand is returned by Execute for an unregistered name.
	ErrUnknownCommand = errors.New("unknown command")
)

// =============================================================================
// PARSE RESULT
// =============================================================================

// ParseResult contains the result of parsing user input.
type ParseResult struct {
	// IsCommand is true if the input starts with /
	IsCommand bool

	// Command is the matched command (nil if not found)
	Command *Command

	// Name is the command word as typed, lowercased (e.g., "/help")
	Name string

	Args []string

	// RawArgs is the text after the command word, untokenized
	RawArgs string
}

// Parse splits input into a command name and arguments and looks the
// command up.
func (r *Registry) Parse(input string) ParseResult {
	input = strings.TrimSpace(input)
	if !IsCommand(input) {
		return ParseResult{}
	}

	result := ParseResult{IsCommand: true}
	name, rest := splitName(input)
	result.Name = strings.ToLower(name)
	result.RawArgs = rest
	result.Args = ParseArgs(rest)
	result.Command = r.Get(result.Name)
	return result
}

// Execute parses input, validates its arguments and returns the command's
// tea.Cmd.
func (r *Registry) Execute(ctx *Context, input string) (tea.Cmd, error) {
	res := r.Parse(input)
	if !res.IsCommand {
		return nil, ErrNotCommand
	}
	if res.Command == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, res.Name)
	}
	if err := ValidateArgs(res.Command, res.Args); err != nil {
		return nil, err
	}
	return res.Command.Handler(ctx, res.Args), nil
}

// Run executes input and runs the resulting command synchronously. It is
// the entry point for front ends without a Bubble Tea runtime.
func (r *Registry) Run(ctx *Context, input string) (tea.Msg, error) {
	cmd, err := r.Execute(ctx, input)
	if err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, nil
	}
	return cmd(), nil
}

// =============================================================================
// TOKENIZING
// =============================================================================

// ParseArgs splits an argument string into words. Single or double quotes
// group words; a backslash inside quotes escapes a quote or backslash.
func ParseArgs(input string) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		inToken bool
	)

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quote != 0 && c == '\\' && i+1 < len(runes) && strings.ContainsRune(`"'\`, runes[i+1]):
			i++
			current.WriteRune(runes[i])
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
			inToken = true
		case quote == 0 && unicode.IsSpace(c):
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(c)
			inToken = true
		}
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func splitName(input string) (name, rest string) {
	end := strings.IndexFunc(input, unicode.IsSpace)
	if end == -1 {
		return input, ""
	}
	return input[:end], strings.TrimSpace(input[end:])
}

// IsCommand returns true if the input appears to be a command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// ExtractCommandName extracts just the command name from input.
// e.g., "/model gemma" -> "/model"
func ExtractCommandName(input string) string {
	input = strings.TrimSpace(input)
	if !IsCommand(input) {
		return ""
	}
	name, _ := splitName(input)
	return name
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateArgs checks required arguments and enum values.
func ValidateArgs(cmd *Command, args []string) error {
	if cmd == nil {
		return nil
	}

	for i, def := range cmd.Args {
		if i >= len(args) {
			if def.Required {
				return &ValidationError{
					Command:  cmd.Name,
					Arg:      def.Name,
					Message:  "required argument missing",
					Expected: def.Description,
				}
			}
			continue
		}
		if def.Type != ArgTypeEnum || len(def.Values) == 0 {
			continue
		}
		if !containsFold(def.Values, args[i]) {
			return &ValidationError{
				Command:  cmd.Name,
				Arg:      def.Name,
				Message:  "invalid value",
				Got:      args[i],
				Expected: strings.Join(def.Values, ", "),
			}
		}
	}
	return nil
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// ValidationError represents an argument validation error.
type ValidationError struct {
	Command  string
	Arg      string
	Message  string
	Got      string
	Expected string
}

func (e *ValidationError) Error() string {
	msg := e.Command + ": " + e.Message
	if e.Arg != "" {
		msg += " for argument '" + e.Arg + "'"
	}
	if e.Got != "" {
		msg += " (got: " + e.Got + ")"
	}
	if e.Expected != "" {
		msg += ", expected: " + e.Expected
	}
	return msg
}
