// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"strings"

	"github.com/jeranaias/codecraft-tui/internal/model"
	"github.com/jeranaias/codecraft-tui/internal/registry"
	"github.com/jeranaias/codecraft-tui/internal/util"
)

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// Models supplies model completions. Nil offers none.
	Models *registry.Registry

	// SessionsFn returns saved sessions, newest first.
	SessionsFn func() []*model.Session
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(r *Registry) *Completer {
	return &Completer{registry: r}
}

// Complete returns completions for the input up to the cursor position.
func (c *Completer) Complete(input string, cursorPos int) []Completion {
	if cursorPos >= 0 && cursorPos < len(input) {
		input = input[:cursorPos]
	}
	input = strings.TrimLeft(input, " \t")
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	endsWithSpace := strings.HasSuffix(input, " ")
	name, rest := splitName(input)
	if !endsWithSpace && rest == "" {
		return c.completeCommands(name)
	}

	cmd := c.registry.Get(strings.ToLower(name))
	if cmd == nil {
		return nil
	}

	args := ParseArgs(rest)
	argIndex := len(args)
	partial := ""
	if !endsWithSpace && len(args) > 0 {
		argIndex--
		partial = args[argIndex]
	}
	return c.completeArg(cmd, argIndex, partial)
}

// =============================================================================
// COMMAND COMPLETION
// =============================================================================

func (c *Completer) completeCommands(partial string) []Completion {
	var completions []Completion
	partial = strings.ToLower(partial)

	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}
		if strings.HasPrefix(cmd.Name, partial) {
			completions = append(completions, Completion{
				Value:       cmd.Name,
				Display:     cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
		}
		for _, alias := range cmd.Aliases {
			if strings.HasPrefix(alias, partial) {
				completions = append(completions, Completion{
					Value:       alias,
					Display:     alias + " -> " + cmd.Name,
					Description: cmd.Description,
					Score:       calculateScore(alias, partial) - 10,
				})
			}
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// ARGUMENT COMPLETION
// =============================================================================

func (c *Completer) completeArg(cmd *Command, argIndex int, partial string) []Completion {
	if argIndex < 0 || argIndex >= len(cmd.Args) {
		return nil
	}

	arg := cmd.Args[argIndex]
	switch arg.Type {
	case ArgTypeModel:
		return c.completeModels(partial)
	case ArgTypeSession:
		return c.completeSessions(partial)
	default:
		return completeFromList(arg.Values, partial)
	}
}

func (c *Completer) completeModels(partial string) []Completion {
	if c.Models == nil {
		return nil
	}
	partial = strings.ToLower(partial)

	var completions []Completion
	for _, m := range c.Models.List() {
		if strings.HasPrefix(m.Key, partial) || strings.HasPrefix(strings.ToLower(m.Name), partial) {
			completions = append(completions, Completion{
				Value:       m.Key,
				Display:     m.Key,
				Description: m.Name,
				Score:       calculateScore(m.Key, partial),
			})
		}
	}
	sortCompletions(completions)
	return completions
}

// completeSessions matches session IDs by prefix and titles by substring.
func (c *Completer) completeSessions(partial string) []Completion {
	if c.SessionsFn == nil {
		return nil
	}
	partial = strings.ToLower(partial)

	var completions []Completion
	for _, s := range c.SessionsFn() {
		idMatch := strings.HasPrefix(s.ID, partial)
		titleMatch := strings.Contains(strings.ToLower(s.Title), partial)
		if !idMatch && !titleMatch {
			continue
		}

		score := calculateScore(s.ID, partial)
		if !idMatch {
			score -= 5
		}
		completions = append(completions, Completion{
			Value:       s.ID,
			Display:     s.ID + " - " + util.TruncateRunes(s.Title, 30),
			Description: s.UpdatedAt.Format("2006-01-02 15:04"),
			Score:       score,
		})
	}
	sortCompletions(completions)
	return completions
}

func completeFromList(values []string, partial string) []Completion {
	var completions []Completion
	partial = strings.ToLower(partial)

	for _, value := range values {
		if strings.HasPrefix(strings.ToLower(value), partial) {
			completions = append(completions, Completion{
				Value:   value,
				Display: value,
				Score:   calculateScore(value, partial),
			})
		}
	}
	sortCompletions(completions)
	return completions
}

// calculateScore ranks a candidate. Exact matches win; otherwise shorter
// candidates rank higher.
func calculateScore(value, partial string) int {
	value = strings.ToLower(value)
	partial = strings.ToLower(partial)

	if value == partial {
		return 200
	}
	score := 100
	if strings.HasPrefix(value, partial) {
		score += 70 - len(value)
	}
	return score - len(value)/2
}

// sortCompletions sorts by score (descending), then alphabetically.
func sortCompletions(completions []Completion) {
	sort.SliceStable(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}

// =============================================================================
// COMPLETION NAVIGATION
// =============================================================================

// CompletionState holds the state for navigating completions.
type CompletionState struct {
	// Input the completions were computed for
	OriginalInput string

	Completions []Completion

	// Selected index (-1 for none)
	Selected int

	// Visible indicates if completions should be shown
	Visible bool
}

// NewCompletionState creates an empty completion state.
func NewCompletionState() *CompletionState {
	return &CompletionState{Selected: -1}
}

// Update replaces the completions and selects the first.
func (cs *CompletionState) Update(input string, completions []Completion) {
	cs.OriginalInput = input
	cs.Completions = completions
	cs.Selected = 0
	cs.Visible = len(completions) > 0
}

// Next moves to the next completion.
func (cs *CompletionState) Next() {
	if len(cs.Completions) == 0 {
		return
	}
	cs.Selected = (cs.Selected + 1) % len(cs.Completions)
}

// Prev moves to the previous completion.
func (cs *CompletionState) Prev() {
	if len(cs.Completions) == 0 {
		return
	}
	cs.Selected--
	if cs.Selected < 0 {
		cs.Selected = len(cs.Completions) - 1
	}
}

// Accept returns the input with the selected completion applied: the last
// word is replaced and a space appended.
func (cs *CompletionState) Accept() string {
	sel := cs.GetSelected()
	if sel == nil {
		return cs.OriginalInput
	}
	input := cs.OriginalInput
	cut := strings.LastIndexAny(input, " \t")
	return input[:cut+1] + sel.Value + " "
}

// Clear clears the completion state.
func (cs *CompletionState) Clear() {
	cs.OriginalInput = ""
	cs.Completions = nil
	cs.Selected = -1
	cs.Visible = false
}

// GetSelected returns the currently selected completion, or nil.
func (cs *CompletionState) GetSelected() *Completion {
	if cs.Selected < 0 || cs.Selected >= len(cs.Completions) {
		return nil
	}
	return &cs.Completions[cs.Selected]
}
