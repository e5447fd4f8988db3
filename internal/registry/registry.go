// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownModel is returned when a model key is not registered.
var ErrUnknownModel = errors.New("unknown model")

// ErrUnknownMode is returned by ParseMode for unrecognised verbosity names.
var ErrUnknownMode = errors.New("unknown response mode")

// DefaultMaxTokens is the output budget requested when a model leaves
// MaxTokens unset.
const DefaultMaxTokens = 163840

// =============================================================================
// VERBOSITY MODES
// =============================================================================

// Mode is a response-verbosity preset that selects the system prompt's
// instructions about length and detail.
type Mode string

const (
	ModeShort  Mode = "short"
	ModeMedium Mode = "medium"
	ModeLong   Mode = "long"
)

// DefaultMode is used when no verbosity preference has been saved.
const DefaultMode = ModeMedium

// Modes lists every verbosity mode from least to most verbose.
func Modes() []Mode {
	return []Mode{ModeShort, ModeMedium, ModeLong}
}

// ParseMode converts a user-supplied string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeShort, ModeMedium, ModeLong:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q (want short, medium or long)", ErrUnknownMode, s)
}

// Next returns the following mode, wrapping from long back to short.
func (m Mode) Next() Mode {
	switch m {
	case ModeShort:
		return ModeMedium
	case ModeMedium:
		return ModeLong
	default:
		return ModeShort
	}
}

func (m Mode) String() string { return string(m) }

// =============================================================================
// MODEL CONFIGURATION
// =============================================================================

// Model is an immutable model configuration: upstream identity, display
// metadata, generation parameters and system-prompt material.
type Model struct {
	// Key is the short registry key ("deepseek"); sessions store this.
	Key string
	// ID is the upstream model identifier sent in requests.
	ID          string
	Name        string
	Description string

	Temperature      float32
	TopP             float32
	PresencePenalty  float32
	FrequencyPenalty float32
	MaxTokens        int

	// Context is the persona text at the top of every system prompt.
	Context string
	// ModeText maps each verbosity mode to its instruction line.
	ModeText map[Mode]string
	// Suffix, when set, is appended to the system prompt on its own line.
	Suffix string
}

// OutputBudget returns MaxTokens or DefaultMaxTokens when unset.
func (m Model) OutputBudget() int {
	if m.MaxTokens > 0 {
		return m.MaxTokens
	}
	return DefaultMaxTokens
}

// SystemPrompt renders the system prompt for mode. An unknown mode falls
// back to the default mode's text.
func (m Model) SystemPrompt(mode Mode) string {
	text, ok := m.ModeText[mode]
	if !ok {
		text = m.ModeText[DefaultMode]
	}
	var b strings.Builder
	b.WriteString(m.Context)
	b.WriteString("\nResponse Mode: ")
	b.WriteString(text)
	if m.Suffix != "" {
		b.WriteString("\n")
		b.WriteString(m.Suffix)
	}
	return b.String()
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry is a read-only catalog of model configurations.
type Registry struct {
	models     map[string]Model
	order      []string
	defaultKey string
}

// New builds a registry from models. The first model is the default.
// Later entries with a duplicate key replace earlier ones.
func New(models ...Model) *Registry {
	r := &Registry{models: make(map[string]Model, len(models))}
	for _, m := range models {
		if _, exists := r.models[m.Key]; !exists {
			r.order = append(r.order, m.Key)
		}
		r.models[m.Key] = m
	}
	if len(r.order) > 0 {
		r.defaultKey = r.order[0]
	}
	return r
}

// Get returns the model registered under key.
func (r *Registry) Get(key string) (Model, error) {
	m, ok := r.models[key]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, key)
	}
	return m, nil
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	_, ok := r.models[key]
	return ok
}

// BuildSystemPrompt returns the system prompt for the given model and mode.
// It is pure: the same inputs always produce the same prompt.
func (r *Registry) BuildSystemPrompt(key string, mode Mode) (string, error) {
	m, err := r.Get(key)
	if err != nil {
		return "", err
	}
	return m.SystemPrompt(mode), nil
}

// DefaultID returns the key of the default model.
func (r *Registry) DefaultID() string {
	return r.defaultKey
}

// IDs returns all keys in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// List returns all models in registration order.
func (r *Registry) List() []Model {
	out := make([]Model, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.models[k])
	}
	return out
}

// Next returns the key registered after key, wrapping around. Unknown keys
// map to the default.
func (r *Registry) Next(key string) string {
	for i, k := range r.order {
		if k == key {
			return r.order[(i+1)%len(r.order)]
		}
	}
	return r.defaultKey
}

// Resolve accepts either a registry key or an upstream model id and
// returns the registry key.
func (r *Registry) Resolve(name string) (string, error) {
	if r.Has(name) {
		return name, nil
	}
	keys := r.IDs()
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(r.models[k].ID, name) || strings.EqualFold(r.models[k].Name, name) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
}
