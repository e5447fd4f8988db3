// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"os"
)

// Theme and font size values accepted in Settings.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"

	FontSmall  = "small"
	FontMedium = "medium"
	FontLarge  = "large"
)

// Settings are the user's display settings.
type Settings struct {
	Theme    string `json:"theme"`
	FontSize string `json:"fontSize"`
}

// Preferences is everything persisted in prefs.json.
type Preferences struct {
	CurrentID string   `json:"currentChatId"`
	Settings  Settings `json:"settings"`
	Verbosity string   `json:"responseMode,omitempty"`
	Model     string   `json:"currentModel,omitempty"`
}

// DefaultPreferences returns light theme, medium font and no current
// session.
func DefaultPreferences() Preferences {
	return Preferences{
		Settings: Settings{Theme: ThemeLight, FontSize: FontMedium},
	}
}

// Validate checks the settings values.
func (s Settings) Validate() error {
	switch s.Theme {
	case ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("invalid theme %q (want light or dark)", s.Theme)
	}
	switch s.FontSize {
	case FontSmall, FontMedium, FontLarge:
	default:
		return fmt.Errorf("invalid font size %q (want small, medium or large)", s.FontSize)
	}
	return nil
}

// Preferences returns a copy of the stored preferences.
func (s *Store) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SavePreferences stores settings, verbosity and model from p. The current
// session is managed by SetCurrent, so p.CurrentID is ignored.
func (s *Store) SavePreferences(p Preferences) error {
	if err := p.Settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.prefs
	p.CurrentID = s.prefs.CurrentID
	s.prefs = p
	if err := s.savePrefsLocked(); err != nil {
		s.prefs = prev
		return err
	}
	return nil
}

func (s *Store) loadPrefsLocked() error {
	data, err := os.ReadFile(s.prefsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &PersistenceError{Op: "load", Path: s.prefsPath, Err: err}
	}
	p := DefaultPreferences()
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn("preferences are unreadable, using defaults", "path", s.prefsPath, "error", err)
		return nil
	}
	if p.Settings.Validate() != nil {
		p.Settings = DefaultPreferences().Settings
	}
	s.prefs = p
	return nil
}

func (s *Store) savePrefsLocked() error {
	data, err := json.MarshalIndent(s.prefs, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.prefsPath, Err: err}
	}
	if err := s.write(s.prefsPath, data, 0600); err != nil {
		return &PersistenceError{Op: "save", Path: s.prefsPath, Err: err}
	}
	return nil
}
