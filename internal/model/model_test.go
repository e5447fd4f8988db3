// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"
	"time"
)

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{
			name:  "markup stripped and truncated",
			reply: "**Hello** world, this is a long reply that exceeds thirty characters",
			want:  "Hello world, this is a long re...",
		},
		{
			name:  "short reply kept",
			reply: "Hello!",
			want:  "Hello!",
		},
		{
			name:  "only first line",
			reply: "  `Intro`  \nsecond line that is very long and should not appear",
			want:  "Intro",
		},
		{
			name:  "exactly thirty gets ellipsis",
			reply: "abcdefghijklmnopqrstuvwxyz1234",
			want:  "abcdefghijklmnopqrstuvwxyz1234...",
		},
		{
			name:  "underscores removed",
			reply: "__init__ explained",
			want:  "init explained",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.reply); got != tt.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tt.reply, got, tt.want)
			}
		})
	}
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestNewSession(t *testing.T) {
	now := time.UnixMilli(1718000000000)
	s := NewSession("1718000000000", "gemma", now)

	if s.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", s.Title, DefaultTitle)
	}
	if !s.IsEmpty() {
		t.Error("new session should be empty")
	}
	if !CreatedAtFromID(s.ID).Equal(now) {
		t.Errorf("CreatedAtFromID = %v, want %v", CreatedAtFromID(s.ID), now)
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	s := NewSession("1", "deepseek", time.Now())
	s.Messages = append(s.Messages, NewUserMessage("hi", time.Now()))

	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Messages = append(c.Messages, NewAssistantMessage("x", time.Now()))

	if s.Messages[0].Content != "hi" || s.Len() != 1 {
		t.Errorf("Clone shares state with original: %+v", s.Messages)
	}
}

func TestHistoryDropsNotices(t *testing.T) {
	now := time.Now()
	s := NewSession("1", "deepseek", now)
	s.Messages = []Message{
		NewUserMessage("hi", now),
		NewNotice("Sorry, there was an error. Please try again.", now),
		NewAssistantMessage("Hello!", now),
	}

	h := s.History()
	if len(h) != 2 || h[0].Role != RoleUser || h[1].Role != RoleAssistant {
		t.Errorf("History() = %+v", h)
	}
	if s.ConversationLen() != 2 {
		t.Errorf("ConversationLen = %d, want 2", s.ConversationLen())
	}
	last, ok := s.LastAssistant()
	if !ok || last.Content != "Hello!" {
		t.Errorf("LastAssistant = %+v, %v", last, ok)
	}
}

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"user":      RoleUser,
		"assistant": RoleAssistant,
		"ai":        RoleAssistant,
		"system":    RoleNotice,
	}
	for in, want := range tests {
		got, err := ParseRole(in)
		if err != nil || got != want {
			t.Errorf("ParseRole(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseRole("tool"); err == nil {
		t.Error("ParseRole(tool) should fail")
	}
}

func TestSessionJSONShape(t *testing.T) {
	s := NewSession("1718000000000", "deepseek", time.UnixMilli(1718000000000).UTC())
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "title", "model", "messages"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("serialized session missing %q: %s", key, data)
		}
	}
}
