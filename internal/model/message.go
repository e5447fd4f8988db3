// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleNotice marks client-generated notices such as a failed request.
	// Notices are shown and persisted but never sent to the model.
	RoleNotice Role = "notice"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "CodeCraft"
	case RoleNotice:
		return "Notice"
	default:
		return string(r)
	}
}

// Conversational reports whether messages with this role belong in the
// history sent to the model.
func (r Role) Conversational() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole validates a stored role string. The legacy "ai" and "system"
// spellings map to assistant and notice.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "assistant", "ai":
		return RoleAssistant, nil
	case "notice", "system":
		return RoleNotice, nil
	}
	return "", fmt.Errorf("unknown message role %q", s)
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one entry in a chat session's log. Messages are immutable once
// appended; only the trailing message of a session may be replaced.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage creates a user message stamped with at.
func NewUserMessage(content string, at time.Time) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: at}
}

// NewAssistantMessage creates an assistant message stamped with at.
func NewAssistantMessage(content string, at time.Time) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: at}
}

// NewNotice creates a notice message stamped with at.
func NewNotice(content string, at time.Time) Message {
	return Message{Role: RoleNotice, Content: content, Timestamp: at}
}

// IsUser returns true if this is a user message.
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

// IsAssistant returns true if this is an assistant message.
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// IsNotice returns true if this is a client notice.
func (m Message) IsNotice() bool {
	return m.Role == RoleNotice
}
