// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/codecraft-tui/internal/util"
)

// DefaultTitle is the title of a session before its first reply.
const DefaultTitle = "New Chat"

// TitleMaxRunes is the length a derived title is cut to before the
// ellipsis is added.
const TitleMaxRunes = 30

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is one chat: an ordered message log plus its title and model.
// The ID is the creation time in Unix milliseconds.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSession creates an empty session with the default title.
func NewSession(id, modelKey string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Title:     DefaultTitle,
		Model:     modelKey,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy safe to hand out of a locked store.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return &c
}

// Len returns the number of messages, notices included.
func (s *Session) Len() int {
	return len(s.Messages)
}

// IsEmpty reports whether the session has no messages.
func (s *Session) IsEmpty() bool {
	return len(s.Messages) == 0
}

// ConversationLen counts user and assistant messages, ignoring notices.
func (s *Session) ConversationLen() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role.Conversational() {
			n++
		}
	}
	return n
}

// Last returns the trailing message and true, or false when empty.
func (s *Session) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastAssistant returns the most recent assistant message.
func (s *Session) LastAssistant() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].IsAssistant() {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// History returns the user/assistant messages in order, dropping notices.
func (s *Session) History() []Message {
	out := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Role.Conversational() {
			out = append(out, m)
		}
	}
	return out
}

// CreatedAtFromID recovers the creation time encoded in a session id.
// It returns the zero time for ids that are not millisecond timestamps.
func CreatedAtFromID(id string) time.Time {
	ms, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// =============================================================================
// TITLES
// =============================================================================

var titleMarkup = strings.NewReplacer("`", "", "*", "", "_", "")

// DeriveTitle builds a session title from the first assistant reply. It
// takes the first line, trims it and strips backtick, asterisk and
// underscore markup. It then cuts the result to TitleMaxRunes and appends
// "..." when the cut lands exactly on that length.
func DeriveTitle(reply string) string {
	line := strings.TrimSpace(util.FirstLine(reply))
	line = titleMarkup.Replace(line)
	title := util.CutRunes(line, TitleMaxRunes)
	if util.RuneLen(title) == TitleMaxRunes {
		title += "..."
	}
	return title
}
