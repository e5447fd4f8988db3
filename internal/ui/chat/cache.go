// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/jeranaias/codecraft-tui/internal/model"

// renderCache keeps the rendered form of committed messages so a delta
// only re-renders the draft. Committed messages never change except the
// trailing one, so entries are keyed by position and checked against the
// content they were rendered from.
type renderCache struct {
	sessionID string
	width     int
	dark      bool
	entries   []cacheEntry

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	msg      model.Message
	rendered string
}

// reset drops every entry when the session, width or palette changed.
func (c *renderCache) reset(sessionID string, width int, dark bool) {
	if c.sessionID == sessionID && c.width == width && c.dark == dark {
		return
	}
	c.sessionID = sessionID
	c.width = width
	c.dark = dark
	c.entries = nil
}

// get returns the cached rendering of msg at index i, calling render on a
// miss.
func (c *renderCache) get(i int, msg model.Message, render func(model.Message) string) string {
	if i < len(c.entries) && c.entries[i].msg == msg {
		c.hits++
		return c.entries[i].rendered
	}
	c.misses++
	out := render(msg)
	if i < len(c.entries) {
		c.entries[i] = cacheEntry{msg: msg, rendered: out}
		c.entries = c.entries[:i+1]
	} else if i == len(c.entries) {
		c.entries = append(c.entries, cacheEntry{msg: msg, rendered: out})
	}
	return out
}

// truncate forgets entries from n on, after messages were removed.
func (c *renderCache) truncate(n int) {
	if n < len(c.entries) {
		c.entries = c.entries[:n]
	}
}
