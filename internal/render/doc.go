// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns assistant text into display segments.
//
// Parse is a pure function of the accumulated text. It is called again
// after every delta, so a code block whose closing fence has not arrived
// shows up as an incomplete segment and is redrawn from scratch each time.
// Inline formatting and code drawing are pluggable (Formatter and
// CodeRenderer) with HTML and terminal implementations.
package render
