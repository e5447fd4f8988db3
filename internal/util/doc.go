// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across codecraft packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//
// String Utilities:
//   - TruncateRunes, CutRunes: UTF-8 safe truncation
//   - TruncateWidth, PadWidth: terminal-column aware truncation (go-runewidth)
//   - FirstLine: text up to the first newline
//
// # Usage
//
//	// Persist the chat collection without risking a torn file
//	err := util.AtomicWriteFile(path, data, 0o600)
//
//	// Fit a session title into a sidebar column
//	label := util.TruncateWidth(title, 24)
package util
