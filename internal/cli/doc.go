// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the codecraft command tree.
//
// Commands are built with cobra. Each one loads the config, opens the
// App (store, completion client, remote and session controller) and closes
// it again, so short commands and the TUI share one wiring path.
//
// # Commands Overview
//
// Chat:
//   - (none), tui: Full-screen chat
//   - ask: One question, streamed to stdout
//   - chat: Line-mode chat with history and slash commands
//   - models, examples: The model catalog and its example prompts
//   - preview: Open or screenshot a generated HTML block
//
// Conversations and account:
//   - sessions: list, show, switch, rename, delete, clear, export, sync
//   - auth: signup, signin, signout, reset, profile
//
// Server and setup:
//   - serve: Run the document store
//   - config: show, init, path, get, set
//   - version
//
// # Output
//
// Commands that print data accept --json and write a JSONResponse
// envelope. Errors go to stderr with a tip when one is known, and the
// process exits with ExitError.
package cli
