// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system shared by the TUI and
// the line REPL.
//
// Handlers return a tea.Cmd whose message (SystemMessageMsg, ErrorMsg,
// ShowHelpMsg, SettingsChangedMsg, PromptSentMsg) tells the front end what
// to show. The TUI runs these commands through Bubble Tea; the REPL calls
// Registry.Run and prints the message.
//
//	reg := commands.NewRegistry()
//	ctx := commands.NewContext(ctrl, models, reg)
//	cmd, err := reg.Execute(ctx, "/model gemma")
//
// Completer offers tab completion for command names, models, sessions and
// enumerated values.
package commands
