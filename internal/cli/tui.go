// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/codecraft-tui/internal/ui/chat"
)

func (r *runner) tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the chat interface (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.runTUI(cmd)
		},
	}
}

// runTUI opens the full-screen chat. With storage.watch set, edits made by
// another codecraft process show up live.
func (r *runner) runTUI(cmd *cobra.Command) error {
	if err := RequiresTTY("open the chat interface"); err != nil {
		return err
	}
	app, err := r.openApp(true)
	if err != nil {
		return err
	}
	defer app.Close()

	if !app.Client.IsConfigured() {
		app.Logger.Warn("no API key configured; requests will fail")
	}

	screen := chat.New(chat.Options{
		Controller: app.Controller,
		Models:     app.Models,
		Version:    Version,
	})
	defer screen.Close()

	program := tea.NewProgram(screen, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if app.Config.Storage.Watch {
		err := app.Store.Watch(ctx, func() { program.Send(chat.ReloadedMsg{}) })
		if err != nil {
			app.Logger.Warn("failed to watch chat history", "error", err)
		}
	}

	_, err = program.Run()
	return err
}
