// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat for terminals without full-screen support.
//
// Command: chat
// Short:   Start a line-mode chat session
//
// Interactive commands are the same slash commands as the chat interface
// (/help lists them). Ctrl+C cancels a reply; Ctrl+D exits.

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/codecraft-tui/internal/commands"
)

// HistoryFile holds REPL input history in the data directory.
const HistoryFile = "history"

func (r *runner) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start a line-mode chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.runChat(cmd)
		},
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for the REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI that keeps history in historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	c := &ChatCLI{line: line, historyFile: historyFile}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line, adding non-empty input to history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history (0600).
func (c *ChatCLI) SaveHistory() error {
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = c.line.WriteHistory(f)
	return err
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

func (r *runner) runChat(cmd *cobra.Command) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}
	app, err := r.openApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	reg := commands.NewRegistry()
	cmdCtx := commands.NewContext(app.Controller, app.Models, reg)

	repl := NewChatCLI(filepath.Join(app.Store.Dir(), HistoryFile))
	defer repl.Close()

	printChatBanner(out, app)
	if !app.Client.IsConfigured() {
		DisplayError(errw, app.RequireAPIKey())
	}

	for {
		input, err := repl.ReadInput("› ")
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			continue
		case errors.Is(err, io.EOF):
			fmt.Fprintln(out)
			return nil
		case err != nil:
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		label := modelLabel(app)
		if !commands.IsCommand(input) {
			err := runLabeledRequest(cmd.Context(), app.Controller, out, errw, false, label, func() error {
				return app.Controller.Send(input)
			})
			if err != nil {
				DisplayError(errw, err)
			}
			continue
		}

		// Commands such as /retry start a request, so they run like one.
		var msg tea.Msg
		err = runLabeledRequest(cmd.Context(), app.Controller, out, errw, false, label, func() error {
			var runErr error
			msg, runErr = reg.Run(cmdCtx, input)
			return runErr
		})
		if err != nil {
			DisplayError(errw, err)
			continue
		}
		if quit := printCommandResult(out, errw, reg, msg); quit {
			return nil
		}
	}
}

// printCommandResult shows a command's message. It reports true for quit.
func printCommandResult(out, errw io.Writer, reg *commands.Registry, msg tea.Msg) bool {
	switch msg := msg.(type) {
	case tea.QuitMsg:
		return true
	case commands.SystemMessageMsg:
		fmt.Fprintln(out, strings.TrimRight(msg.Content, "\n"))
	case commands.ErrorMsg:
		fmt.Fprintln(errw, ErrorStyle.Render(msg.Error()))
		if msg.Tip != "" {
			fmt.Fprintln(errw, DimStyle.Render(msg.Tip))
		}
	case commands.ShowHelpMsg:
		fmt.Fprintln(out, commands.FormatHelp(reg, msg.Topic))
	case commands.SettingsChangedMsg:
		fmt.Fprintln(out, SuccessStyle.Render("Settings saved."))
	}
	return false
}

func printChatBanner(out io.Writer, app *App) {
	sess := app.Controller.Current()
	fmt.Fprintln(out, TitleStyle.Render("CodeCraft")+" "+DimStyle.Render("v"+Version))
	fmt.Fprintln(out, RenderField("Model", modelLabel(app)))
	fmt.Fprintln(out, RenderField("Mode", string(app.Controller.Mode())))
	fmt.Fprintln(out, RenderField("Session", sess.Title))
	fmt.Fprintln(out, DimStyle.Render("Type /help for commands, Ctrl+C to stop a reply, Ctrl+D to exit."))
	fmt.Fprintln(out, RenderSeparator())
}

func modelLabel(app *App) string {
	key := app.Models.DefaultID()
	if sess := app.Controller.Current(); sess != nil && app.Models.Has(sess.Model) {
		key = sess.Model
	}
	if m, err := app.Models.Get(key); err == nil {
		return m.Name
	}
	return key
}
