// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// Examples:
//   codecraft ask "Make a pricing table"       Stream the answer
//   codecraft ask --render "Explain flexbox"   Render markdown when done
//   echo "Build a navbar" | codecraft ask      Read the question from stdin
//   codecraft ask --new -m gemma "..."         Start a new session first

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/codecraft-tui/internal/registry"
)

type askOptions struct {
	newSession bool
	render     bool
	mode       string
}

func (r *runner) askCmd() *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask one question and print the answer",
		Long: `Ask one question in the current session and print the answer.

The question is read from the arguments, or from stdin when none are given.
The exchange is saved like any other chat.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" && !IsTTY() {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read question: %w", err)
				}
				question = strings.TrimSpace(string(data))
			}
			if question == "" {
				return errEmptyQuestion
			}
			return r.runAsk(cmd, question, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.newSession, "new", false, "Start a new session first")
	cmd.Flags().BoolVar(&opts.render, "render", false, "Render the answer as markdown when it completes")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Verbosity: short, medium or long (saved)")
	return cmd
}

// askResult is the --json payload.
type askResult struct {
	SessionID string `json:"sessionId"`
	Model     string `json:"model"`
	Title     string `json:"title"`
	Reply     string `json:"reply"`
}

func (r *runner) runAsk(cmd *cobra.Command, question string, opts askOptions) error {
	app, err := r.openApp(false)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := app.RequireAPIKey(); err != nil {
		return err
	}

	ctrl := app.Controller
	if opts.mode != "" {
		mode, err := registry.ParseMode(opts.mode)
		if err != nil {
			return err
		}
		if err := ctrl.SetVerbosity(mode); err != nil {
			return err
		}
	}
	if opts.newSession {
		if _, err := ctrl.NewSession(); err != nil {
			return err
		}
	}

	quiet := opts.render || r.opts.JSON
	err = runRequest(cmd.Context(), ctrl, cmd.OutOrStdout(), cmd.ErrOrStderr(), quiet, func() error {
		return ctrl.Send(question)
	})
	if err != nil {
		if r.opts.JSON {
			NewJSONErrorResponse("ask", err).Write(cmd.OutOrStdout())
		}
		return err
	}

	sess := ctrl.Current()
	reply, ok := sess.LastAssistant()
	if !ok {
		return nil
	}
	switch {
	case r.opts.JSON:
		return NewJSONResponse("ask", askResult{
			SessionID: sess.ID,
			Model:     sess.Model,
			Title:     sess.Title,
			Reply:     reply.Content,
		}).Write(cmd.OutOrStdout())
	case opts.render:
		fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(reply.Content, GetTerminalWidth()))
	}
	return nil
}
