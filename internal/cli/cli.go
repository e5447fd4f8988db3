// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Root command and global flags for codecraft.

package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// GlobalOptions holds the flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	Model      string
	Verbose    bool
	JSON       bool
}

// runner carries global state through command handlers.
type runner struct {
	opts   GlobalOptions
	prompt Prompter
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	configureColors()
	return ExecuteContext(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

// ExecuteContext runs the CLI with explicit arguments and output streams.
func ExecuteContext(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &runner{prompt: linerPrompter{}}, args, stdout, stderr)
}

func execute(ctx context.Context, r *runner, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(r)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		DisplayError(stderr, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&runner{prompt: linerPrompter{}})
}

func newRootCmd(r *runner) *cobra.Command {
	root := &cobra.Command{
		Use:   "codecraft",
		Short: "Streaming AI chat for building web pages, in the terminal",
		Long: `CodeCraft: chat with AI models that write HTML, CSS and JavaScript.

Usage modes:
  codecraft              Open the chat interface
  codecraft ask "..."    Ask one question and print the answer
  codecraft chat         Line-mode chat for plain terminals

Conversations are saved locally and can be synced to a codecraft
document store (codecraft serve, codecraft auth signin).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.runTUI(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&r.opts.ConfigPath, "config", "", "Config file (default ~/.codecraft/config.toml)")
	flags.StringVarP(&r.opts.Model, "model", "m", "", "Model to use (key or display name)")
	flags.BoolVarP(&r.opts.Verbose, "verbose", "v", false, "Log to stderr")
	flags.BoolVar(&r.opts.JSON, "json", false, "Output as JSON where supported")

	root.AddGroup(
		&cobra.Group{ID: "chat", Title: "Chat:"},
		&cobra.Group{ID: "data", Title: "Conversations and account:"},
		&cobra.Group{ID: "server", Title: "Server and setup:"},
	)

	for _, c := range []*cobra.Command{r.tuiCmd(), r.askCmd(), r.chatCmd(), r.modelsCmd(), r.examplesCmd(), r.previewCmd()} {
		c.GroupID = "chat"
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{r.sessionsCmd(), r.authCmd()} {
		c.GroupID = "data"
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{r.serveCmd(), r.configCmd(), versionCmd()} {
		c.GroupID = "server"
		root.AddCommand(c)
	}
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("codecraft %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
