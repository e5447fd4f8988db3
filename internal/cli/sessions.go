// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - Saved conversation management.
//
// Sessions are addressed by id or by their 1-based position in
// 'codecraft sessions list' (newest first).

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/codecraft-tui/internal/commands"
	"github.com/jeranaias/codecraft-tui/internal/model"
	"github.com/jeranaias/codecraft-tui/internal/storage"
)

// DefaultSyncTimeout bounds 'sessions sync'.
const DefaultSyncTimeout = 30 * time.Second

func (r *runner) sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session", "s"},
		Short:   "List, show and manage saved conversations",
		Long: `Manage saved conversations.

Examples:
  codecraft sessions list                  List sessions, newest first
  codecraft sessions list landing          Search titles and messages
  codecraft sessions show 1                Print the newest session
  codecraft sessions rename 2 "Navbar"     Rename a session
  codecraft sessions export 1 -f html      Export as HTML
  codecraft sessions delete 3 --yes        Delete without prompting
  codecraft sessions sync                  Merge with the document store`,
	}
	cmd.AddCommand(
		r.sessionsListCmd(),
		r.sessionsShowCmd(),
		r.sessionsSwitchCmd(),
		r.sessionsRenameCmd(),
		r.sessionsDeleteCmd(),
		r.sessionsClearCmd(),
		r.sessionsExportCmd(),
		r.sessionsSyncCmd(),
	)
	return cmd
}

// withApp opens the app for a short command and closes it afterwards.
func (r *runner) withApp(fn func(app *App) error) error {
	app, err := r.openApp(false)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// sessionSummary is the --json form of a session list entry.
type sessionSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	Messages  int       `json:"messages"`
	Current   bool      `json:"current"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func summarize(list []*model.Session, current string) []sessionSummary {
	out := make([]sessionSummary, 0, len(list))
	for _, s := range list {
		out = append(out, sessionSummary{
			ID:        s.ID,
			Title:     s.Title,
			Model:     s.Model,
			Messages:  s.ConversationLen(),
			Current:   s.ID == current,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	return out
}

func (r *runner) sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list [search]",
		Aliases: []string{"ls"},
		Short:   "List sessions, optionally filtered",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(app *App) error {
				list := app.Store.List()
				if len(args) == 1 {
					list = app.Store.Search(args[0])
				}
				current := app.Store.CurrentID()
				if r.opts.JSON {
					return NewJSONResponse("sessions list", summarize(list, current)).Write(cmd.OutOrStdout())
				}
				cmd.Print(storage.FormatSessionList(list, current))
				return nil
			})
		},
	}
}

func (r *runner) sessionsShowCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show [session]",
		Short: "Print a conversation (default: current)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(app *App) error {
				sess, err := pickSession(app.Store, args)
				if err != nil {
					return err
				}
				if r.opts.JSON {
					return NewJSONResponse("sessions show", sess).Write(cmd.OutOrStdout())
				}
				text := storage.ExportMarkdown(sess)
				if !raw && IsStdoutTTY() {
					text = renderMarkdown(text, GetTerminalWidth())
				}
				cmd.Print(text)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without rendering")
	return cmd
}

func (r *runner) sessionsSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <session>",
		Short: "Make a session current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(app *App) error {
				id, err := commands.ResolveSession(app.Store, args[0])
				if err != nil {
					return err
				}
				if err := app.Controller.Switch(id); err != nil {
					return err
				}
				sess := app.Controller.Current()
				cmd.Printf("Switched to %s\n", sess.Title)
				return nil
			})
		},
	}
}

func (r *runner) sessionsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <session> <title...>",
		Short: "Rename a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(app *App) error {
				id, err := commands.ResolveSession(app.Store, args[0])
				if err != nil {
					return err
				}
				title := strings.Join(args[1:], " ")
				if err := app.Store.Rename(id, title); err != nil {
					return NewCommandError("sessions", "rename", "could not rename", err)
				}
				cmd.Printf("Renamed %s to %q\n", id, title)
				return nil
			})
		},
	}
}

func (r *runner) sessionsDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <session>",
		Aliases: []string{"rm"},
		Short:   "Delete a session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(app *App) error {
				id, err := commands.ResolveSession(app.Store, args[0])
				if err != nil {
					return err
				}
				sess, err := app.Store.Get(id)
				if err != nil {
					return err
				}
				if err := RequireConfirmation(r.prompt, yes, fmt.Sprintf("delete %q", sess.Title)); err != nil {
					return err
				}
				if err := app.Controller.Delete(id); err != nil {
					return err
				}
				cmd.Printf("Deleted %s\n", sess.Title)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func (r *runner) sessionsClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(app *App) error {
				n := app.Store.Len()
				if err := RequireConfirmation(r.prompt, yes, fmt.Sprintf("delete all %d sessions", n)); err != nil {
					return err
				}
				if _, err := app.Controller.ClearAll(); err != nil {
					return err
				}
				cmd.Printf("Deleted %d sessions\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func (r *runner) sessionsExportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export [session]",
		Short: "Export a conversation as markdown, HTML or JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(app *App) error {
				sess, err := pickSession(app.Store, args)
				if err != nil {
					return err
				}
				data, err := commands.Export(sess, strings.ToLower(format))
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0644); err != nil {
					return NewCommandError("sessions", "export", "could not write "+output, err)
				}
				cmd.Printf("Exported %q to %s\n", sess.Title, output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "Format: "+strings.Join(commands.ExportFormats(), ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func (r *runner) sessionsSyncCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Merge local sessions with the document store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(app *App) error {
				if app.Remote == nil {
					return ErrNoRemoteURL
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				n, err := app.Store.Sync(ctx)
				if err != nil {
					return NewCommandError("sessions", "sync", "could not sync", err)
				}
				cmd.Printf("Synced with %s: %d sessions from remote, %d total\n",
					app.Remote.BaseURL(), n, app.Store.Len())
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", DefaultSyncTimeout, "Give up after this long")
	return cmd
}

// pickSession resolves args[0], or the current session when absent.
func pickSession(store *storage.Store, args []string) (*model.Session, error) {
	id := store.CurrentID()
	if len(args) > 0 {
		var err error
		if id, err = commands.ResolveSession(store, args[0]); err != nil {
			return nil, err
		}
	}
	return store.Get(id)
}
