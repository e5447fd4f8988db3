// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth.go - Account commands against the codecraft document store.
//
// The server is remote.url in the config (see 'codecraft serve').
// Sign-in state is kept in credentials.json in the data directory.

package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/codecraft-tui/internal/docstore"
)

var errShortPassword = fmt.Errorf("password must be at least %d characters", docstore.MinPasswordLength)

func (r *runner) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "auth",
		Aliases: []string{"account"},
		Short:   "Sign in to sync conversations",
		Long: `Manage your account on the codecraft document store.

Examples:
  codecraft auth signup --email me@example.com --name Me
  codecraft auth signin --email me@example.com
  codecraft auth profile
  codecraft auth reset --email me@example.com
  codecraft auth reset --code 123456`,
	}
	cmd.AddCommand(
		r.authSignUpCmd(),
		r.authSignInCmd(),
		r.authSignOutCmd(),
		r.authResetCmd(),
		r.authProfileCmd(),
	)
	return cmd
}

// withRemote opens the app and requires a configured document store.
func (r *runner) withRemote(fn func(app *App) error) error {
	return r.withApp(func(app *App) error {
		if app.Remote == nil {
			return ErrNoRemoteURL
		}
		return fn(app)
	})
}

func (r *runner) readPassword(prompt string) (string, error) {
	pw, err := r.prompt.Password(prompt)
	if err != nil {
		return "", err
	}
	if len([]rune(pw)) < docstore.MinPasswordLength {
		return "", errShortPassword
	}
	return pw, nil
}

func (r *runner) authSignUpCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withRemote(func(app *App) error {
				var err error
				if email, err = promptIfEmpty(r.prompt, email, "Email: ", false); err != nil {
					return err
				}
				if name, err = promptIfEmpty(r.prompt, name, "Display name: ", false); err != nil {
					return err
				}
				pw, err := r.readPassword("Password: ")
				if err != nil {
					return err
				}
				user, err := app.Remote.SignUp(cmd.Context(), email, pw, name)
				if err != nil {
					return err
				}
				app.Store.AttachRemote(app.Remote)
				cmd.Printf("%s Signed up as %s\n", SuccessStyle.Render("✓"), user.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

func (r *runner) authSignInCmd() *cobra.Command {
	var (
		email string
		sync  bool
	)
	cmd := &cobra.Command{
		Use:     "signin",
		Aliases: []string{"login"},
		Short:   "Sign in and optionally sync",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withRemote(func(app *App) error {
				var err error
				if email, err = promptIfEmpty(r.prompt, email, "Email: ", false); err != nil {
					return err
				}
				pw, err := r.prompt.Password("Password: ")
				if err != nil {
					return err
				}
				user, err := app.Remote.SignIn(cmd.Context(), email, pw)
				if err != nil {
					return err
				}
				app.Store.AttachRemote(app.Remote)
				cmd.Printf("%s Signed in as %s\n", SuccessStyle.Render("✓"), user.Email)

				if !sync {
					return nil
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), DefaultSyncTimeout)
				defer cancel()
				n, err := app.Store.Sync(ctx)
				if err != nil {
					return NewCommandError("auth", "signin", "signed in but sync failed", err)
				}
				cmd.Printf("Synced %d sessions from remote\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().BoolVar(&sync, "sync", true, "Merge sessions after signing in")
	return cmd
}

func (r *runner) authSignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "signout",
		Aliases: []string{"logout"},
		Short:   "Sign out and forget the saved token",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withRemote(func(app *App) error {
				if !app.Remote.SignedIn() {
					cmd.Println("Not signed in.")
					return nil
				}
				app.Store.AttachRemote(nil)
				if err := app.Remote.SignOut(cmd.Context()); err != nil {
					return err
				}
				cmd.Println("Signed out.")
				return nil
			})
		},
	}
}

func (r *runner) authResetCmd() *cobra.Command {
	var email, code string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a forgotten password",
		Long: `Request a reset code with --email, then set a new password with --code.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withRemote(func(app *App) error {
				if code == "" {
					var err error
					if email, err = promptIfEmpty(r.prompt, email, "Email: ", false); err != nil {
						return err
					}
					if err := app.Remote.ResetPassword(cmd.Context(), email); err != nil {
						return err
					}
					cmd.Println("If the account exists, a reset code is on its way.")
					cmd.Println(DimStyle.Render("Then run: codecraft auth reset --code <code>"))
					return nil
				}
				pw, err := r.readPassword("New password: ")
				if err != nil {
					return err
				}
				if err := app.Remote.ConfirmReset(cmd.Context(), code, pw); err != nil {
					return err
				}
				cmd.Println("Password updated. Sign in with the new password.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&code, "code", "", "Reset code from the email")
	return cmd
}

func (r *runner) authProfileCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"whoami"},
		Short:   "Show or update your profile",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withRemote(func(app *App) error {
				profile, err := app.Remote.Profile(cmd.Context())
				if name != "" && err == nil {
					profile, err = app.Remote.UpdateProfile(cmd.Context(), name)
				}
				if err != nil {
					return err
				}
				if r.opts.JSON {
					return NewJSONResponse("auth profile", profile).Write(cmd.OutOrStdout())
				}
				cmd.Println(TitleStyle.Render("Profile"))
				cmd.Println(RenderField("Name", profile.DisplayName))
				cmd.Println(RenderField("Email", profile.Email))
				cmd.Println(RenderField("Member since", formatMillis(profile.CreatedAt)))
				cmd.Println(RenderField("Chats", strconv.Itoa(profile.TotalChats)))
				if profile.LastUpdated > 0 {
					cmd.Println(RenderField("Last synced", formatMillis(profile.LastUpdated)))
				}
				cmd.Println(RenderField("Server", app.Remote.BaseURL()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Set a new display name")
	return cmd
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}
