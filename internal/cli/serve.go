// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Self-hosted document store for sign-in and chat sync.

package cli

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/codecraft-tui/internal/docstore"
	"github.com/jeranaias/codecraft-tui/internal/logging"
)

var errNoJWTSecret = errors.New("docstore.jwt_secret is not set (or CODECRAFT_JWT_SECRET)")

func (r *runner) serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the document store server",
		Long: `Run the auth and chat document store that 'codecraft auth' and
'codecraft sessions sync' talk to.

The database is sqlite (docstore.db in the data directory) unless
docstore.driver is "postgres" with a docstore.dsn connection string.
Password reset codes are printed to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Docstore.JWTSecret == "" {
				return errNoJWTSecret
			}
			logger, closeLog, err := logging.Setup(logging.Options{Level: cfg.Log.Level, Stderr: true})
			if err != nil {
				return err
			}
			defer closeLog()

			dsn, err := cfg.DocstoreDSN()
			if err != nil {
				return err
			}
			if cfg.Docstore.Driver == docstore.DriverSQLite {
				if err := os.MkdirAll(filepath.Dir(dsn), 0700); err != nil {
					return err
				}
			}

			dcfg := docstore.DefaultConfig(dsn)
			dcfg.Driver = cfg.Docstore.Driver
			dcfg.Listen = cfg.Docstore.Listen
			if listen != "" {
				dcfg.Listen = listen
			}
			dcfg.JWTSecret = cfg.Docstore.JWTSecret
			dcfg.TokenTTL = cfg.Docstore.TokenTTL.Std()
			dcfg.Logger = logger

			srv, err := docstore.New(dcfg)
			if err != nil {
				return err
			}
			defer srv.Close()
			srv.WithResetNotifier(func(email, code string) {
				cmd.PrintErrf("password reset code for %s: %s\n", email, code)
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.PrintErrf("Serving on http://%s (%s)\n", srv.Listen(), dcfg.Driver)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "host:port to listen on (default docstore.listen)")
	return cmd
}
