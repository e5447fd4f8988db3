// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Wiring of config, logging, store, client and controller.

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jeranaias/codecraft-tui/internal/clock"
	"github.com/jeranaias/codecraft-tui/internal/cloud"
	"github.com/jeranaias/codecraft-tui/internal/config"
	"github.com/jeranaias/codecraft-tui/internal/logging"
	"github.com/jeranaias/codecraft-tui/internal/registry"
	"github.com/jeranaias/codecraft-tui/internal/remote"
	"github.com/jeranaias/codecraft-tui/internal/session"
	"github.com/jeranaias/codecraft-tui/internal/storage"
)

// CredentialsFile is the sign-in state file in the data directory.
const CredentialsFile = "credentials.json"

// ErrNoRemoteURL is returned by account commands when remote.url is unset.
var ErrNoRemoteURL = errors.New("no document store configured")

// App is everything a chat front end needs, built from the config.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Models     *registry.Registry
	Store      *storage.Store
	Client     *cloud.Client
	Remote     *remote.Client // nil when remote.url is unset
	Controller *session.Controller

	closeLog func() error
}

// loadConfig reads the config file named by --config or the default one.
func (r *runner) loadConfig() (*config.Config, error) {
	if r.opts.ConfigPath != "" {
		return config.LoadFromPath(r.opts.ConfigPath)
	}
	return config.Load()
}

// setupLogging installs the process logger. The TUI always logs to the
// file since it owns the terminal.
func (r *runner) setupLogging(cfg *config.Config, tui bool) (*slog.Logger, func() error, error) {
	file, err := cfg.LogFile()
	if err != nil {
		return nil, nil, err
	}
	return logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		File:   file,
		Stderr: r.opts.Verbose && !tui,
	})
}

// openApp loads the config and builds the store, client and controller.
func (r *runner) openApp(tui bool) (*App, error) {
	cfg, err := r.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := r.setupLogging(cfg, tui)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger, Models: cfg.Registry(), closeLog: closeLog}
	if err := app.open(r.opts.Model); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) open(modelOverride string) error {
	cfg := a.Config
	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}

	defaultModel, err := a.Models.Resolve(cfg.Model.Default)
	if err != nil {
		return fmt.Errorf("model.default: %w", err)
	}

	scfg := storage.DefaultConfig(dataDir)
	scfg.DefaultModel = defaultModel
	scfg.Logger = a.Logger
	a.Store, err = storage.Open(scfg)
	if err != nil {
		return err
	}

	if cfg.Remote.URL != "" {
		rc, err := remote.NewClient(cfg.Remote.URL).
			WithLogger(a.Logger).
			WithCredentialsFile(filepath.Join(dataDir, CredentialsFile))
		if err != nil {
			a.Logger.Warn("failed to read saved credentials", "error", err)
		}
		a.Remote = rc
		if rc.SignedIn() {
			a.attachRemote(rc)
		}
	}

	a.Client = cloud.NewClient(cfg.API.Key, a.Models).
		WithEndpoint(cfg.API.Endpoint).
		WithOrigin(cfg.API.Origin).
		WithSiteName(cfg.API.SiteName).
		WithHeaderTimeout(cfg.API.Timeout.Std()).
		WithBackoff(cfg.Backoff()).
		WithRateLimit(cfg.API.RequestsPerMinute).
		WithLogger(a.Logger)

	a.Controller = session.New(a.Store, a.Client, a.Models, session.Config{
		SilenceTimeout: cfg.Session.SilenceTimeout.Std(),
		Clock:          clock.Real(),
		Logger:         a.Logger,
	})

	if a.Store.Preferences().Verbosity == "" && cfg.Model.Verbosity != "" {
		mode, err := registry.ParseMode(cfg.Model.Verbosity)
		if err != nil {
			return fmt.Errorf("model.verbosity: %w", err)
		}
		if err := a.Controller.SetVerbosity(mode); err != nil {
			return err
		}
	}
	if modelOverride != "" {
		if _, err := a.Controller.SetModel(modelOverride); err != nil {
			return err
		}
	}
	return nil
}

// attachRemote merges the remote chats into the store before mirroring
// local changes to it. Pushes replace the whole remote collection, so the
// remote stays detached for this run when the merge fails.
func (a *App) attachRemote(rc *remote.Client) {
	a.Store.AttachRemote(rc)
	ctx, cancel := context.WithTimeout(context.Background(), DefaultSyncTimeout)
	defer cancel()
	n, err := a.Store.Sync(ctx)
	if err != nil {
		a.Store.AttachRemote(nil)
		a.Logger.Warn("remote merge failed, not syncing this run", "remote", rc.BaseURL(), "error", err)
		return
	}
	a.Logger.Info("merged remote chats", "remote", rc.BaseURL(), "pulled", n)
}

// RequireAPIKey fails when no API key is configured.
func (a *App) RequireAPIKey() error {
	if !a.Client.IsConfigured() {
		return cloud.ErrNotConfigured
	}
	return nil
}

// Close stops the controller, waits for pending remote pushes and closes
// the log file.
func (a *App) Close() {
	if a.Controller != nil {
		a.Controller.Close()
	}
	if a.Store != nil {
		a.Store.Flush()
	}
	if a.closeLog != nil {
		if err := a.closeLog(); err != nil {
			fmt.Fprintln(os.Stderr, "failed to close log:", err)
		}
	}
}
