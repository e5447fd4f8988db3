// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for codecraft.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Examples:
//   codecraft config show                    Effective config, secrets masked
//   codecraft config show --json             Same, as JSON
//   codecraft config init                    Write a default config file
//   codecraft config get model.default
//   codecraft config set model.default gemma
//   codecraft config set api.requests_per_minute 20
//   codecraft config path                    Show config file location
//
// 'config set' edits only the file; environment overrides are not saved.

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/codecraft-tui/internal/config"
)

func (r *runner) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long: `View and modify the TOML config file.

Keys use dot notation: ` + strings.Join(config.GetAllKeys(), ", "),
	}
	cmd.AddCommand(
		r.configShowCmd(),
		r.configInitCmd(),
		r.configPathCmd(),
		r.configGetCmd(),
		r.configSetCmd(),
	)
	return cmd
}

// configPath is --config or the default location.
func (r *runner) configPath() (string, error) {
	if r.opts.ConfigPath != "" {
		return r.opts.ConfigPath, nil
	}
	return config.ConfigPath()
}

// loadConfigFile reads only the file (no env overrides) for editing.
func (r *runner) loadConfigFile() (*config.Config, string, error) {
	path, err := r.configPath()
	if err != nil {
		return nil, "", err
	}
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return nil, "", err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, "", err
	}
	return cfg, path, nil
}

func (r *runner) configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			safe := cfg.Redacted()
			if r.opts.JSON {
				return NewJSONResponse("config show", safe).Write(cmd.OutOrStdout())
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(safe)
		},
	}
}

func (r *runner) configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := r.configPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if r.opts.ConfigPath == "" {
				if err := config.EnsureConfigDir(); err != nil {
					return err
				}
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func (r *runner) configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := r.configPath()
			if err != nil {
				return err
			}
			cmd.Println(path)
			return nil
		},
	}
}

func (r *runner) configGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			if config.IsSecret(args[0]) && fmt.Sprint(v) != "" {
				v = "(set)"
			}
			cmd.Println(v)
			return nil
		},
	}
}

func (r *runner) configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := r.loadConfigFile()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if r.opts.ConfigPath == "" {
				if err := config.EnsureConfigDir(); err != nil {
					return err
				}
			}
			if err := config.SaveTOML(cfg, path); err != nil {
				return err
			}
			cmd.Printf("Set %s in %s\n", args[0], path)
			return nil
		},
	}
}
