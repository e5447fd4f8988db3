// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/codecraft-tui/internal/commands"
	"github.com/jeranaias/codecraft-tui/internal/registry"
)

func (r *runner) modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			models := cfg.Registry()
			current, err := models.Resolve(cfg.Model.Default)
			if err != nil {
				current = models.DefaultID()
			}
			if r.opts.JSON {
				return NewJSONResponse("models", models.List()).Write(cmd.OutOrStdout())
			}
			cmd.Print(commands.FormatModels(models, current))
			return nil
		},
	}
}

func (r *runner) examplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples [model] [number]",
		Short: "Show example prompts for a model",
		Long: `Show the example prompts for a model (default: model.default).

With a number, print just that prompt, ready to pipe:
  codecraft examples deepseek 1 | codecraft ask`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			models := cfg.Registry()
			name := cfg.Model.Default
			if len(args) > 0 {
				name = args[0]
			}
			key, err := models.Resolve(name)
			if err != nil {
				return err
			}

			show := registry.Examples(key)
			if len(show.Examples) == 0 {
				cmd.Printf("No examples for %s.\n", key)
				return nil
			}
			if len(args) < 2 {
				if r.opts.JSON {
					return NewJSONResponse("examples", show).Write(cmd.OutOrStdout())
				}
				cmd.Println(commands.FormatExamples(show))
				return nil
			}

			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 || n > len(show.Examples) {
				return fmt.Errorf("no example %q (want 1-%d)", args[1], len(show.Examples))
			}
			cmd.Println(show.Examples[n-1].Prompt)
			return nil
		},
	}
}
