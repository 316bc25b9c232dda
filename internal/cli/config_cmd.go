// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/citechat/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Writes the default configuration to --config, or to ~/.citechat/config.toml.
An existing file is left alone unless --force is given.`,
		Example: `  citechat config init
  citechat config init --config ./citechat.toml --force`,
		Args: cobra.NoArgs,
		// The file may not exist yet, so skip the root's config loading.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfigInit(force)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.streams.Out, "# %s\n%s\n", a.configPath, a.cfg.String())
			return nil
		},
	}

	cfgCmd.AddCommand(initCmd, show)
	return cfgCmd
}

func (a *app) runConfigInit(force bool) error {
	path := a.flags.configPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return err
		}
		path = p
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return newUsageError("config init",
				fmt.Sprintf("%s already exists", path),
				"citechat config init --force")
		}
	}

	if err := config.SaveTOML(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintln(a.streams.Out, path)
	return nil
}
