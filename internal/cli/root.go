// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/citechat/internal/config"
	"github.com/jeranaias/citechat/internal/logging"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Streams are the process's standard streams. Tests substitute buffers.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process's standard streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	relayURL   string
	verbose    bool
}

// app carries the state built by the root command's pre-run hook.
type app struct {
	streams Streams
	flags   globalFlags

	cfg        *config.Config
	configPath string
	log        *zap.Logger
}

// NewRootCommand builds the citechat command tree.
func NewRootCommand(streams Streams) *cobra.Command {
	a := &app{streams: streams}

	root := &cobra.Command{
		Use:   "citechat",
		Short: "Chat with a document assistant from the terminal",
		Long: `citechat talks to an assistant relay and renders its streamed answers,
replacing inline file citations with numbered references you can download.

Run without arguments to start the full-screen chat.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	root.PersistentFlags().StringVarP(&a.flags.configPath, "config", "c", "", "Config file (default ~/.citechat/config.toml)")
	root.PersistentFlags().StringVar(&a.flags.relayURL, "relay", "", "Assistant relay URL (overrides relay.base_url)")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newChatCommand(a),
		newAskCommand(a),
		newFilesCommand(a),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the command tree with the process's arguments and returns
// the exit code.
func Execute(ctx context.Context) int {
	streams := StdStreams()
	root := NewRootCommand(streams)
	if err := root.ExecuteContext(ctx); err != nil {
		DisplayError(streams.Err, err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// setup loads configuration and builds the logger.
func (a *app) setup() error {
	cfg, path, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.configPath = path

	logger, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Verbose: a.flags.verbose,
	})
	if err != nil {
		return err
	}
	a.log = logger
	a.log.Debug("configuration loaded",
		zap.String("path", path),
		zap.String("relay", cfg.Relay.BaseURL))
	return nil
}

// loadConfig resolves the config file and applies the --relay override.
// The returned path is where the config lives or would live.
func (a *app) loadConfig() (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if a.flags.configPath != "" {
		path, err = config.ResolvePath(a.flags.configPath)
		if err != nil {
			return nil, "", err
		}
		cfg, err = config.LoadFromPath(path)
	} else {
		path, _ = config.ConfigPathTOML()
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, "", err
	}

	if a.flags.relayURL != "" {
		cfg.Relay.BaseURL = a.flags.relayURL
		if err := cfg.Validate(); err != nil {
			return nil, "", err
		}
	}
	return cfg, path, nil
}
