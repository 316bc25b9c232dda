// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for citechat.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - RelayConfig: Assistant relay endpoints, API key and request limits
//   - FilesConfig: File id to display name mapping and download directory
//   - Watcher: Reloads the config file when it changes on disk
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CITECHAT_*)
//   - ~/.citechat/config.toml
//   - ~/.citechat/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Keep document names current while the program runs:
//
//	err := config.Watch(ctx, path, func(c *config.Config) {
//	    catalog.Replace(c.Files.Names)
//	}, logger)
package config
