// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"net/url"

	"go.uber.org/zap"

	"github.com/jeranaias/citechat/internal/assistant"
	"github.com/jeranaias/citechat/internal/citation"
	"github.com/jeranaias/citechat/internal/config"
	"github.com/jeranaias/citechat/internal/dispatch"
	"github.com/jeranaias/citechat/internal/render"
	"github.com/jeranaias/citechat/internal/session"
	"github.com/jeranaias/citechat/internal/ui/styles"
)

// stack is the wired set of components one command runs against.
type stack struct {
	catalog    *citation.Catalog
	resolver   *citation.Resolver
	client     *assistant.Client
	controller *session.Controller
	renderer   *render.Renderer
}

// newStack wires the relay client, resolver, dispatcher, session
// controller and renderer from cfg.
func newStack(cfg *config.Config, theme *styles.Theme, logger *zap.Logger) (*stack, error) {
	client := newClient(cfg, logger)

	catalog := citation.NewCatalog(cfg.Files.Names)
	resolver := citation.NewResolver(markerPath(cfg.Relay.FilesURL), catalog).
		WithURLBase(client.FileURL(""))

	dispatcher := dispatch.New(dispatch.Config{
		Formatter:        resolver,
		InterpreterKinds: cfg.Tools.InterpreterKinds,
		Logger:           logger.Named("dispatch"),
	})

	controller := session.New(session.Config{
		Relay:      client,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	renderer, err := render.New(render.Options{
		Theme:          theme,
		Resolver:       resolver,
		WordWrap:       cfg.UI.WordWrap,
		LabelWidth:     cfg.Files.MaxLabelWidth,
		ShowReferences: cfg.UI.ShowReferences,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("relay configured",
		zap.String("base_url", client.BaseURL()),
		zap.String("files_url", client.FileURL("")),
		zap.String("key", client.KeyFingerprint()))

	return &stack{
		catalog:    catalog,
		resolver:   resolver,
		client:     client,
		controller: controller,
		renderer:   renderer,
	}, nil
}

// newClient builds the relay client from cfg.
func newClient(cfg *config.Config, logger *zap.Logger) *assistant.Client {
	return assistant.NewClient(cfg.Relay.BaseURL).
		WithAPIKey(cfg.Relay.APIKey).
		WithFilesURL(cfg.Relay.FilesURL).
		WithTimeout(cfg.Relay.Timeout()).
		WithRateLimit(cfg.Relay.RequestsPerSecond).
		WithLogger(logger)
}

// markerPath returns the path component citation markers carry. The relay
// writes links relative to its own origin, so an absolute files_url
// contributes only its path.
func markerPath(filesURL string) string {
	u, err := url.Parse(filesURL)
	if err != nil || u.Path == "" {
		return filesURL
	}
	return u.Path
}
