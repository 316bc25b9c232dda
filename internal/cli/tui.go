// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/citechat/internal/config"
	"github.com/jeranaias/citechat/internal/ui/chat"
	"github.com/jeranaias/citechat/internal/ui/styles"
)

// runTUI starts the full-screen chat. Document names are reloaded from the
// config file while it runs.
func (a *app) runTUI(ctx context.Context) error {
	if !isTerminal(a.streams.In) || !isTerminal(a.streams.Out) {
		return &TTYRequiredError{Operation: "start the chat screen"}
	}

	theme := styles.NewTheme(a.cfg.UI.Theme)
	st, err := newStack(a.cfg, theme, a.log)
	if err != nil {
		return err
	}
	defer st.controller.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := chat.New(chat.Config{
		Session:  st.controller,
		Renderer: st.renderer,
		Theme:    theme,
		Logger:   a.log,
		Context:  ctx,
	})
	defer model.Close()

	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithInput(a.streams.In),
		tea.WithOutput(a.streams.Out),
	)

	if a.configPath != "" {
		err := config.Watch(ctx, a.configPath, func(cfg *config.Config) {
			st.catalog.Replace(cfg.Files.Names)
			program.Send(chat.CatalogReloadedMsg{})
			a.log.Info("document names reloaded", zap.Int("count", st.catalog.Len()))
		}, a.log)
		if err != nil {
			a.log.Warn("config watch disabled", zap.Error(err))
		}
	}

	a.log.Info("chat screen started")
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat screen: %w", err)
	}
	return nil
}
