// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for citechat.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. Theme detection uses termenv.

# Key Types

  - Theme: the styles used by the chat view and the renderer
  - StatusIndicatorSet: ASCII shapes shown next to colored status text

# Color System (colors.go)

  - Purple: assistant turns, spinner
  - Cyan: user turns, key hints
  - Emerald: tool (code interpreter) turns
  - Rose: error banner
  - LinkColor: reference URLs

# Usage

	theme := styles.NewTheme(cfg.UI.Theme)
	label := theme.AssistantLabel.Render("Assistant")

	// Non-TTY output
	plain := styles.NewPlainTheme()
*/
package styles
