// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the codecraft palette and the chat screen theme.
//
// Colors are lipgloss AdaptiveColor pairs. NewTheme resolves the light or
// dark half from the stored theme setting, falling back to termenv's
// background detection, and maps the font size setting to a wrap width.
package styles
