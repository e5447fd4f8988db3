// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package preview turns html, css and javascript code blocks into
// standalone pages, opens them in a browser and captures screenshots at
// the mobile, tablet, laptop and desktop presets.
package preview
