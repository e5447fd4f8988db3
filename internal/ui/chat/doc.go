// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea chat screen.
//
// The model mirrors a session.Controller through its event channel and
// renders the current conversation plus the in-flight draft. Committed
// replies are rendered once and cached; only the draft is re-rendered as
// deltas arrive. Lines starting with / go to the command registry.
package chat
