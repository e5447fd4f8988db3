// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry is the static catalog of chat models.
//
// Each Model carries its upstream id, generation parameters and the
// material for its system prompt. The prompt is parameterised by a
// verbosity Mode (short, medium, long). The registry has no side effects
// and never touches the network. Adding a model means passing another
// Model to New; the session and completion layers only use the Get and
// BuildSystemPrompt contract.
//
// # Usage
//
//	reg := registry.Default()
//	prompt, err := reg.BuildSystemPrompt("deepseek", registry.ModeShort)
package registry
