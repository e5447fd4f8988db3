// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// # Key Types
//
//   - Session: one chat, identified by its creation time in Unix milliseconds
//   - Message: a single role/content entry, immutable once appended
//   - Role: user, assistant, or notice (client-side notices are never sent
//     to the model)
//
// # Usage
//
//	s := model.NewSession("1718000000000", "deepseek", time.Now())
//	s.Messages = append(s.Messages, model.NewUserMessage("hi", time.Now()))
//	title := model.DeriveTitle(reply)
package model
