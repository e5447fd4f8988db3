// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives the chat request lifecycle.
//
// A Controller owns the single in-flight completion. It moves through
// Idle, Sending, Streaming, Interrupted and Finalizing, accumulates the
// streamed draft, and commits the reply to the conversation store.
//
// # Key Types
//
//   - Controller: send, cancel, retry and continue plus session management
//   - Draft: the uncommitted reply of the active request
//   - Event: ordered notifications for presenters
//   - EventMsg: Bubble Tea wrapper for Event
//
// # Usage
//
//	ctrl := session.New(store, client, registry.Default(), session.DefaultConfig())
//	defer ctrl.Close()
//	ctrl.Subscribe(func(ev session.Event) { ... })
//	if err := ctrl.Send("hello"); err != nil {
//		return err
//	}
//	ctrl.WaitIdle(ctx)
//
// Sending while a request is active cancels it instead. A reply that goes
// quiet for the silence timeout is reported as Interrupted and can be
// continued.
package session
