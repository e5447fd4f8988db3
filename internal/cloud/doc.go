// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud streams chat completions from an OpenAI-compatible API
// (OpenRouter by default).
//
// # Key Types
//
//   - Client: builds the request from a registry model and a history, then
//     streams it with retry under an injected BackoffPolicy and clock
//   - StreamHandle: ordered Event channel (deltas, restarts) plus the final
//     error once the channel closes
//   - Reassembler: turns arbitrarily split SSE chunks into text deltas,
//     dropping malformed records without failing the stream
//   - TransportError / AbortError: retriable failures versus deliberate
//     cancellation
//
// # Usage
//
//	client := cloud.NewClient(apiKey, registry.Default())
//	h := client.Complete(ctx, cloud.Request{Model: "deepseek", Mode: registry.ModeMedium, History: msgs})
//	for ev := range h.Events() {
//	    if ev.Kind == cloud.EventDelta {
//	        fmt.Print(ev.Text)
//	    }
//	}
//	if err := h.Err(); err != nil && !cloud.IsAbort(err) {
//	    log.Fatal(err)
//	}
//
// API keys are only ever placed in the Authorization header and never
// logged.
package cloud
