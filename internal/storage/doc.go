// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for codecraft.
//
// # Key Types
//
//   - Store: in-memory map of chat sessions, mirrored to chats.json on
//     every mutation, with the current session and settings in prefs.json
//   - Remote: the signed-in user's chat collection in the document store
//   - PersistenceError: a failed local or remote write
//
// # Usage
//
//	store, err := storage.Open(storage.DefaultConfig(dataDir))
//	sess, err := store.Create("deepseek")
//	err = store.Append(sess.ID, model.NewUserMessage("hi", time.Now()))
//
// Attach a remote to mirror changes in the background:
//
//	store.AttachRemote(backend)
//	pulled, err := store.Sync(ctx)
//
// # Storage Location
//
// Files live in the configured data directory (default ~/.codecraft/).
// Writes are atomic; a store in another process converges through Watch.
package storage
