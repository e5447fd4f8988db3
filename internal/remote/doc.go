// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package remote is the client for the docstore auth and chat document
// service. A signed-in Client satisfies storage.Remote, so attaching it to
// a Store mirrors every local mutation to the account.
package remote
