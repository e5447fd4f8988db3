// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package docstore provides a self-hostable auth and chat document store.
//
// Each account owns one JSON document mapping chat session ids to
// sessions. Clients sign in for a bearer token and replace the whole
// document on every change; the last write wins.
//
// # Endpoints
//
//   - POST  /api/v1/auth/signup        - Create an account, returns {user, token}
//   - POST  /api/v1/auth/signin        - Sign in, returns {user, token}
//   - POST  /api/v1/auth/signout       - Revoke the presented token
//   - POST  /api/v1/auth/reset         - Issue a password reset code
//   - POST  /api/v1/auth/reset/confirm - Set a new password with a reset code
//   - GET   /api/v1/profile            - Profile with chat statistics
//   - PATCH /api/v1/profile            - Update the display name
//   - GET   /api/v1/chats              - Chat document (created empty if missing)
//   - PUT   /api/v1/chats              - Replace the chat document
//   - GET   /healthz                   - Database health
//
// # Storage
//
// SQLite (modernc.org/sqlite, the default) or PostgreSQL (lib/pq). Passwords
// are bcrypt hashes; tokens are HS256 JWTs whose jti is recorded on sign-out.
//
// # Usage
//
//	cfg := docstore.DefaultConfig(filepath.Join(dataDir, "docstore.db"))
//	cfg.JWTSecret = secret
//	srv, err := docstore.New(cfg)
//	if err != nil {
//		return err
//	}
//	defer srv.Close()
//	return srv.ListenAndServe(ctx)
package docstore
