// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - APIConfig: Completion service endpoint, key and pacing
//   - RetryConfig: Backoff policy for transport failures
//   - DocstoreConfig: Settings for the self-hosted document store
//   - Duration: time.Duration encoded as "5s" in TOML
//
// # Configuration Precedence
//
// Configuration is resolved from (highest first):
//   - Environment variables (CODECRAFT_*, OPENROUTER_API_KEY)
//   - .env in the working directory, then in the config directory
//   - config.toml in the config directory
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := cloud.NewClient(cfg.API.Key, cfg.Registry()).
//	    WithBackoff(cfg.Backoff())
package config
