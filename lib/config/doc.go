// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the driftroom
// CLI.
//
// Configuration is loaded from a single file specified by either the
// DRIFTROOM_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. This ensures deterministic
// configuration with no hidden overrides.
//
// Variable expansion is performed on broker connection fields after
// loading: ${VAR} and ${VAR:-default} patterns are expanded, so broker
// passwords can live in the environment instead of on disk. No other
// environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Broker, Identity, Tuning
//   - [Default] -- returns a Config with working local defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other driftroom packages except wire.
package config
