// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the driftroom command tree: declarative
// [Command] values with lazy pflag flag sets, recursive subcommand
// dispatch, structured help output, and did-you-mean suggestions for
// mistyped commands and flags.
//
// Commands receive the process context and a configured logger from
// Execute, so signal-driven shutdown and log routing are decided once
// in main and inherited by every subcommand.
package cli
