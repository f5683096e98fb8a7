// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui provides shared terminal user interface primitives for
// driftroom's interactive screens. Built on bubbletea (Elm
// architecture), it holds the pieces both screens need: the color
// theme and the fuzzy matcher used for incremental filtering.
//
// Screen-specific models (the chat room, the lobby browser) import
// this package for consistent look and behavior: same theme, same
// filter semantics. Each screen owns its own data feed, layout, and
// rendering.
package tui
