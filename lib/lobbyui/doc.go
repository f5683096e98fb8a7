// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package lobbyui implements the room picker: a bubbletea screen over
// a live lobby snapshot stream. Rooms appear and disappear as
// advertisers come and go; the user narrows the list with a fuzzy
// filter and picks a room to join.
//
// The model consumes the snapshot channel of a room.LobbyWatcher. Each
// snapshot replaces the whole listing set, so the screen never has to
// reconcile deltas: re-filter, re-sort, clamp the cursor, done. When
// the channel closes the screen quits; the caller distinguishes "user
// picked a room" from "watcher died" via Selected.
package lobbyui
