// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui implements the chat room screen: a bubbletea model
// that renders a [room.Session] as a scrollable transcript, a peer
// sidebar, a one-line composer, and a vote banner when a visibility
// round is open.
//
// The model never touches the transport. It consumes the session's
// event channel for everything it displays and calls back into the
// session (through the [Controller] interface) for everything the user
// does. Session events arrive through the bubbletea message loop, so
// the model needs no locks: both keyboard input and room traffic are
// serialized by the runtime.
//
// Messages are numbered in arrival order as they enter the transcript.
// The composer accepts IRC-style slash commands that target those
// numbers: /reply 3 and /react 3 🎉 act on the third message. Plain
// input is sent as a text message.
package chatui
