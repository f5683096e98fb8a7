// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package room implements the peer-side protocol that makes a chat
// room out of nothing but a shared broker.
//
// There is no server. Every peer runs the same four components and the
// room's state is whatever each peer has reconstructed from the topics
// it observed:
//
//   - [Membership] tracks the roster from presence announcements,
//     aging peers out by local receipt time so no peer's clock can
//     evict another.
//   - [Consensus] runs the single-slot unanimous vote that changes
//     room visibility: one active proposal, ballots keyed by voter,
//     any veto ends it, silence past the deadline consents.
//   - [MessageLog] and [Outbox] make the chat history coherent over a
//     lossy transport: author-minted IDs deduplicate redelivery and
//     echo, reactions merge idempotently, and actions composed
//     offline flush in order when the connection returns.
//   - [LobbyBrowser] mirrors the lobby topic space into a live index
//     of public rooms, aging out listings whose advertisers stopped
//     refreshing.
//
// [Session] owns one peer's connection to one room and composes the
// components above. All protocol state is confined to the session's
// single event-loop goroutine: inbound publishes, connectivity
// transitions, timer ticks, and UI commands are all just cases in one
// select, so no component needs locks and every state change has one
// ordering. The UI talks to a session through fire-and-forget command
// methods and a stream of [Event] values, and renders whatever the
// events say; it holds no protocol state of its own.
package room
