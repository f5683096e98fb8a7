// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the payload schema and topic scheme shared by
// every driftroom peer.
//
// A room is five broker topics under a common prefix — messages,
// presence, reactions, config, and vote — plus one listing topic in the
// lobby namespace. Each topic carries exactly one payload shape as
// self-describing JSON, except the vote topic, whose envelope
// distinguishes proposals from ballots. All payloads are authored by
// peers; there is no server-side schema authority, so every field a
// renderer needs (sender name, avatar, reply excerpt) is denormalized
// into the payload rather than referenced.
//
// [Decode] is the single entry point for inbound traffic: it
// classifies the topic, unmarshals the payload into the right entity,
// validates it, and returns one concrete [Event] variant. Everything
// downstream of the transport boundary consumes typed events and never
// touches raw JSON. Payloads that fail to decode are reported as
// errors for the caller to drop; a malformed payload from one peer
// must never take down another peer's session.
package wire
