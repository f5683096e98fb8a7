// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"github.com/driftroom/driftroom/wire"
)

// Event is a state change the session reports to its consumer,
// usually a terminal UI. Events carry snapshots, never live internals:
// a consumer may hold onto them across redraws. The set is sealed so a
// consumer's type switch can be exhaustive.
type Event interface{ sessionEvent() }

// Joined reports the configuration handshake resolving: either an
// existing room's retained configuration arrived, or the creation
// window lapsed and this peer created the room itself.
type Joined struct {
	Config wire.RoomConfig

	// Created is true when this peer created the room.
	Created bool
}

// Connectivity reports a broker connection transition. While down,
// composed messages and reactions queue and flush on the next Up.
type Connectivity struct {
	Up bool
}

// RosterUpdated reports any membership change: a peer joined, left,
// renamed itself, or went silent long enough to be pruned. Peers is
// the full roster, oldest first.
type RosterUpdated struct {
	Peers []Peer
}

// MessageAdded reports a new message in the log, local or remote.
type MessageAdded struct {
	Message Message
}

// ReactionAdded reports a reaction landing on a message the log
// knows. Message is the updated snapshot.
type ReactionAdded struct {
	Message  Message
	Reaction wire.Reaction
}

// ConfigChanged reports an adopted room configuration update.
type ConfigChanged struct {
	Config wire.RoomConfig
}

// VoteOpened reports a visibility vote opening. CanVote is false for
// the initiator, whose agreement the proposal already implies.
type VoteOpened struct {
	Proposal wire.VoteProposal
	CanVote  bool
}

// VoteProgress reports another distinct agree arriving in the active
// round.
type VoteProgress struct {
	Proposal wire.VoteProposal

	// Agreed of Members peers have agreed so far, by this peer's
	// count of both.
	Agreed  int
	Members int
}

// VoteResolved reports the active round closing.
type VoteResolved struct {
	Proposal wire.VoteProposal
	Outcome  VoteOutcome
}

// VoteOutcome says how a round closed.
type VoteOutcome int

const (
	// VotePassed means unanimity (or the initiator's deadline) was
	// reached and the configuration update was committed.
	VotePassed VoteOutcome = iota

	// VoteVetoed means a veto discarded the proposal.
	VoteVetoed

	// VoteExpired means the deadline lapsed on a round this peer did
	// not initiate; the outcome, if any, arrives as a configuration
	// update.
	VoteExpired
)

// String implements fmt.Stringer for log output.
func (o VoteOutcome) String() string {
	switch o {
	case VotePassed:
		return "passed"
	case VoteVetoed:
		return "vetoed"
	case VoteExpired:
		return "expired"
	default:
		return "unknown"
	}
}

func (Joined) sessionEvent()        {}
func (Connectivity) sessionEvent()  {}
func (RosterUpdated) sessionEvent() {}
func (MessageAdded) sessionEvent()  {}
func (ReactionAdded) sessionEvent() {}
func (ConfigChanged) sessionEvent() {}
func (VoteOpened) sessionEvent()    {}
func (VoteProgress) sessionEvent()  {}
func (VoteResolved) sessionEvent()  {}
