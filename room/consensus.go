// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"time"

	"github.com/driftroom/driftroom/wire"
)

// Resolution is what one vote input did to the active round.
type Resolution int

const (
	// ResolutionPending means the round is still open (or the input
	// did not belong to it).
	ResolutionPending Resolution = iota

	// ResolutionPassed means unanimous agreement was reached. Only
	// the initiator ever resolves a round this way; everyone else
	// learns the outcome from the configuration update the initiator
	// publishes.
	ResolutionPassed

	// ResolutionVetoed means a veto ended the round with no change.
	ResolutionVetoed
)

// Vote is the active round as this peer sees it.
type Vote struct {
	// Proposal is the round being voted on.
	Proposal wire.VoteProposal

	// Initiated is true when the local peer opened the round. The
	// initiator is the only peer that counts quorum, commits the
	// result, or treats the deadline as consent.
	Initiated bool

	// Agreed holds the distinct client IDs that have agreed,
	// including the initiator's implied agreement. Keying by voter
	// is what makes replayed and re-sent ballots count once.
	Agreed map[wire.ClientID]struct{}

	// OpenedAt is when this peer observed the round open, by its own
	// clock. The deadline runs from here.
	OpenedAt time.Time
}

// Consensus is the single-slot vote state machine: idle, or exactly
// one active round. A newly observed proposal replaces whatever round
// was in flight; there is no queue.
type Consensus struct {
	self   wire.ClientID
	active *Vote
}

// NewConsensus creates an idle consensus slot for the given peer.
func NewConsensus(self wire.ClientID) *Consensus {
	return &Consensus{self: self}
}

// Active returns the open round, or nil when idle.
func (c *Consensus) Active() *Vote { return c.active }

// Open starts or replaces the active round. Re-observing the round
// already in the slot (the broker echoing the initiator's own
// proposal, or a redelivery) is a no-op and returns false.
func (c *Consensus) Open(p wire.VoteProposal, now time.Time) bool {
	if c.active != nil && c.active.Proposal.VoteID == p.VoteID {
		return false
	}
	c.active = &Vote{
		Proposal:  p,
		Initiated: p.Initiator.ClientID == c.self,
		Agreed:    map[wire.ClientID]struct{}{p.Initiator.ClientID: {}},
		OpenedAt:  now,
	}
	return true
}

// ObserveBallot applies one ballot against the active round.
// memberCount is the observer's current roster size, the quorum target
// for unanimity. Ballots for a different round (stale, superseded, or
// future) leave the slot untouched.
func (c *Consensus) ObserveBallot(b wire.Ballot, memberCount int) Resolution {
	if c.active == nil || b.VoteID != c.active.Proposal.VoteID {
		return ResolutionPending
	}
	if b.Decision == wire.DecisionVeto {
		c.active = nil
		return ResolutionVetoed
	}
	c.active.Agreed[b.Voter.ClientID] = struct{}{}
	return c.CheckQuorum(memberCount)
}

// CheckQuorum resolves the round as passed if the local peer initiated
// it and every current member has agreed. Called after each agree and
// right after the initiator opens a round, so a solo peer's proposal
// passes immediately. Non-initiators always get Pending: counting to
// a commit is the initiator's job alone.
func (c *Consensus) CheckQuorum(memberCount int) Resolution {
	if c.active == nil || !c.active.Initiated {
		return ResolutionPending
	}
	if memberCount > 0 && len(c.active.Agreed) >= memberCount {
		c.active = nil
		return ResolutionPassed
	}
	return ResolutionPending
}

// AgreeCount returns the distinct agreeing voters in the active round.
func (c *Consensus) AgreeCount() int {
	if c.active == nil {
		return 0
	}
	return len(c.active.Agreed)
}

// HasAgreed reports whether the given voter already agreed in the
// active round.
func (c *Consensus) HasAgreed(id wire.ClientID) bool {
	if c.active == nil {
		return false
	}
	_, ok := c.active.Agreed[id]
	return ok
}

// Expire closes the round at its deadline. For the initiator the
// deadline is consent — commit reports true and the caller publishes
// the configuration update. For everyone else the round is discarded
// with no local change; if it actually passed, the initiator's update
// arrives on the config topic.
func (c *Consensus) Expire() (proposal wire.VoteProposal, commit bool, ok bool) {
	if c.active == nil {
		return wire.VoteProposal{}, false, false
	}
	proposal = c.active.Proposal
	commit = c.active.Initiated
	c.active = nil
	return proposal, commit, true
}

// ClearOnConfig closes the round because a configuration update was
// observed: whatever the round was about has been decided. Idle slots
// return false, which is the common case — the initiator already
// cleared its slot when it committed.
func (c *Consensus) ClearOnConfig() (proposal wire.VoteProposal, cleared bool) {
	if c.active == nil {
		return wire.VoteProposal{}, false
	}
	proposal = c.active.Proposal
	c.active = nil
	return proposal, true
}
