// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"time"
)

// VoteAction names the change a proposal asks the room to approve.
// There is one today; the field exists so ballots and proposals stay
// decodable if more are added.
type VoteAction string

// VoteActionSetVisibility proposes flipping the room's public flag to
// the proposal's TargetPublic value.
const VoteActionSetVisibility VoteAction = "set_visibility"

// VoteProposal opens a vote round. The room holds at most one active
// round: a newly observed proposal replaces whatever round a peer had
// in flight. The proposal doubles as the initiator's own agree ballot,
// so a solo peer's proposal commits immediately.
type VoteProposal struct {
	// VoteID identifies the round. Ballots carry it back.
	VoteID VoteID `json:"vote_id"`

	// Action is the proposed change.
	Action VoteAction `json:"action"`

	// TargetPublic is the visibility the room switches to if the
	// round passes.
	TargetPublic bool `json:"target_public"`

	// Initiator is the proposing peer. Only the initiator may
	// publish the RoomConfig update when the round passes.
	Initiator Identity `json:"initiator"`

	// SentAt is the initiator's wall clock at proposal time. The
	// round's deadline runs on each observer's local clock from the
	// moment the proposal is observed, not from this field.
	SentAt time.Time `json:"sent_at"`
}

// Validate checks the payload shape.
func (p VoteProposal) Validate() error {
	if p.VoteID == "" {
		return fmt.Errorf("vote proposal missing vote_id")
	}
	if p.Action != VoteActionSetVisibility {
		return fmt.Errorf("vote %s: unknown action %q", p.VoteID, p.Action)
	}
	if err := p.Initiator.Validate(); err != nil {
		return fmt.Errorf("vote %s: %w", p.VoteID, err)
	}
	return nil
}

// BallotDecision is a voter's verdict on a proposal.
type BallotDecision string

const (
	// DecisionAgree approves the proposal. A round passes when every
	// current member has agreed.
	DecisionAgree BallotDecision = "agree"

	// DecisionVeto rejects the proposal. A single veto ends the
	// round immediately with no change.
	DecisionVeto BallotDecision = "veto"
)

// Ballot is one peer's vote in a round. Ballots accumulate by voter:
// a replayed or re-sent ballot from the same ClientID counts once.
type Ballot struct {
	// VoteID references the round this ballot belongs to. Ballots
	// for any other round are discarded.
	VoteID VoteID `json:"vote_id"`

	// Voter is the balloting peer.
	Voter Identity `json:"voter"`

	// Decision is agree or veto.
	Decision BallotDecision `json:"decision"`

	// SentAt is the voter's wall clock at publish time. Display and
	// diagnostics only.
	SentAt time.Time `json:"sent_at"`
}

// Validate checks the payload shape.
func (b Ballot) Validate() error {
	if b.VoteID == "" {
		return fmt.Errorf("ballot missing vote_id")
	}
	switch b.Decision {
	case DecisionAgree, DecisionVeto:
	default:
		return fmt.Errorf("ballot for %s: unknown decision %q", b.VoteID, b.Decision)
	}
	if err := b.Voter.Validate(); err != nil {
		return fmt.Errorf("ballot for %s: %w", b.VoteID, err)
	}
	return nil
}

// VotePayloadKind tags the two payload shapes sharing the vote topic.
type VotePayloadKind string

const (
	// VotePayloadProposal marks an envelope carrying a VoteProposal.
	VotePayloadProposal VotePayloadKind = "proposal"

	// VotePayloadBallot marks an envelope carrying a Ballot.
	VotePayloadBallot VotePayloadKind = "ballot"
)

// VoteMessage is the envelope on the vote topic. The vote topic is the
// only one carrying two payload shapes, so it is the only one needing
// a kind tag; exactly the member matching Kind is populated.
type VoteMessage struct {
	Kind     VotePayloadKind `json:"kind"`
	Proposal *VoteProposal   `json:"proposal,omitempty"`
	Ballot   *Ballot         `json:"ballot,omitempty"`
}

// Validate checks that the envelope carries exactly the payload its
// kind announces, and that the payload itself is valid.
func (v VoteMessage) Validate() error {
	switch v.Kind {
	case VotePayloadProposal:
		if v.Proposal == nil {
			return fmt.Errorf("vote envelope kind proposal with no proposal")
		}
		if v.Ballot != nil {
			return fmt.Errorf("vote envelope kind proposal also carries a ballot")
		}
		return v.Proposal.Validate()
	case VotePayloadBallot:
		if v.Ballot == nil {
			return fmt.Errorf("vote envelope kind ballot with no ballot")
		}
		if v.Proposal != nil {
			return fmt.Errorf("vote envelope kind ballot also carries a proposal")
		}
		return v.Ballot.Validate()
	default:
		return fmt.Errorf("vote envelope with unknown kind %q", v.Kind)
	}
}
