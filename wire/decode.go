// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"fmt"
)

// Event is one inbound publish, decoded and validated. Exactly one
// concrete type exists per payload shape, so consumers switch on the
// variant and never re-inspect topic strings or raw JSON. Unknown
// fields in payloads are tolerated (forward compatibility); unknown
// topics, kinds, and structurally invalid payloads are errors.
type Event interface {
	// EventRoom is the room the publish belongs to.
	EventRoom() RoomID

	event()
}

// PresenceEvent is a join, heartbeat, or leave on the presence channel.
type PresenceEvent struct {
	Room     RoomID
	Presence Presence
}

// MessageEvent is a chat message on the messages channel.
type MessageEvent struct {
	Room    RoomID
	Message ChatMessage
}

// ReactionEvent is a reaction on the reactions channel.
type ReactionEvent struct {
	Room     RoomID
	Reaction Reaction
}

// ConfigEvent is a retained room configuration (initial value on
// subscribe, or a live update when a visibility vote commits).
type ConfigEvent struct {
	Room   RoomID
	Config RoomConfig
}

// ProposalEvent is a vote round opening on the vote channel.
type ProposalEvent struct {
	Room     RoomID
	Proposal VoteProposal
}

// BallotEvent is a single ballot on the vote channel.
type BallotEvent struct {
	Room   RoomID
	Ballot Ballot
}

// ListingEvent is a live lobby listing for a public room.
type ListingEvent struct {
	Room    RoomID
	Listing LobbyListing
}

// ListingGoneEvent is the removal of a room's lobby listing: an empty
// retained publish, observed when the last peer leaves gracefully or
// the room goes private.
type ListingGoneEvent struct {
	Room RoomID
}

func (e PresenceEvent) EventRoom() RoomID    { return e.Room }
func (e MessageEvent) EventRoom() RoomID     { return e.Room }
func (e ReactionEvent) EventRoom() RoomID    { return e.Room }
func (e ConfigEvent) EventRoom() RoomID      { return e.Room }
func (e ProposalEvent) EventRoom() RoomID    { return e.Room }
func (e BallotEvent) EventRoom() RoomID      { return e.Room }
func (e ListingEvent) EventRoom() RoomID     { return e.Room }
func (e ListingGoneEvent) EventRoom() RoomID { return e.Room }

func (PresenceEvent) event()    {}
func (MessageEvent) event()     {}
func (ReactionEvent) event()    {}
func (ConfigEvent) event()      {}
func (ProposalEvent) event()    {}
func (BallotEvent) event()      {}
func (ListingEvent) event()     {}
func (ListingGoneEvent) event() {}

// Decode turns one inbound publish into its typed Event. This is the
// only place raw payloads are interpreted; callers drop the publish
// (with a debug log) when Decode returns an error, because a peer that
// publishes garbage must not be able to crash anyone else's session.
func Decode(topic string, payload []byte) (Event, error) {
	parsed, err := parseTopic(topic)
	if err != nil {
		return nil, err
	}

	if parsed.lobby {
		return decodeListing(parsed.room, payload)
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("topic %q: empty payload", topic)
	}

	switch parsed.channel {
	case ChannelPresence:
		var p Presence
		if err := unmarshal(topic, payload, &p); err != nil {
			return nil, err
		}
		return PresenceEvent{Room: parsed.room, Presence: p}, nil

	case ChannelMessages:
		var m ChatMessage
		if err := unmarshal(topic, payload, &m); err != nil {
			return nil, err
		}
		return MessageEvent{Room: parsed.room, Message: m}, nil

	case ChannelReactions:
		var r Reaction
		if err := unmarshal(topic, payload, &r); err != nil {
			return nil, err
		}
		return ReactionEvent{Room: parsed.room, Reaction: r}, nil

	case ChannelConfig:
		var c RoomConfig
		if err := unmarshal(topic, payload, &c); err != nil {
			return nil, err
		}
		return ConfigEvent{Room: parsed.room, Config: c}, nil

	case ChannelVote:
		var v VoteMessage
		if err := unmarshal(topic, payload, &v); err != nil {
			return nil, err
		}
		if v.Kind == VotePayloadProposal {
			return ProposalEvent{Room: parsed.room, Proposal: *v.Proposal}, nil
		}
		return BallotEvent{Room: parsed.room, Ballot: *v.Ballot}, nil

	default:
		return nil, fmt.Errorf("topic %q: unknown channel", topic)
	}
}

// decodeListing handles the lobby channel, where an empty payload is
// meaningful: it is the retained-value clear that withdraws a listing.
func decodeListing(room RoomID, payload []byte) (Event, error) {
	if len(payload) == 0 {
		return ListingGoneEvent{Room: room}, nil
	}
	var l LobbyListing
	if err := unmarshal(LobbyTopic(room), payload, &l); err != nil {
		return nil, err
	}
	if l.RoomID != room {
		return nil, fmt.Errorf("lobby listing on %q names room %q", LobbyTopic(room), l.RoomID)
	}
	return ListingEvent{Room: room, Listing: l}, nil
}

// validator is implemented by every payload entity.
type validator interface {
	Validate() error
}

// unmarshal decodes and validates one payload.
func unmarshal(topic string, payload []byte, into validator) error {
	if err := json.Unmarshal(payload, into); err != nil {
		return fmt.Errorf("topic %q: decoding payload: %w", topic, err)
	}
	if err := into.Validate(); err != nil {
		return fmt.Errorf("topic %q: %w", topic, err)
	}
	return nil
}
