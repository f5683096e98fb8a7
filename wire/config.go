// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"time"
)

// RoomConfig is the payload on the room's config topic, published
// retained so that a joining peer receives the current room state
// immediately after subscribing.
//
// Exactly one peer writes it at a time: the room's creator publishes
// the initial config, and after a visibility vote passes, the vote's
// initiator — and only the initiator — publishes the update. Everyone
// else treats the retained value as authoritative and reconciles local
// state to whatever arrives here.
type RoomConfig struct {
	// Public controls lobby advertisement. Public rooms republish a
	// lobby listing every tick; private rooms do not appear in the
	// lobby at all.
	Public bool `json:"public"`

	// Topic is the human-readable room description shown in the
	// lobby and the room header.
	Topic string `json:"topic,omitempty"`

	// CreatedBy is the identity of the peer that created the room.
	// Stable across visibility updates.
	CreatedBy Identity `json:"created_by"`

	// CreatedAt is the room creation time, by the creator's clock.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the payload shape.
func (c RoomConfig) Validate() error {
	if err := c.CreatedBy.Validate(); err != nil {
		return fmt.Errorf("room config: %w", err)
	}
	return nil
}
