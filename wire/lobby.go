// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"time"
)

// ListingTTL is the reference expiry for lobby listings. An advertising
// peer republishes well inside this window (every tick, 5s reference),
// so a listing that reaches its TTL means every peer in the room is
// gone or unreachable, and the broker withdraws it on its own. Explicit
// removal — last peer leaving, room going private — is an empty
// retained publish and takes effect immediately; the TTL is the crash
// backstop, not the removal mechanism.
const ListingTTL = 15 * time.Second

// LobbyListing is the payload on a room's lobby topic, published
// retained with a short expiry so the lobby is a self-cleaning index:
// subscribe to the lobby wildcard and the retained listings that
// arrive are the currently-live public rooms.
type LobbyListing struct {
	// RoomID is the advertised room.
	RoomID RoomID `json:"room_id"`

	// Topic is the room description, mirrored from RoomConfig.
	Topic string `json:"topic,omitempty"`

	// PeerCount is the advertiser's membership count at publish
	// time. Refreshed on every republish.
	PeerCount int `json:"peer_count"`
}

// Validate checks the payload shape.
func (l LobbyListing) Validate() error {
	if err := l.RoomID.Validate(); err != nil {
		return fmt.Errorf("lobby listing: %w", err)
	}
	if l.PeerCount < 0 {
		return fmt.Errorf("lobby listing for %s: negative peer count %d", l.RoomID, l.PeerCount)
	}
	return nil
}
