// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"time"
)

// PresenceKind distinguishes the three announcements a peer makes on
// the presence topic.
type PresenceKind string

const (
	// PresenceJoin is published once when a peer enters the room.
	PresenceJoin PresenceKind = "join"

	// PresenceHeartbeat is republished on every tick (5s reference
	// interval) to keep the peer alive in everyone else's roster.
	PresenceHeartbeat PresenceKind = "heartbeat"

	// PresenceLeave is published on graceful departure, and by the
	// broker on the peer's behalf (last-will) when the connection
	// drops without one. Observers remove the peer immediately.
	PresenceLeave PresenceKind = "leave"
)

// Presence is the payload on the presence topic.
type Presence struct {
	// Kind is the announcement type.
	Kind PresenceKind `json:"kind"`

	// Peer is the announcing peer's identity, carried in full so a
	// join or heartbeat is sufficient to render the roster entry.
	Peer Identity `json:"peer"`

	// SentAt is the author's wall clock at publish time. Diagnostic
	// only: liveness tracking ages peers by the observer's own
	// receipt time, never by this field, so clock skew between peers
	// cannot evict a live peer.
	SentAt time.Time `json:"sent_at"`
}

// Validate checks the payload shape.
func (p Presence) Validate() error {
	switch p.Kind {
	case PresenceJoin, PresenceHeartbeat, PresenceLeave:
	default:
		return fmt.Errorf("unknown presence kind %q", p.Kind)
	}
	if err := p.Peer.Validate(); err != nil {
		return fmt.Errorf("presence %s: %w", p.Kind, err)
	}
	return nil
}
