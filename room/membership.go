// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"sort"
	"time"

	"github.com/driftroom/driftroom/wire"
)

// Peer is one roster entry: an identity plus the observer-side
// timestamps liveness runs on.
type Peer struct {
	// Identity is the peer's self-declared identity from its latest
	// join or heartbeat.
	Identity wire.Identity

	// FirstSeen is when this observer first saw the peer. Used only
	// for stable roster ordering.
	FirstSeen time.Time

	// LastSeen is when this observer last received a join or
	// heartbeat from the peer. This is local receipt time, never the
	// announcement's own timestamp: clock skew between peers must
	// not be able to evict anyone.
	LastSeen time.Time
}

// Membership tracks the room roster from presence announcements. It is
// pure value state driven by the session loop; it runs no goroutines
// and takes the current time as an argument.
type Membership struct {
	self       wire.ClientID
	pruneAfter time.Duration
	peers      map[wire.ClientID]*Peer
}

// NewMembership creates an empty roster. Peers other than self are
// removed when they have not been seen for pruneAfter.
func NewMembership(self wire.ClientID, pruneAfter time.Duration) *Membership {
	return &Membership{
		self:       self,
		pruneAfter: pruneAfter,
		peers:      make(map[wire.ClientID]*Peer),
	}
}

// Observe applies one presence announcement received at the given
// local time. It reports whether the visible roster changed: a new
// peer, a departed peer, or an identity field update. Heartbeat
// refreshes of an unchanged peer return false.
//
// A leave for self is ignored: local liveness is owned locally, and a
// stale last-will replayed by the broker must not make a session
// remove itself from its own roster.
func (m *Membership) Observe(p wire.Presence, now time.Time) bool {
	id := p.Peer.ClientID

	if p.Kind == wire.PresenceLeave {
		if id == m.self {
			return false
		}
		if _, present := m.peers[id]; !present {
			return false
		}
		delete(m.peers, id)
		return true
	}

	existing, present := m.peers[id]
	if !present {
		m.peers[id] = &Peer{Identity: p.Peer, FirstSeen: now, LastSeen: now}
		return true
	}
	changed := existing.Identity != p.Peer
	existing.Identity = p.Peer
	existing.LastSeen = now
	return changed
}

// RefreshSelf upserts the local peer and stamps it fresh. Called on
// every tick, which is what makes self unprunable while the session
// loop runs.
func (m *Membership) RefreshSelf(identity wire.Identity, now time.Time) bool {
	existing, present := m.peers[identity.ClientID]
	if !present {
		m.peers[identity.ClientID] = &Peer{Identity: identity, FirstSeen: now, LastSeen: now}
		return true
	}
	changed := existing.Identity != identity
	existing.Identity = identity
	existing.LastSeen = now
	return changed
}

// Prune removes peers not seen within the prune window and returns
// the removed identities. Self is never pruned.
func (m *Membership) Prune(now time.Time) []wire.Identity {
	var removed []wire.Identity
	for id, peer := range m.peers {
		if id == m.self {
			continue
		}
		if now.Sub(peer.LastSeen) > m.pruneAfter {
			removed = append(removed, peer.Identity)
			delete(m.peers, id)
		}
	}
	sort.Slice(removed, func(i, j int) bool {
		return removed[i].ClientID < removed[j].ClientID
	})
	return removed
}

// Peers returns the roster ordered by first-seen time (ties by client
// ID), which keeps rendered rosters stable across refreshes.
func (m *Membership) Peers() []Peer {
	peers := make([]Peer, 0, len(m.peers))
	for _, peer := range m.peers {
		peers = append(peers, *peer)
	}
	sort.Slice(peers, func(i, j int) bool {
		if !peers[i].FirstSeen.Equal(peers[j].FirstSeen) {
			return peers[i].FirstSeen.Before(peers[j].FirstSeen)
		}
		return peers[i].Identity.ClientID < peers[j].Identity.ClientID
	})
	return peers
}

// Count returns the roster size, self included once present.
func (m *Membership) Count() int { return len(m.peers) }

// Contains reports roster membership.
func (m *Membership) Contains(id wire.ClientID) bool {
	_, present := m.peers[id]
	return present
}
