// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"sort"
	"time"

	"github.com/driftroom/driftroom/wire"
)

// LobbyBrowser tracks public-room listings seen on the lobby topics.
// Retained delivery seeds the browser with every advertised room at
// subscribe time; after that, each republish refreshes its entry.
//
// Broker-side expiry only gates what a fresh subscriber replays. A
// browser that is already subscribed never hears about expiry, so it
// ages entries itself: a listing not refreshed within ttl of local
// receipt is treated as gone. Advertisers republish every membership
// tick, which is several times faster than the listing lifetime.
type LobbyBrowser struct {
	ttl   time.Duration
	rooms map[wire.RoomID]lobbyEntry
}

type lobbyEntry struct {
	listing wire.LobbyListing
	seenAt  time.Time
}

// NewLobbyBrowser creates an empty browser. Entries older than ttl
// are dropped from snapshots; wire.ListingTTL matches what
// advertisers request from the broker.
func NewLobbyBrowser(ttl time.Duration) *LobbyBrowser {
	return &LobbyBrowser{ttl: ttl, rooms: make(map[wire.RoomID]lobbyEntry)}
}

// Observe records or refreshes a listing at local receipt time.
func (b *LobbyBrowser) Observe(l wire.LobbyListing, now time.Time) {
	b.rooms[l.RoomID] = lobbyEntry{listing: l, seenAt: now}
}

// Remove drops a listing in response to an explicit clear (the empty
// retained publish a departing or privatizing peer sends). Reports
// whether the room was listed.
func (b *LobbyBrowser) Remove(id wire.RoomID) bool {
	if _, ok := b.rooms[id]; !ok {
		return false
	}
	delete(b.rooms, id)
	return true
}

// Snapshot returns the live listings sorted by room ID, pruning
// anything that has gone unrefreshed past the ttl.
func (b *LobbyBrowser) Snapshot(now time.Time) []wire.LobbyListing {
	out := make([]wire.LobbyListing, 0, len(b.rooms))
	for id, e := range b.rooms {
		if now.Sub(e.seenAt) > b.ttl {
			delete(b.rooms, id)
			continue
		}
		out = append(out, e.listing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}
