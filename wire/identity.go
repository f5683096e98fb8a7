// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ClientID identifies a peer for the lifetime of its session. Minted
// by the peer itself at startup; there is no registry to collide with,
// so a UUID is sufficient. All protocol state — membership, ballot
// attribution, reaction idempotence — keys on ClientID, never on the
// display name, which is free-form and not unique.
type ClientID string

// MessageID identifies a chat message. Minted by the author before
// publishing, which is what makes redelivery harmless: the message
// log deduplicates on it.
type MessageID string

// VoteID identifies a vote round on the vote topic. Ballots reference
// it so that late or replayed ballots for a superseded round can be
// discarded.
type VoteID string

// NewClientID mints a fresh ClientID.
func NewClientID() ClientID { return ClientID(uuid.NewString()) }

// NewMessageID mints a fresh MessageID.
func NewMessageID() MessageID { return MessageID(uuid.NewString()) }

// NewVoteID mints a fresh VoteID.
func NewVoteID() VoteID { return VoteID(uuid.NewString()) }

// RoomID is the user-chosen room name. It is embedded in topic paths,
// so it must be a single non-empty segment: no separators, wildcards,
// or whitespace, in any of the topic syntaxes the supported brokers
// use.
type RoomID string

// Validate reports whether the RoomID is usable in a topic path.
func (r RoomID) Validate() error {
	if r == "" {
		return fmt.Errorf("room id is empty")
	}
	if strings.ContainsAny(string(r), "/+#.*> \t\n") {
		return fmt.Errorf("room id %q contains a separator, wildcard, or whitespace character", r)
	}
	return nil
}

// Identity is the self-declared identity a peer stamps on everything
// it publishes. Trusted as-is: authentication is out of scope for this
// protocol, and renderers display whatever the author claimed.
type Identity struct {
	// ClientID is the peer's session-scoped unique identifier.
	ClientID ClientID `json:"client_id"`

	// Username is the display name. Free-form, not unique.
	Username string `json:"username"`

	// Avatar is an emoji or short glyph shown next to the username.
	Avatar string `json:"avatar,omitempty"`

	// Privilege is an optional badge tag (for example "developer")
	// that renderers show next to the name. Purely cosmetic; grants
	// no protocol authority.
	Privilege string `json:"privilege,omitempty"`
}

// Validate checks the fields every payload embedding an Identity
// depends on.
func (i Identity) Validate() error {
	if i.ClientID == "" {
		return fmt.Errorf("identity missing client_id")
	}
	if i.Username == "" {
		return fmt.Errorf("identity %q missing username", i.ClientID)
	}
	return nil
}
