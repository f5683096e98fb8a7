// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"strings"
)

// Channel names the per-room subtopics. Each channel carries exactly
// one payload shape (the vote channel's envelope disambiguates its
// two).
type Channel string

const (
	// ChannelMessages carries ChatMessage payloads.
	ChannelMessages Channel = "messages"

	// ChannelPresence carries Presence payloads.
	ChannelPresence Channel = "presence"

	// ChannelReactions carries Reaction payloads.
	ChannelReactions Channel = "reactions"

	// ChannelConfig carries the retained RoomConfig.
	ChannelConfig Channel = "config"

	// ChannelVote carries VoteMessage envelopes.
	ChannelVote Channel = "vote"
)

const (
	roomPrefix  = "room"
	lobbyPrefix = "lobby"
)

// LobbyWildcard subscribes to every room's lobby listing. The "+"
// matches exactly one topic segment.
const LobbyWildcard = lobbyPrefix + "/+"

// RoomTopic builds the topic for one of a room's channels:
// "room/<id>/<channel>".
func RoomTopic(room RoomID, channel Channel) string {
	return roomPrefix + "/" + string(room) + "/" + string(channel)
}

// RoomTopics lists all five channel topics for a room, in the order a
// session subscribes to them.
func RoomTopics(room RoomID) []string {
	return []string{
		RoomTopic(room, ChannelConfig),
		RoomTopic(room, ChannelPresence),
		RoomTopic(room, ChannelMessages),
		RoomTopic(room, ChannelReactions),
		RoomTopic(room, ChannelVote),
	}
}

// LobbyTopic builds a room's listing topic: "lobby/<id>".
func LobbyTopic(room RoomID) string {
	return lobbyPrefix + "/" + string(room)
}

// parsedTopic is the classification Decode starts from.
type parsedTopic struct {
	room    RoomID
	channel Channel // zero when lobby is true
	lobby   bool
}

// parseTopic classifies a concrete (wildcard-free) topic.
func parseTopic(topic string) (parsedTopic, error) {
	segments := strings.Split(topic, "/")
	switch {
	case len(segments) == 2 && segments[0] == lobbyPrefix:
		room := RoomID(segments[1])
		if err := room.Validate(); err != nil {
			return parsedTopic{}, fmt.Errorf("topic %q: %w", topic, err)
		}
		return parsedTopic{room: room, lobby: true}, nil

	case len(segments) == 3 && segments[0] == roomPrefix:
		room := RoomID(segments[1])
		if err := room.Validate(); err != nil {
			return parsedTopic{}, fmt.Errorf("topic %q: %w", topic, err)
		}
		channel := Channel(segments[2])
		switch channel {
		case ChannelMessages, ChannelPresence, ChannelReactions, ChannelConfig, ChannelVote:
			return parsedTopic{room: room, channel: channel}, nil
		}
		return parsedTopic{}, fmt.Errorf("topic %q: unknown channel %q", topic, segments[2])

	default:
		return parsedTopic{}, fmt.Errorf("topic %q: not a driftroom topic", topic)
	}
}
