// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"github.com/driftroom/driftroom/room"
	"github.com/driftroom/driftroom/wire"
)

type entryKind int

const (
	entryMessage entryKind = iota
	entryNotice
)

// entry is one transcript row: a chat message with its display
// ordinal, or a system notice (join, leave, vote outcome).
type entry struct {
	kind    entryKind
	ordinal int
	message room.Message
	notice  string
}

// transcript holds the rendered history in arrival order. Messages
// get monotonically increasing ordinals, the numbers slash commands
// target; notices interleave without consuming ordinals.
type transcript struct {
	entries     []entry
	byID        map[wire.MessageID]int
	nextOrdinal int
}

func newTranscript() *transcript {
	return &transcript{
		byID:        make(map[wire.MessageID]int),
		nextOrdinal: 1,
	}
}

// appendMessage adds a message row and assigns it the next ordinal.
func (t *transcript) appendMessage(message room.Message) {
	t.byID[message.ID] = len(t.entries)
	t.entries = append(t.entries, entry{
		kind:    entryMessage,
		ordinal: t.nextOrdinal,
		message: message,
	})
	t.nextOrdinal++
}

// updateMessage replaces a message snapshot in place, keeping its
// ordinal. Used when reactions land. Returns false for unknown IDs.
func (t *transcript) updateMessage(message room.Message) bool {
	index, ok := t.byID[message.ID]
	if !ok {
		return false
	}
	t.entries[index].message = message
	return true
}

// appendNotice adds a system notice row.
func (t *transcript) appendNotice(text string) {
	t.entries = append(t.entries, entry{kind: entryNotice, notice: text})
}

// messageByOrdinal resolves a slash command's target number.
func (t *transcript) messageByOrdinal(n int) (room.Message, bool) {
	for _, e := range t.entries {
		if e.kind == entryMessage && e.ordinal == n {
			return e.message, true
		}
	}
	return room.Message{}, false
}
