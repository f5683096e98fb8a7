// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"github.com/driftroom/driftroom/wire"
)

// Message is a chat message with the reactions accumulated so far.
// Reactions maps emoji to the identities that reacted with it, in
// arrival order.
type Message struct {
	wire.ChatMessage
	Reactions map[string][]wire.Identity
}

type reactionKey struct {
	emoji string
	from  wire.ClientID
}

type logEntry struct {
	msg       wire.ChatMessage
	reactions map[string][]wire.Identity
	reacted   map[reactionKey]struct{}
}

// MessageLog accumulates the room's messages in arrival order and
// deduplicates by message ID. Arrival order is per-observer: two peers
// may interleave concurrent messages differently, and nothing here
// tries to repair that.
type MessageLog struct {
	order []wire.MessageID
	byID  map[wire.MessageID]*logEntry
}

// NewMessageLog creates an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{byID: make(map[wire.MessageID]*logEntry)}
}

// Append adds a message unless its ID has been seen before. The
// returned bool reports whether the log changed, so the broker echoing
// a locally-appended message back is a clean no-op.
func (l *MessageLog) Append(msg wire.ChatMessage) bool {
	if _, ok := l.byID[msg.ID]; ok {
		return false
	}
	l.byID[msg.ID] = &logEntry{
		msg:       msg,
		reactions: make(map[string][]wire.Identity),
		reacted:   make(map[reactionKey]struct{}),
	}
	l.order = append(l.order, msg.ID)
	return true
}

// React records a reaction. Each (message, emoji, reactor) triple
// counts once no matter how often it is delivered. Reactions to
// messages the log has not seen are dropped; the returned bool reports
// whether anything changed.
func (l *MessageLog) React(r wire.Reaction) bool {
	e, ok := l.byID[r.MessageID]
	if !ok {
		return false
	}
	key := reactionKey{emoji: r.Emoji, from: r.From.ClientID}
	if _, dup := e.reacted[key]; dup {
		return false
	}
	e.reacted[key] = struct{}{}
	e.reactions[r.Emoji] = append(e.reactions[r.Emoji], r.From)
	return true
}

// Get returns a copy of one message and its reactions.
func (l *MessageLog) Get(id wire.MessageID) (Message, bool) {
	e, ok := l.byID[id]
	if !ok {
		return Message{}, false
	}
	return e.snapshot(), true
}

// Messages returns the log in arrival order. The slice and the
// reaction maps inside it are copies; mutating them does not touch the
// log.
func (l *MessageLog) Messages() []Message {
	out := make([]Message, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id].snapshot())
	}
	return out
}

// Len returns the number of distinct messages in the log.
func (l *MessageLog) Len() int { return len(l.order) }

func (e *logEntry) snapshot() Message {
	m := Message{ChatMessage: e.msg}
	if len(e.reactions) > 0 {
		m.Reactions = make(map[string][]wire.Identity, len(e.reactions))
		for emoji, who := range e.reactions {
			m.Reactions[emoji] = append([]wire.Identity(nil), who...)
		}
	}
	return m
}
