// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// MessageKind describes what a chat message carries.
type MessageKind string

const (
	// MessageText is a plain text message.
	MessageText MessageKind = "text"

	// MessageImage is an image-only message. The image itself is not
	// on the wire; ImageRef names it.
	MessageImage MessageKind = "image"

	// MessageMixed carries both a text body and an image.
	MessageMixed MessageKind = "mixed"
)

// ReplyExcerptLimit is the maximum length, in runes, of the body
// fragment denormalized into a reply summary.
const ReplyExcerptLimit = 80

// ChatMessage is the payload on the messages topic.
//
// The author mints ID before publishing, so a message redelivered by
// the broker or reflushed from an offline queue is recognizably the
// same message. Everything a renderer needs is denormalized: Sender
// in full, and for replies a summary of the referenced message, so the
// reply stays meaningful on peers that never observed the original.
type ChatMessage struct {
	// ID is the author-minted message identifier and the dedup key.
	ID MessageID `json:"id"`

	// Kind is text, image, or mixed.
	Kind MessageKind `json:"kind"`

	// Body is the text content. Empty for image-only messages.
	Body string `json:"body,omitempty"`

	// ImageRef is an opaque reference to an image (a URL or an
	// application-defined locator). Never interpreted by the
	// protocol. Empty for text messages.
	ImageRef string `json:"image_ref,omitempty"`

	// Sender is the author's identity, denormalized in full.
	Sender Identity `json:"sender"`

	// SentAt is the author's wall clock at composition time.
	// Rendering order is arrival order, not SentAt order; this field
	// is for display only.
	SentAt time.Time `json:"sent_at"`

	// ReplyTo references the message this one replies to. Zero when
	// the message is not a reply. The reference may dangle: the
	// referenced message can predate this peer's arrival or be lost
	// to an outage.
	ReplyTo MessageID `json:"reply_to,omitempty"`

	// ReplySummary carries enough of the referenced message to
	// render the reply context without resolving ReplyTo.
	ReplySummary *ReplySummary `json:"reply_summary,omitempty"`
}

// Validate checks the payload shape.
func (m ChatMessage) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("chat message missing id")
	}
	switch m.Kind {
	case MessageText, MessageMixed:
		if m.Body == "" {
			return fmt.Errorf("chat message %s: %s kind with empty body", m.ID, m.Kind)
		}
	case MessageImage:
	default:
		return fmt.Errorf("chat message %s: unknown kind %q", m.ID, m.Kind)
	}
	if (m.Kind == MessageImage || m.Kind == MessageMixed) && m.ImageRef == "" {
		return fmt.Errorf("chat message %s: %s kind with empty image_ref", m.ID, m.Kind)
	}
	if err := m.Sender.Validate(); err != nil {
		return fmt.Errorf("chat message %s: %w", m.ID, err)
	}
	if m.ReplySummary != nil && m.ReplyTo == "" {
		return fmt.Errorf("chat message %s: reply summary without reply_to", m.ID)
	}
	return nil
}

// ReplySummary is the denormalized fragment of a replied-to message.
type ReplySummary struct {
	// SenderName is the display name of the referenced message's
	// author, as it was at the time of the reply.
	SenderName string `json:"sender_name"`

	// Excerpt is the leading fragment of the referenced body,
	// truncated to ReplyExcerptLimit runes.
	Excerpt string `json:"excerpt"`
}

// Summarize builds the ReplySummary embedded in a reply to m.
func Summarize(m ChatMessage) ReplySummary {
	excerpt := m.Body
	if excerpt == "" && m.Kind == MessageImage {
		excerpt = "(image)"
	}
	if utf8.RuneCountInString(excerpt) > ReplyExcerptLimit {
		runes := []rune(excerpt)
		excerpt = string(runes[:ReplyExcerptLimit]) + "…"
	}
	return ReplySummary{
		SenderName: m.Sender.Username,
		Excerpt:    excerpt,
	}
}

// Reaction is the payload on the reactions topic: one peer attaching
// one emoji to one message. Reactions are idempotent per
// (MessageID, Emoji, From.ClientID); replays and redeliveries merge
// into the same roster slot.
type Reaction struct {
	// MessageID references the reacted-to message. May dangle, in
	// which case observers drop the reaction.
	MessageID MessageID `json:"message_id"`

	// Emoji is the reaction glyph.
	Emoji string `json:"emoji"`

	// From is the reacting peer's identity, denormalized so the
	// reaction roster renders without a membership lookup.
	From Identity `json:"from"`

	// SentAt is the author's wall clock at publish time. Display
	// only.
	SentAt time.Time `json:"sent_at"`
}

// Validate checks the payload shape.
func (r Reaction) Validate() error {
	if r.MessageID == "" {
		return fmt.Errorf("reaction missing message_id")
	}
	if r.Emoji == "" {
		return fmt.Errorf("reaction on %s missing emoji", r.MessageID)
	}
	if err := r.From.Validate(); err != nil {
		return fmt.Errorf("reaction on %s: %w", r.MessageID, err)
	}
	return nil
}
