// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"github.com/driftroom/driftroom/transport"
)

type outboxEntry struct {
	topic   string
	payload []byte
	opts    transport.PublishOptions
}

// Outbox queues publishes composed while the broker connection is
// down. Entries flush in FIFO order on reconnect, so a peer's own
// messages reach the room in the order they were written. Only
// user-authored traffic (messages and reactions) is queued; presence
// and votes are freshness-sensitive and are worthless after an outage,
// so the session drops those instead.
type Outbox struct {
	pending []outboxEntry
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Enqueue appends one publish to the queue.
func (o *Outbox) Enqueue(topic string, payload []byte, opts transport.PublishOptions) {
	o.pending = append(o.pending, outboxEntry{topic: topic, payload: payload, opts: opts})
}

// Len returns the number of queued publishes.
func (o *Outbox) Len() int { return len(o.pending) }

// Flush publishes queued entries in order. An entry leaves the queue
// only once its publish succeeds; on the first error Flush stops and
// keeps the failed entry and everything behind it for the next
// attempt. Each entry is therefore published at most once per success,
// and receivers deduplicate by message ID in case a publish lands but
// the error path retries it. Returns how many entries flushed.
func (o *Outbox) Flush(publish func(topic string, payload []byte, opts transport.PublishOptions) error) (int, error) {
	flushed := 0
	for _, e := range o.pending {
		if err := publish(e.topic, e.payload, e.opts); err != nil {
			remaining := make([]outboxEntry, len(o.pending)-flushed)
			copy(remaining, o.pending[flushed:])
			o.pending = remaining
			return flushed, err
		}
		flushed++
	}
	o.pending = nil
	return flushed, nil
}
