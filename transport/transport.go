// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all implementations.
var (
	// ErrNotConnected is returned by Publish when the connection is
	// down. Callers queue or drop as their semantics require; the
	// transport itself never buffers.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrClosed is returned after Disconnect.
	ErrClosed = errors.New("transport: closed")
)

// Transport is one client's connection to the broker.
//
// Connect must be called exactly once, before anything else; after
// Disconnect the value is dead. Both message and event channels are
// owned by the transport and closed after Disconnect.
type Transport interface {
	// Connect establishes the broker connection. A non-nil will
	// registers a last-will publish the broker emits if this
	// connection drops without Disconnect.
	Connect(ctx context.Context, will *Will) error

	// Disconnect closes the connection gracefully: the registered
	// will is discarded, not fired. The Messages and Events channels
	// are closed once delivery has drained.
	Disconnect(ctx context.Context) error

	// Publish sends one payload to a topic. Returns ErrNotConnected
	// while the connection is down.
	Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error

	// Subscribe adds topic filters. A filter is a concrete topic or
	// contains "+" matching exactly one segment. Retained values on
	// matching topics are delivered immediately, marked Retained.
	Subscribe(ctx context.Context, filters ...string) error

	// Unsubscribe removes topic filters previously subscribed.
	Unsubscribe(ctx context.Context, filters ...string) error

	// Messages delivers inbound publishes. The channel is buffered;
	// a consumer that stops reading loses messages rather than
	// blocking the broker (the protocol tolerates loss by design).
	Messages() <-chan Message

	// Events delivers connectivity transitions. The initial
	// successful Connect emits Up.
	Events() <-chan ConnEvent
}

// Message is one inbound publish.
type Message struct {
	// Topic is the concrete topic the payload was published to
	// (never a filter, even when matched via wildcard).
	Topic string

	// Payload is the publish body. Empty for retained-value clears.
	Payload []byte

	// Retained marks delivery from the broker's retained store at
	// subscribe time, as opposed to a live publish.
	Retained bool
}

// PublishOptions control broker-side handling of a publish.
type PublishOptions struct {
	// Retain stores the payload as the topic's last value. An empty
	// payload with Retain clears the stored value.
	Retain bool

	// Expiry bounds how long the broker keeps the publish alive —
	// for retained values, how long the stored value survives
	// without a refresh. Zero means no expiry.
	Expiry time.Duration
}

// Will is a last-will registration: the publish the broker performs on
// this connection's behalf when it drops ungracefully.
type Will struct {
	Topic   string
	Payload []byte
	Options PublishOptions
}

// ConnState is a connectivity direction.
type ConnState int

const (
	// Down means publishes fail and inbound delivery has stopped.
	Down ConnState = iota

	// Up means the connection is live. Subscriptions from before an
	// outage are still in force after the connection comes back.
	Up
)

// String implements fmt.Stringer for log output.
func (s ConnState) String() string {
	if s == Up {
		return "up"
	}
	return "down"
}

// ConnEvent is one connectivity transition.
type ConnEvent struct {
	// State is the new connectivity state.
	State ConnState

	// Err carries the cause for Down transitions when known.
	Err error
}
