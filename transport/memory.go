// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/driftroom/driftroom/lib/clock"
)

// Compile-time interface check.
var _ Transport = (*MemoryClient)(nil)

// MemoryBroker is a complete in-process broker for tests: topic
// fan-out, retained values with expiry, last-will, and per-client
// outage scripting. Protocol tests run entire multi-peer scenarios
// against one MemoryBroker and a FakeClock, no network involved.
//
// Retained expiry is lazy: a value past its deadline is dropped the
// next time something would read it. Combined with a FakeClock this
// makes expiry deterministic — advance the clock, then subscribe, and
// the expired value is gone.
type MemoryBroker struct {
	clk clock.Clock

	mu       sync.Mutex
	retained map[string]retainedValue
	clients  map[*MemoryClient]struct{}
}

type retainedValue struct {
	payload   []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryBroker creates an empty broker using the given clock for
// retained expiry.
func NewMemoryBroker(clk clock.Clock) *MemoryBroker {
	return &MemoryBroker{
		clk:      clk,
		retained: make(map[string]retainedValue),
		clients:  make(map[*MemoryClient]struct{}),
	}
}

// Client creates a new, not yet connected client of this broker.
func (b *MemoryBroker) Client() *MemoryClient {
	return &MemoryClient{
		broker:   b,
		filters:  make(map[string]struct{}),
		messages: make(chan Message, memoryClientBuffer),
		events:   make(chan ConnEvent, memoryEventBuffer),
	}
}

const (
	memoryClientBuffer = 256
	memoryEventBuffer  = 16
)

// publish stores retained values and fans out to connected matching
// clients. Holding b.mu across the fan-out gives every client the same
// per-topic delivery order as the publish order.
func (b *MemoryBroker) publish(topic string, payload []byte, opts PublishOptions) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if opts.Retain {
		if len(payload) == 0 {
			delete(b.retained, topic)
		} else {
			value := retainedValue{payload: append([]byte(nil), payload...)}
			if opts.Expiry > 0 {
				value.expiresAt = b.clk.Now().Add(opts.Expiry)
			}
			b.retained[topic] = value
		}
	}

	for client := range b.clients {
		client.deliver(topic, payload, false)
	}
}

// replayRetained delivers current, unexpired retained values matching
// the filter to one client. Expired entries are dropped on the way.
func (b *MemoryBroker) replayRetained(client *MemoryClient, filter string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clk.Now()
	for topic, value := range b.retained {
		if !MatchFilter(filter, topic) {
			continue
		}
		if !value.expiresAt.IsZero() && now.After(value.expiresAt) {
			delete(b.retained, topic)
			continue
		}
		client.deliver(topic, value.payload, true)
	}
}

func (b *MemoryBroker) attach(client *MemoryClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
}

// detach removes the client from fan-out. Because fan-out holds b.mu,
// returning from detach means no delivery to this client is in flight.
func (b *MemoryBroker) detach(client *MemoryClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, client)
}

// MemoryClient is one client connection to a MemoryBroker.
//
// Beyond the Transport interface it offers [MemoryClient.Drop] and
// [MemoryClient.Restore] so tests can script an outage: Drop severs
// the connection the way a network failure would — the broker fires
// the client's last-will, publishes stop with ErrNotConnected, inbound
// delivery halts — and Restore brings it back with subscriptions
// intact, the way a reconnecting client resumes its session.
//
// Lock order is always broker before client. Client methods never call
// into the broker while holding c.mu.
type MemoryClient struct {
	broker *MemoryBroker

	mu      sync.Mutex
	state   clientState
	will    *Will
	filters map[string]struct{}

	// messages and events are sent and closed only under c.mu, after
	// a state check, so a send can never race the close.
	messages chan Message
	events   chan ConnEvent
}

type clientState int

const (
	clientIdle clientState = iota
	clientConnected
	clientDropped
	clientClosed
)

// Connect attaches the client to the broker and emits the initial Up
// event. The will, if non-nil, fires on Drop but not on Disconnect.
func (c *MemoryClient) Connect(_ context.Context, will *Will) error {
	c.mu.Lock()
	switch c.state {
	case clientConnected, clientDropped:
		c.mu.Unlock()
		return fmt.Errorf("transport: memory client already connected")
	case clientClosed:
		c.mu.Unlock()
		return ErrClosed
	}
	if will != nil {
		if err := ValidateTopic(will.Topic); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("last-will: %w", err)
		}
		willCopy := *will
		willCopy.Payload = append([]byte(nil), will.Payload...)
		c.will = &willCopy
	}
	c.state = clientConnected
	c.mu.Unlock()

	c.broker.attach(c)
	c.emit(ConnEvent{State: Up})
	return nil
}

// Disconnect detaches gracefully: the will is discarded, and both
// channels are closed.
func (c *MemoryClient) Disconnect(_ context.Context) error {
	c.mu.Lock()
	if c.state == clientClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = clientClosed
	c.will = nil
	c.mu.Unlock()

	c.broker.detach(c)

	c.mu.Lock()
	close(c.messages)
	close(c.events)
	c.mu.Unlock()
	return nil
}

// Publish sends one payload through the broker.
func (c *MemoryClient) Publish(_ context.Context, topic string, payload []byte, opts PublishOptions) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case clientConnected:
	case clientDropped, clientIdle:
		return ErrNotConnected
	default:
		return ErrClosed
	}

	c.broker.publish(topic, payload, opts)
	return nil
}

// Subscribe adds filters and replays matching retained values.
func (c *MemoryClient) Subscribe(_ context.Context, filters ...string) error {
	for _, filter := range filters {
		if err := ValidateFilter(filter); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.state != clientConnected {
		state := c.state
		c.mu.Unlock()
		if state == clientClosed {
			return ErrClosed
		}
		return ErrNotConnected
	}
	for _, filter := range filters {
		c.filters[filter] = struct{}{}
	}
	c.mu.Unlock()

	for _, filter := range filters {
		c.broker.replayRetained(c, filter)
	}
	return nil
}

// Unsubscribe removes filters. Unknown filters are ignored.
func (c *MemoryClient) Unsubscribe(_ context.Context, filters ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == clientClosed {
		return ErrClosed
	}
	for _, filter := range filters {
		delete(c.filters, filter)
	}
	return nil
}

// Messages implements Transport.
func (c *MemoryClient) Messages() <-chan Message { return c.messages }

// Events implements Transport.
func (c *MemoryClient) Events() <-chan ConnEvent { return c.events }

// Drop severs the connection ungracefully: the broker fires the
// registered last-will, the client emits Down with the given cause,
// and publishes fail until Restore. Subscriptions are kept.
func (c *MemoryClient) Drop(cause error) {
	c.mu.Lock()
	if c.state != clientConnected {
		c.mu.Unlock()
		return
	}
	c.state = clientDropped
	will := c.will
	c.mu.Unlock()

	if will != nil {
		c.broker.publish(will.Topic, will.Payload, will.Options)
	}
	c.emit(ConnEvent{State: Down, Err: cause})
}

// Restore re-establishes a dropped connection with its subscriptions
// intact and emits Up. Publishes missed during the outage are gone;
// that is the point.
func (c *MemoryClient) Restore() {
	c.mu.Lock()
	if c.state != clientDropped {
		c.mu.Unlock()
		return
	}
	c.state = clientConnected
	c.mu.Unlock()

	c.emit(ConnEvent{State: Up})
}

// deliver enqueues one message if the client is connected and has a
// matching filter. The send is non-blocking: a consumer that stopped
// reading loses messages, like any slow consumer of a real broker.
func (c *MemoryClient) deliver(topic string, payload []byte, retained bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != clientConnected {
		return
	}
	matched := false
	for filter := range c.filters {
		if MatchFilter(filter, topic) {
			matched = true
			break
		}
	}
	if !matched {
		return
	}

	message := Message{
		Topic:    topic,
		Payload:  append([]byte(nil), payload...),
		Retained: retained,
	}
	select {
	case c.messages <- message:
	default:
	}
}

// emit enqueues one connectivity event, non-blocking.
func (c *MemoryClient) emit(event ConnEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == clientClosed {
		return
	}
	select {
	case c.events <- event:
	default:
	}
}
