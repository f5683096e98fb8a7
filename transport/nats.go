// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/driftroom/driftroom/lib/clock"
)

// Compile-time interface check.
var _ Transport = (*NATSTransport)(nil)

const (
	// natsLivePrefix namespaces live fan-out subjects, keeping a
	// shared NATS account free of collisions with other apps.
	natsLivePrefix = "driftroom"

	// natsRetainedPrefix namespaces the JetStream-captured subjects
	// that back the retained store. Distinct from the live prefix so
	// a stored publish is never double-delivered to live subscribers.
	natsRetainedPrefix = "driftroom-retained"

	// natsRetainedStream is the JetStream stream holding one message
	// per retained topic.
	natsRetainedStream = "DRIFTROOM_RETAINED"

	// natsExpiresHeader carries the retained value's expiry deadline
	// (RFC 3339). JetStream keeps the message until it is overwritten
	// or purged; the adapter drops expired values at delivery time,
	// which is indistinguishable from broker-side expiry to everyone
	// subscribed.
	natsExpiresHeader = "Driftroom-Expires-At"

	// natsRetainedBatch bounds one retained replay. Far above the
	// handful of retained topics a room plus lobby produce.
	natsRetainedBatch = 512
)

// NATSOptions configure a NATSTransport.
type NATSOptions struct {
	// URL is the NATS server URL, e.g. "nats://localhost:4222".
	URL string

	// Name identifies the connection to the server (shows up in
	// monitoring). Typically the peer's client ID.
	Name string

	// Username and Password are optional server credentials. They can
	// also be embedded in the URL; these fields take precedence.
	Username string
	Password string

	// ReconnectWait is the delay between reconnect attempts. Zero
	// means 2s.
	ReconnectWait time.Duration

	// Clock drives retained-expiry checks. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives adapter diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// NATSTransport adapts a NATS server to the Transport contract.
//
// Live traffic is core NATS publish/subscribe under one subject
// prefix. The retained store is a JetStream stream capturing a
// parallel subject space with MaxMsgsPerSubject=1, so the stream
// always holds exactly the last value per retained topic; Subscribe
// drains matching stored values through an ordered consumer and
// delivers them marked Retained. Expiry rides a message header and is
// enforced at delivery.
//
// Two contract degradations, both documented here because the protocol
// above is designed to absorb them: NATS has no broker-side last-will,
// so a registered will is accepted but never fired — crashed peers age
// out of rosters by the presence-prune interval instead. And publishes
// attempted while the connection is down fail with ErrNotConnected
// rather than entering the client library's internal reconnect buffer,
// keeping queue-while-offline a session-level concern with one owner.
type NATSTransport struct {
	opts NATSOptions
	clk  clock.Clock
	log  *slog.Logger

	mu      sync.Mutex
	nc      *nats.Conn
	js      jetstream.JetStream
	stream  jetstream.Stream
	subs    map[string]*nats.Subscription // filter → live subscription
	closed  bool
	started bool

	messages chan Message
	events   chan ConnEvent
}

// NewNATS creates an unconnected NATS transport.
func NewNATS(opts NATSOptions) *NATSTransport {
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSTransport{
		opts:     opts,
		clk:      clk,
		log:      logger,
		subs:     make(map[string]*nats.Subscription),
		messages: make(chan Message, memoryClientBuffer),
		events:   make(chan ConnEvent, memoryEventBuffer),
	}
}

// Connect implements Transport.
func (t *NATSTransport) Connect(ctx context.Context, will *Will) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.started {
		return fmt.Errorf("transport: nats transport already connected")
	}

	if will != nil {
		t.log.Warn("nats has no broker-side last-will; relying on presence aging for crash cleanup",
			"will_topic", will.Topic)
	}

	connectOpts := []nats.Option{
		nats.Name(t.opts.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(t.opts.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, cause error) {
			t.emit(ConnEvent{State: Down, Err: cause})
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			t.emit(ConnEvent{State: Up})
		}),
	}
	if t.opts.Username != "" {
		connectOpts = append(connectOpts, nats.UserInfo(t.opts.Username, t.opts.Password))
	}

	nc, err := nats.Connect(t.opts.URL, connectOpts...)
	if err != nil {
		return fmt.Errorf("connecting to nats at %s: %w", t.opts.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("creating jetstream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:              natsRetainedStream,
		Description:       "last-value store for retained driftroom topics",
		Subjects:          []string{natsRetainedPrefix + ".>"},
		MaxMsgsPerSubject: 1,
		Storage:           jetstream.MemoryStorage,
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("creating retained stream: %w", err)
	}

	t.nc = nc
	t.js = js
	t.stream = stream
	t.started = true
	t.emit(ConnEvent{State: Up})
	return nil
}

// Disconnect implements Transport.
func (t *NATSTransport) Disconnect(_ context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	nc := t.nc
	t.mu.Unlock()

	if nc != nil {
		// Drain flushes outstanding traffic before closing.
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}

	t.mu.Lock()
	close(t.messages)
	close(t.events)
	t.mu.Unlock()
	return nil
}

// Publish implements Transport.
func (t *NATSTransport) Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	subject, err := natsSubject(natsLivePrefix, topic)
	if err != nil {
		return err
	}

	t.mu.Lock()
	nc, js, stream, closed := t.nc, t.js, t.stream, t.closed
	t.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if nc == nil || !nc.IsConnected() {
		return ErrNotConnected
	}

	if opts.Retain {
		retainedSubject, err := natsSubject(natsRetainedPrefix, topic)
		if err != nil {
			return err
		}
		if len(payload) == 0 {
			if err := stream.Purge(ctx, jetstream.WithPurgeSubject(retainedSubject)); err != nil {
				return fmt.Errorf("clearing retained value for %s: %w", topic, err)
			}
		} else {
			msg := &nats.Msg{Subject: retainedSubject, Data: payload}
			if opts.Expiry > 0 {
				msg.Header = nats.Header{}
				msg.Header.Set(natsExpiresHeader, t.clk.Now().Add(opts.Expiry).Format(time.RFC3339Nano))
			}
			if _, err := js.PublishMsg(ctx, msg); err != nil {
				return fmt.Errorf("storing retained value for %s: %w", topic, err)
			}
		}
	}

	if err := nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// Subscribe implements Transport.
func (t *NATSTransport) Subscribe(ctx context.Context, filters ...string) error {
	for _, filter := range filters {
		if err := ValidateFilter(filter); err != nil {
			return err
		}
	}

	for _, filter := range filters {
		subject, err := natsFilterSubject(natsLivePrefix, filter)
		if err != nil {
			return err
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return ErrClosed
		}
		nc := t.nc
		if _, exists := t.subs[filter]; exists {
			t.mu.Unlock()
			continue
		}
		t.mu.Unlock()

		if nc == nil {
			return ErrNotConnected
		}

		sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
			topic, err := natsTopic(natsLivePrefix, msg.Subject)
			if err != nil {
				t.log.Debug("dropping message on unmappable subject", "subject", msg.Subject, "error", err)
				return
			}
			t.dispatch(Message{Topic: topic, Payload: msg.Data})
		})
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", filter, err)
		}

		t.mu.Lock()
		t.subs[filter] = sub
		t.mu.Unlock()

		if err := t.replayRetained(ctx, filter); err != nil {
			return err
		}
	}
	return nil
}

// replayRetained drains the stored last values matching the filter and
// delivers the unexpired ones, marked Retained.
func (t *NATSTransport) replayRetained(ctx context.Context, filter string) error {
	retainedFilter, err := natsFilterSubject(natsRetainedPrefix, filter)
	if err != nil {
		return err
	}

	t.mu.Lock()
	stream := t.stream
	t.mu.Unlock()
	if stream == nil {
		return ErrNotConnected
	}

	consumer, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{retainedFilter},
		DeliverPolicy:  jetstream.DeliverLastPerSubjectPolicy,
	})
	if err != nil {
		return fmt.Errorf("creating retained replay consumer for %s: %w", filter, err)
	}

	batch, err := consumer.FetchNoWait(natsRetainedBatch)
	if err != nil {
		return fmt.Errorf("fetching retained values for %s: %w", filter, err)
	}

	now := t.clk.Now()
	for msg := range batch.Messages() {
		topic, err := natsTopic(natsRetainedPrefix, msg.Subject())
		if err != nil {
			continue
		}
		if deadline, ok := natsExpiry(msg.Headers()); ok && now.After(deadline) {
			continue
		}
		t.dispatch(Message{Topic: topic, Payload: msg.Data(), Retained: true})
	}
	if err := batch.Error(); err != nil {
		return fmt.Errorf("draining retained values for %s: %w", filter, err)
	}
	return nil
}

// Unsubscribe implements Transport.
func (t *NATSTransport) Unsubscribe(_ context.Context, filters ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	for _, filter := range filters {
		sub, ok := t.subs[filter]
		if !ok {
			continue
		}
		delete(t.subs, filter)
		if err := sub.Unsubscribe(); err != nil {
			return fmt.Errorf("unsubscribing from %s: %w", filter, err)
		}
	}
	return nil
}

// Messages implements Transport.
func (t *NATSTransport) Messages() <-chan Message { return t.messages }

// Events implements Transport.
func (t *NATSTransport) Events() <-chan ConnEvent { return t.events }

// dispatch enqueues one inbound message, dropping on overflow like any
// slow-consumer policy.
func (t *NATSTransport) dispatch(message Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.messages <- message:
	default:
	}
}

// emit enqueues one connectivity event.
func (t *NATSTransport) emit(event ConnEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.events <- event:
	default:
	}
}

// natsSubject maps a driftroom topic to a NATS subject under the given
// prefix: "/" separators become ".". Topic segments must therefore be
// free of "."; wire-level identifiers guarantee this, and the mapping
// rejects violations rather than corrupting the subject space.
func natsSubject(prefix, topic string) (string, error) {
	if strings.Contains(topic, ".") {
		return "", fmt.Errorf("transport: topic %q contains %q, unmappable to a nats subject", topic, ".")
	}
	return prefix + "." + strings.ReplaceAll(topic, "/", "."), nil
}

// natsFilterSubject maps a subscription filter: "+" becomes the NATS
// single-level wildcard "*".
func natsFilterSubject(prefix, filter string) (string, error) {
	if strings.Contains(filter, ".") {
		return "", fmt.Errorf("transport: filter %q contains %q, unmappable to a nats subject", filter, ".")
	}
	mapped := strings.ReplaceAll(filter, "/", ".")
	mapped = strings.ReplaceAll(mapped, "+", "*")
	return prefix + "." + mapped, nil
}

// natsTopic maps an inbound NATS subject back to a driftroom topic.
func natsTopic(prefix, subject string) (string, error) {
	trimmed, found := strings.CutPrefix(subject, prefix+".")
	if !found {
		return "", fmt.Errorf("transport: subject %q lacks prefix %q", subject, prefix)
	}
	return strings.ReplaceAll(trimmed, ".", "/"), nil
}

// natsExpiry reads the retained-expiry header.
func natsExpiry(header nats.Header) (time.Time, bool) {
	if header == nil {
		return time.Time{}, false
	}
	raw := header.Get(natsExpiresHeader)
	if raw == "" {
		return time.Time{}, false
	}
	deadline, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return deadline, true
}
