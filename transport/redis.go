// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driftroom/driftroom/lib/clock"
)

// Compile-time interface check.
var _ Transport = (*RedisTransport)(nil)

const (
	// redisLivePrefix namespaces pub/sub channel names.
	redisLivePrefix = "driftroom:"

	// redisRetainedPrefix namespaces the keys backing the retained
	// store. Redis key TTLs implement expiry directly.
	redisRetainedPrefix = "driftroom:retained:"
)

// RedisOptions configure a RedisTransport.
type RedisOptions struct {
	// Addr is the Redis server address, e.g. "localhost:6379".
	Addr string

	// Username and Password are optional ACL credentials.
	Username string
	Password string

	// PingInterval is how often the connectivity prober runs. Zero
	// means 3s.
	PingInterval time.Duration

	// Clock drives the prober. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives adapter diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// RedisTransport adapts a Redis server to the Transport contract.
//
// Live traffic is Redis pub/sub: concrete filters subscribe to one
// channel, wildcard filters use PSUBSCRIBE with a glob pattern. Redis
// globs over-match ("*" crosses "/" boundaries), so every delivery is
// re-checked against the subscribed filters before it is surfaced.
// The retained store is the keyspace: one key per retained topic, with
// the key TTL implementing expiry exactly. Subscribe replays retained
// values with GET (concrete) or SCAN plus GET (wildcard).
//
// Redis has no broker-side last-will; a registered will is accepted
// but never fired, and crashed peers age out of rosters by the
// presence prune. Connectivity transitions come from a PING prober
// rather than the client library, which hides reconnects per command.
type RedisTransport struct {
	opts RedisOptions
	clk  clock.Clock
	log  *slog.Logger

	mu      sync.Mutex
	client  *redis.Client
	pubsub  *redis.PubSub
	filters map[string]struct{}
	closed  bool
	started bool
	up      bool

	stopProber chan struct{}
	proberDone chan struct{}
	pumpDone   chan struct{}

	messages chan Message
	events   chan ConnEvent
}

// NewRedis creates an unconnected Redis transport.
func NewRedis(opts RedisOptions) *RedisTransport {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 3 * time.Second
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisTransport{
		opts:       opts,
		clk:        clk,
		log:        logger,
		filters:    make(map[string]struct{}),
		stopProber: make(chan struct{}),
		proberDone: make(chan struct{}),
		pumpDone:   make(chan struct{}),
		messages:   make(chan Message, memoryClientBuffer),
		events:     make(chan ConnEvent, memoryEventBuffer),
	}
}

// Connect implements Transport.
func (t *RedisTransport) Connect(ctx context.Context, will *Will) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.started {
		return fmt.Errorf("transport: redis transport already connected")
	}

	if will != nil {
		t.log.Warn("redis has no broker-side last-will; relying on presence aging for crash cleanup",
			"will_topic", will.Topic)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     t.opts.Addr,
		Username: t.opts.Username,
		Password: t.opts.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("connecting to redis at %s: %w", t.opts.Addr, err)
	}

	t.client = client
	t.pubsub = client.Subscribe(ctx) // channels added per filter
	t.started = true
	t.up = true

	go t.pump()
	go t.probe()

	t.emitLocked(ConnEvent{State: Up})
	return nil
}

// Disconnect implements Transport.
func (t *RedisTransport) Disconnect(_ context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	pubsub, client, started := t.pubsub, t.client, t.started
	t.mu.Unlock()

	if started {
		close(t.stopProber)
		<-t.proberDone
		if pubsub != nil {
			_ = pubsub.Close()
			<-t.pumpDone
		}
		if client != nil {
			_ = client.Close()
		}
	}

	t.mu.Lock()
	close(t.messages)
	close(t.events)
	t.mu.Unlock()
	return nil
}

// Publish implements Transport.
func (t *RedisTransport) Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}

	t.mu.Lock()
	client, closed, started := t.client, t.closed, t.started
	t.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !started {
		return ErrNotConnected
	}

	if opts.Retain {
		key := redisRetainedPrefix + topic
		if len(payload) == 0 {
			if err := client.Del(ctx, key).Err(); err != nil {
				return fmt.Errorf("%w: clearing retained value for %s: %v", ErrNotConnected, topic, err)
			}
		} else {
			if err := client.Set(ctx, key, payload, opts.Expiry).Err(); err != nil {
				return fmt.Errorf("%w: storing retained value for %s: %v", ErrNotConnected, topic, err)
			}
		}
	}

	if err := client.Publish(ctx, redisLivePrefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("%w: publishing to %s: %v", ErrNotConnected, topic, err)
	}
	return nil
}

// Subscribe implements Transport.
func (t *RedisTransport) Subscribe(ctx context.Context, filters ...string) error {
	for _, filter := range filters {
		if err := ValidateFilter(filter); err != nil {
			return err
		}
	}

	t.mu.Lock()
	pubsub, closed, started := t.pubsub, t.closed, t.started
	t.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !started {
		return ErrNotConnected
	}

	for _, filter := range filters {
		t.mu.Lock()
		_, exists := t.filters[filter]
		if !exists {
			t.filters[filter] = struct{}{}
		}
		t.mu.Unlock()
		if exists {
			continue
		}

		var err error
		if strings.Contains(filter, "+") {
			err = pubsub.PSubscribe(ctx, redisPattern(redisLivePrefix, filter))
		} else {
			err = pubsub.Subscribe(ctx, redisLivePrefix+filter)
		}
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", filter, err)
		}

		if err := t.replayRetained(ctx, filter); err != nil {
			return err
		}
	}
	return nil
}

// replayRetained delivers stored values matching the filter, marked
// Retained. Expired keys are already gone: Redis TTLs do the aging.
func (t *RedisTransport) replayRetained(ctx context.Context, filter string) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()

	if !strings.Contains(filter, "+") {
		payload, err := client.Get(ctx, redisRetainedPrefix+filter).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading retained value for %s: %w", filter, err)
		}
		t.dispatch(Message{Topic: filter, Payload: payload, Retained: true})
		return nil
	}

	iter := client.Scan(ctx, 0, redisPattern(redisRetainedPrefix, filter), 100).Iterator()
	for iter.Next(ctx) {
		topic := strings.TrimPrefix(iter.Val(), redisRetainedPrefix)
		if !MatchFilter(filter, topic) {
			continue // glob over-match
		}
		payload, err := client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired between scan and read
		}
		if err != nil {
			return fmt.Errorf("reading retained value for %s: %w", topic, err)
		}
		t.dispatch(Message{Topic: topic, Payload: payload, Retained: true})
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning retained values for %s: %w", filter, err)
	}
	return nil
}

// Unsubscribe implements Transport.
func (t *RedisTransport) Unsubscribe(ctx context.Context, filters ...string) error {
	t.mu.Lock()
	pubsub, closed := t.pubsub, t.closed
	t.mu.Unlock()

	if closed {
		return ErrClosed
	}

	for _, filter := range filters {
		t.mu.Lock()
		_, exists := t.filters[filter]
		delete(t.filters, filter)
		t.mu.Unlock()
		if !exists {
			continue
		}

		var err error
		if strings.Contains(filter, "+") {
			err = pubsub.PUnsubscribe(ctx, redisPattern(redisLivePrefix, filter))
		} else {
			err = pubsub.Unsubscribe(ctx, redisLivePrefix+filter)
		}
		if err != nil {
			return fmt.Errorf("unsubscribing from %s: %w", filter, err)
		}
	}
	return nil
}

// Messages implements Transport.
func (t *RedisTransport) Messages() <-chan Message { return t.messages }

// Events implements Transport.
func (t *RedisTransport) Events() <-chan ConnEvent { return t.events }

// pump converts pub/sub deliveries to Messages, re-filtering to undo
// glob over-matching.
func (t *RedisTransport) pump() {
	defer close(t.pumpDone)

	for msg := range t.pubsub.Channel() {
		topic := strings.TrimPrefix(msg.Channel, redisLivePrefix)

		t.mu.Lock()
		matched := false
		for filter := range t.filters {
			if MatchFilter(filter, topic) {
				matched = true
				break
			}
		}
		t.mu.Unlock()

		if !matched {
			continue
		}
		t.dispatch(Message{Topic: topic, Payload: []byte(msg.Payload)})
	}
}

// probe runs the PING prober that turns command-level failures into
// connectivity transitions.
func (t *RedisTransport) probe() {
	defer close(t.proberDone)

	ticker := t.clk.NewTicker(t.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopProber:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), t.opts.PingInterval)
			err := t.client.Ping(ctx).Err()
			cancel()

			t.mu.Lock()
			wasUp := t.up
			t.up = err == nil
			transition := wasUp != t.up
			if transition {
				if t.up {
					t.emitLocked(ConnEvent{State: Up})
				} else {
					t.emitLocked(ConnEvent{State: Down, Err: err})
				}
			}
			t.mu.Unlock()
		}
	}
}

// redisPattern converts a subscription filter to a Redis glob under
// the given prefix. The glob "*" crosses "/" boundaries, so matches
// must be re-checked with MatchFilter.
func redisPattern(prefix, filter string) string {
	return prefix + strings.ReplaceAll(filter, "+", "*")
}

// dispatch enqueues one inbound message, dropping on overflow.
func (t *RedisTransport) dispatch(message Message) {
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

// emitLocked enqueues one connectivity event. Caller holds t.mu.
func (t *RedisTransport) emitLocked(event ConnEvent) {
	if t.closed {
		return
	}
	select {
	case t.events <- event:
	default:
	}
}
