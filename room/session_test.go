// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/driftroom/driftroom/lib/clock"
	"github.com/driftroom/driftroom/lib/testutil"
	"github.com/driftroom/driftroom/transport"
	"github.com/driftroom/driftroom/wire"
)

const testTimeout = 3 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sessionHarness runs one Session against an in-memory broker with a
// fake clock. Tests drive time with clk.Advance and observe the
// session through its event stream and through raw peer clients on
// the same broker.
type sessionHarness struct {
	t       *testing.T
	clk     *clock.FakeClock
	broker  *transport.MemoryBroker
	client  *transport.MemoryClient
	sess    *Session
	cancel  context.CancelFunc
	errc    chan error
	stopped bool
}

func startSession(t *testing.T, clk *clock.FakeClock, broker *transport.MemoryBroker, opts Options) *sessionHarness {
	t.Helper()
	client := broker.Client()
	opts.Transport = client
	opts.Clock = clk
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	sess, err := NewSession(opts)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &sessionHarness{
		t:      t,
		clk:    clk,
		broker: broker,
		client: client,
		sess:   sess,
		cancel: cancel,
		errc:   make(chan error, 1),
	}
	go func() { h.errc <- sess.Run(ctx) }()
	t.Cleanup(h.stop)

	// The loop registers the create-window timer and the heartbeat
	// ticker once it is subscribed; waiting for both pins the
	// startup sequence before any test advances the clock.
	clk.WaitForTimers(2)
	return h
}

func (h *sessionHarness) stop() {
	h.t.Helper()
	if h.stopped {
		return
	}
	h.stopped = true
	h.cancel()
	if err := testutil.RequireReceive(h.t, h.errc, testTimeout, "session exit"); err != nil {
		h.t.Fatalf("Run: %v", err)
	}
}

// waitReady consumes startup events until both the initial
// connectivity report and the configuration handshake have been seen,
// and returns the Joined event.
func (h *sessionHarness) waitReady() Joined {
	h.t.Helper()
	deadline := time.After(testTimeout)
	var joined *Joined
	sawUp := false
	for {
		if joined != nil && sawUp {
			return *joined
		}
		select {
		case ev, ok := <-h.sess.Events():
			if !ok {
				h.t.Fatal("event stream closed during startup")
			}
			switch ev := ev.(type) {
			case Joined:
				j := ev
				joined = &j
			case Connectivity:
				if ev.Up {
					sawUp = true
				}
			}
		case <-deadline:
			h.t.Fatalf("startup incomplete: joined=%v connected=%v", joined != nil, sawUp)
		}
	}
}

// waitRoster consumes events until a roster snapshot holds exactly
// the given client IDs.
func (h *sessionHarness) waitRoster(want ...wire.ClientID) {
	h.t.Helper()
	deadline := time.After(testTimeout)
	var last []Peer
	for {
		select {
		case ev, ok := <-h.sess.Events():
			if !ok {
				h.t.Fatalf("event stream closed waiting for roster %v (last %v)", want, rosterIDs(last))
			}
			ru, isRoster := ev.(RosterUpdated)
			if !isRoster {
				continue
			}
			last = ru.Peers
			if rosterMatches(ru.Peers, want) {
				return
			}
		case <-deadline:
			h.t.Fatalf("timed out waiting for roster %v; last seen %v", want, rosterIDs(last))
		}
	}
}

func rosterMatches(peers []Peer, want []wire.ClientID) bool {
	if len(peers) != len(want) {
		return false
	}
	have := make(map[wire.ClientID]bool, len(peers))
	for _, p := range peers {
		have[p.Identity.ClientID] = true
	}
	for _, id := range want {
		if !have[id] {
			return false
		}
	}
	return true
}

func rosterIDs(peers []Peer) []wire.ClientID {
	ids := make([]wire.ClientID, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.Identity.ClientID)
	}
	return ids
}

// nextEvent returns the next event of type T, skipping others.
func nextEvent[T Event](t *testing.T, events <-chan Event) T {
	t.Helper()
	got, _ := collectUntil[T](t, events)
	return got
}

// collectUntil returns the next event of type T plus everything that
// arrived before it, for tests that must prove an event did NOT
// happen in between.
func collectUntil[T Event](t *testing.T, events <-chan Event) (T, []Event) {
	t.Helper()
	var skipped []Event
	deadline := time.After(testTimeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				var zero T
				t.Fatalf("event stream closed while waiting for %T", zero)
			}
			if want, match := ev.(T); match {
				return want, skipped
			}
			skipped = append(skipped, ev)
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T (skipped %d other events)", zero, len(skipped))
		}
	}
}

// testPeer is a raw broker client standing in for another chat peer,
// publishing handcrafted payloads and decoding what the session
// publishes.
type testPeer struct {
	t    *testing.T
	id   wire.Identity
	room wire.RoomID
	tr   *transport.MemoryClient
}

func newPeer(t *testing.T, broker *transport.MemoryBroker, room wire.RoomID, name string) *testPeer {
	t.Helper()
	p := &testPeer{
		t:    t,
		id:   wire.Identity{ClientID: wire.ClientID("client-" + name), Username: name},
		room: room,
		tr:   broker.Client(),
	}
	ctx := context.Background()
	if err := p.tr.Connect(ctx, nil); err != nil {
		t.Fatalf("peer %s: connect: %v", name, err)
	}
	if err := p.tr.Subscribe(ctx, wire.RoomTopics(room)...); err != nil {
		t.Fatalf("peer %s: subscribe: %v", name, err)
	}
	return p
}

func (p *testPeer) publish(topic string, v any) {
	p.t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		p.t.Fatalf("peer %s: marshal: %v", p.id.Username, err)
	}
	if err := p.tr.Publish(context.Background(), topic, payload, transport.PublishOptions{}); err != nil {
		p.t.Fatalf("peer %s: publish %s: %v", p.id.Username, topic, err)
	}
}

func (p *testPeer) join() {
	p.publish(wire.RoomTopic(p.room, wire.ChannelPresence),
		wire.Presence{Kind: wire.PresenceJoin, Peer: p.id, SentAt: time.Unix(1700000000, 0)})
}

func (p *testPeer) sendText(id wire.MessageID, body string) wire.ChatMessage {
	msg := wire.ChatMessage{
		ID:     id,
		Kind:   wire.MessageText,
		Body:   body,
		Sender: p.id,
		SentAt: time.Unix(1700000000, 0),
	}
	p.publish(wire.RoomTopic(p.room, wire.ChannelMessages), msg)
	return msg
}

func (p *testPeer) react(target wire.MessageID, emoji string) wire.Reaction {
	r := wire.Reaction{MessageID: target, Emoji: emoji, From: p.id, SentAt: time.Unix(1700000000, 0)}
	p.publish(wire.RoomTopic(p.room, wire.ChannelReactions), r)
	return r
}

func (p *testPeer) propose(voteID wire.VoteID, public bool) wire.VoteProposal {
	prop := wire.VoteProposal{
		VoteID:       voteID,
		Action:       wire.VoteActionSetVisibility,
		TargetPublic: public,
		Initiator:    p.id,
		SentAt:       time.Unix(1700000000, 0),
	}
	p.publish(wire.RoomTopic(p.room, wire.ChannelVote),
		wire.VoteMessage{Kind: wire.VotePayloadProposal, Proposal: &prop})
	return prop
}

func (p *testPeer) ballot(voteID wire.VoteID, decision wire.BallotDecision) {
	b := wire.Ballot{VoteID: voteID, Voter: p.id, Decision: decision, SentAt: time.Unix(1700000000, 0)}
	p.publish(wire.RoomTopic(p.room, wire.ChannelVote),
		wire.VoteMessage{Kind: wire.VotePayloadBallot, Ballot: &b})
}

// await returns the next decoded event this peer receives on the
// given channel, skipping other topics.
func (p *testPeer) await(channel wire.Channel) wire.Event {
	p.t.Helper()
	want := wire.RoomTopic(p.room, channel)
	deadline := time.After(testTimeout)
	for {
		select {
		case m, ok := <-p.tr.Messages():
			if !ok {
				p.t.Fatalf("peer %s: transport closed waiting on %s", p.id.Username, want)
			}
			if m.Topic != want {
				continue
			}
			ev, err := wire.Decode(m.Topic, m.Payload)
			if err != nil {
				p.t.Fatalf("peer %s: decoding %s: %v", p.id.Username, m.Topic, err)
			}
			return ev
		case <-deadline:
			p.t.Fatalf("peer %s: timed out waiting on %s", p.id.Username, want)
		}
	}
}

func (p *testPeer) awaitMessage() wire.ChatMessage {
	p.t.Helper()
	return p.await(wire.ChannelMessages).(wire.MessageEvent).Message
}

// awaitPresence scans the presence channel for the given kind from
// the given peer, skipping everything else (own echoes included).
func (p *testPeer) awaitPresence(kind wire.PresenceKind, from wire.ClientID) wire.Presence {
	p.t.Helper()
	for {
		pr := p.await(wire.ChannelPresence).(wire.PresenceEvent).Presence
		if pr.Kind == kind && pr.Peer.ClientID == from {
			return pr
		}
	}
}

func (p *testPeer) awaitBallot() wire.Ballot {
	p.t.Helper()
	for {
		if ev, ok := p.await(wire.ChannelVote).(wire.BallotEvent); ok {
			return ev.Ballot
		}
	}
}

func (p *testPeer) awaitProposal() wire.VoteProposal {
	p.t.Helper()
	for {
		if ev, ok := p.await(wire.ChannelVote).(wire.ProposalEvent); ok {
			return ev.Proposal
		}
	}
}

func seedRoomConfig(t *testing.T, broker *transport.MemoryBroker, room wire.RoomID, cfg wire.RoomConfig) {
	t.Helper()
	ctx := context.Background()
	c := broker.Client()
	if err := c.Connect(ctx, nil); err != nil {
		t.Fatalf("seeding config: connect: %v", err)
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("seeding config: marshal: %v", err)
	}
	if err := c.Publish(ctx, wire.RoomTopic(room, wire.ChannelConfig), payload, transport.PublishOptions{Retain: true}); err != nil {
		t.Fatalf("seeding config: publish: %v", err)
	}
	if err := c.Disconnect(ctx); err != nil {
		t.Fatalf("seeding config: disconnect: %v", err)
	}
}

// waitRetained polls with fresh subscribers until the topic replays a
// retained payload.
func waitRetained(t *testing.T, broker *transport.MemoryBroker, topic string) []byte {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if payload := retainedProbe(t, broker, topic); payload != nil {
			return payload
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no retained payload appeared on %s", topic)
	return nil
}

// requireNoRetained asserts a fresh subscriber replays nothing for
// the topic. Callers synchronize first (the clear must already have
// reached the broker).
func requireNoRetained(t *testing.T, broker *transport.MemoryBroker, topic string) {
	t.Helper()
	if payload := retainedProbe(t, broker, topic); payload != nil {
		t.Fatalf("unexpected retained payload on %s: %s", topic, payload)
	}
}

func retainedProbe(t *testing.T, broker *transport.MemoryBroker, topic string) []byte {
	t.Helper()
	ctx := context.Background()
	c := broker.Client()
	if err := c.Connect(ctx, nil); err != nil {
		t.Fatalf("probe connect: %v", err)
	}
	defer c.Disconnect(ctx)
	if err := c.Subscribe(ctx, topic); err != nil {
		t.Fatalf("probe subscribe: %v", err)
	}
	// Replay is synchronous with Subscribe; anything retained is
	// already buffered.
	select {
	case m := <-c.Messages():
		return m.Payload
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

var (
	t0       = time.Unix(1700000000, 0)
	carol    = wire.Identity{ClientID: "client-carol", Username: "carol"}
	aliceID  = wire.Identity{ClientID: "client-alice", Username: "alice"}
	seedOpts = func(room wire.RoomID) Options {
		return Options{Room: room, Identity: aliceID}
	}
)

func seededPublic(t *testing.T, broker *transport.MemoryBroker, room wire.RoomID, topic string) {
	t.Helper()
	seedRoomConfig(t, broker, room, wire.RoomConfig{
		Public: true, Topic: topic, CreatedBy: carol, CreatedAt: t0,
	})
}

func seededPrivate(t *testing.T, broker *transport.MemoryBroker, room wire.RoomID) {
	t.Helper()
	seedRoomConfig(t, broker, room, wire.RoomConfig{
		Public: false, CreatedBy: carol, CreatedAt: t0,
	})
}

func TestSessionCreatesRoomWhenAlone(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	opts := seedOpts("den")
	opts.Create = Create{Public: true, Topic: "late night"}
	h := startSession(t, clk, broker, opts)

	// Nobody published a retained configuration; the create window
	// (two ticks) lapses and this peer becomes the creator.
	clk.Advance(10 * time.Second)
	joined := h.waitReady()
	if !joined.Created {
		t.Fatal("expected this peer to create the room")
	}
	if !joined.Config.Public || joined.Config.Topic != "late night" {
		t.Fatalf("created config = %+v", joined.Config)
	}
	if joined.Config.CreatedBy.ClientID != aliceID.ClientID {
		t.Fatalf("CreatedBy = %s, want alice", joined.Config.CreatedBy.ClientID)
	}

	var stored wire.RoomConfig
	if err := json.Unmarshal(waitRetained(t, broker, wire.RoomTopic("den", wire.ChannelConfig)), &stored); err != nil {
		t.Fatalf("decoding retained config: %v", err)
	}
	if !stored.Public || stored.CreatedBy.ClientID != aliceID.ClientID {
		t.Fatalf("retained config = %+v", stored)
	}

	// Public room: the lobby listing is advertised too.
	var listing wire.LobbyListing
	if err := json.Unmarshal(waitRetained(t, broker, wire.LobbyTopic("den")), &listing); err != nil {
		t.Fatalf("decoding retained listing: %v", err)
	}
	if listing.RoomID != "den" || listing.Topic != "late night" || listing.PeerCount != 1 {
		t.Fatalf("listing = %+v", listing)
	}
}

func TestSessionAdoptsExistingConfig(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPrivate(t, broker, "den")
	h := startSession(t, clk, broker, seedOpts("den"))

	joined := h.waitReady()
	if joined.Created {
		t.Fatal("peer joined an existing room; Created should be false")
	}
	if joined.Config.CreatedBy.ClientID != carol.ClientID {
		t.Fatalf("adopted config CreatedBy = %s, want carol", joined.Config.CreatedBy.ClientID)
	}

	// Sail past the create window; the disarmed creation must not
	// fire. A sentinel message proves no Joined snuck in between.
	clk.Advance(15 * time.Second)
	bob := newPeer(t, broker, "den", "bob")
	bob.sendText("msg-sentinel", "anyone here")
	_, skipped := collectUntil[MessageAdded](t, h.sess.Events())
	for _, ev := range skipped {
		if _, isJoined := ev.(Joined); isJoined {
			t.Fatal("session re-ran the configuration handshake")
		}
	}

	var stored wire.RoomConfig
	if err := json.Unmarshal(waitRetained(t, broker, wire.RoomTopic("den", wire.ChannelConfig)), &stored); err != nil {
		t.Fatalf("decoding retained config: %v", err)
	}
	if stored.CreatedBy.ClientID != carol.ClientID {
		t.Fatalf("retained config was overwritten: %+v", stored)
	}
}

func TestSessionPresenceLifecycle(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPrivate(t, broker, "den")
	bob := newPeer(t, broker, "den", "bob")
	h := startSession(t, clk, broker, seedOpts("den"))
	h.waitReady()

	// The first thing the room hears from a starting session is its
	// join announcement.
	first := bob.await(wire.ChannelPresence).(wire.PresenceEvent).Presence
	if first.Kind != wire.PresenceJoin || first.Peer.ClientID != aliceID.ClientID {
		t.Fatalf("first presence = %+v, want alice's join", first)
	}

	// Heartbeats follow on every tick.
	clk.Advance(5 * time.Second)
	bob.awaitPresence(wire.PresenceHeartbeat, aliceID.ClientID)
	clk.Advance(5 * time.Second)
	bob.awaitPresence(wire.PresenceHeartbeat, aliceID.ClientID)

	// Graceful shutdown announces the leave explicitly.
	h.stop()
	bob.awaitPresence(wire.PresenceLeave, aliceID.ClientID)
}

func TestSessionPrunesSilentPeer(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPrivate(t, broker, "den")
	h := startSession(t, clk, broker, seedOpts("den"))
	h.waitReady()

	bob := newPeer(t, broker, "den", "bob")
	bob.join()
	h.waitRoster(aliceID.ClientID, bob.id.ClientID)

	// Bob goes silent. Five ticks in (25s of local silence, exactly
	// the threshold) he is still on the roster.
	for i := 0; i < 5; i++ {
		clk.Advance(5 * time.Second)
		bob.awaitPresence(wire.PresenceHeartbeat, aliceID.ClientID)
	}
	testutil.RequireNoReceive(t, h.sess.Events(), 50*time.Millisecond,
		"no roster change before the silence threshold")

	// One more tick pushes bob past the threshold.
	clk.Advance(5 * time.Second)
	bob.awaitPresence(wire.PresenceHeartbeat, aliceID.ClientID)
	h.waitRoster(aliceID.ClientID)
}

func TestSessionLeaveRemovesImmediately(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPrivate(t, broker, "den")
	h := startSession(t, clk, broker, seedOpts("den"))
	h.waitReady()

	bob := newPeer(t, broker, "den", "bob")
	bob.join()
	h.waitRoster(aliceID.ClientID, bob.id.ClientID)

	bob.publish(wire.RoomTopic("den", wire.ChannelPresence),
		wire.Presence{Kind: wire.PresenceLeave, Peer: bob.id, SentAt: t0})
	h.waitRoster(aliceID.ClientID)
}

func TestSessionMessageRoundTripAndDedup(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPrivate(t, broker, "den")
	bob := newPeer(t, broker, "den", "bob")
	h := startSession(t, clk, broker, seedOpts("den"))
	h.waitReady()

	// Outbound: local echo first, then the broker copy for the room.
	h.sess.SendText("morning all", "")
	added := nextEvent[MessageAdded](t, h.sess.Events())
	if added.Message.Body != "morning all" || added.Message.Sender.ClientID != aliceID.ClientID {
		t.Fatalf("local echo = %+v", added.Message)
	}
	got := bob.awaitMessage()
	if got.ID != added.Message.ID || got.Body != "morning all" {
		t.Fatalf("room copy = %+v", got)
	}

	// Inbound, delivered twice: the second copy must not produce a
	// second event. The sentinel proves ordering.
	msg := bob.sendText("msg-b1", "hello from bob")
	if ev := nextEvent[MessageAdded](t, h.sess.Events()); ev.Message.ID != "msg-b1" {
		t.Fatalf("MessageAdded = %s, want msg-b1", ev.Message.ID)
	}
	bob.publish(wire.RoomTopic("den", wire.ChannelMessages), msg) // redelivery
	bob.sendText("msg-b2", "still here")
	if ev := nextEvent[MessageAdded](t, h.sess.Events()); ev.Message.ID != "msg-b2" {
		t.Fatalf("after redelivery, MessageAdded = %s, want msg-b2", ev.Message.ID)
	}
}

func TestSessionReplyCarriesSummary(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPrivate(t, broker, "den")
	bob := newPeer(t, broker, "den", "bob")
	h := startSession(t, clk, broker, seedOpts("den"))
	h.waitReady()

	bob.sendText("msg-b1", "the quick brown fox jumps over the lazy dog")
	bob.awaitMessage() // bob's own broker echo
	nextEvent[MessageAdded](t, h.sess.Events())

	h.sess.SendText("well put", "msg-b1")
	reply := nextEvent[MessageAdded](t, h.sess.Events()).Message
	if reply.ReplyTo != "msg-b1" {
		t.Fatalf("ReplyTo = %s", reply.ReplyTo)
	}
	if reply.ReplySummary == nil {
		t.Fatal("reply should carry a denormalized summary")
	}
	if reply.ReplySummary.SenderName != "bob" {
		t.Fatalf("summary sender = %s, want bob", reply.ReplySummary.SenderName)
	}
	if reply.ReplySummary.Excerpt != "the quick brown fox jumps over the lazy dog" {
		t.Fatalf("summary excerpt = %q", reply.ReplySummary.Excerpt)
	}

	// The wire copy carries the summary too; receivers render it
	// without a log lookup.
	wireCopy := bob.awaitMessage()
	if wireCopy.ReplySummary == nil || wireCopy.ReplySummary.SenderName != "bob" {
		t.Fatalf("wire copy summary = %+v", wireCopy.ReplySummary)
	}
}

func TestSessionReactionIdempotentAcrossRedelivery(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPrivate(t, broker, "den")
	bob := newPeer(t, broker, "den", "bob")
	h := startSession(t, clk, broker, seedOpts("den"))
	h.waitReady()

	h.sess.SendText("rate my soup", "")
	target := nextEvent[MessageAdded](t, h.sess.Events()).Message.ID

	r := bob.react(target, "👍")
	ev := nextEvent[ReactionAdded](t, h.sess.Events())
	if len(ev.Message.Reactions["👍"]) != 1 {
		t.Fatalf("reactors after first delivery = %v", ev.Message.Reactions)
	}

	// Redeliver the identical reaction, then send a distinct one as
	// a sentinel: the duplicate must be absorbed silently.
	bob.publish(wire.RoomTopic("den", wire.ChannelReactions), r)
	bob.react(target, "🎉")
	ev = nextEvent[ReactionAdded](t, h.sess.Events())
	if ev.Reaction.Emoji != "🎉" {
		t.Fatalf("after redelivery, ReactionAdded = %s, want 🎉", ev.Reaction.Emoji)
	}
	if len(ev.Message.Reactions["👍"]) != 1 {
		t.Fatalf("duplicate delivery double-counted: %v", ev.Message.Reactions)
	}

	// A second reactor on the same emoji still counts.
	h.sess.React(target, "👍")
	ev = nextEvent[ReactionAdded](t, h.sess.Events())
	if len(ev.Message.Reactions["👍"]) != 2 {
		t.Fatalf("distinct reactors = %v", ev.Message.Reactions["👍"])
	}
}

func TestSessionQueuesWhileOfflineAndFlushesInOrder(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPrivate(t, broker, "den")
	bob := newPeer(t, broker, "den", "bob")
	h := startSession(t, clk, broker, seedOpts("den"))
	h.waitReady()

	h.client.Drop(errors.New("router reboot"))
	if ev := nextEvent[Connectivity](t, h.sess.Events()); ev.Up {
		t.Fatal("expected a down transition")
	}
	// The broker fires the registered last-will on the ungraceful
	// drop: the room sees alice leave without alice saying so.
	bob.awaitPresence(wire.PresenceLeave, aliceID.ClientID)

	// Composing while offline: the author still sees both messages
	// immediately, and nothing reaches the broker.
	h.sess.SendText("first", "")
	nextEvent[MessageAdded](t, h.sess.Events())
	h.sess.SendText("second", "")
	nextEvent[MessageAdded](t, h.sess.Events())
	testutil.RequireNoReceive(t, bob.tr.Messages(), 50*time.Millisecond,
		"no traffic may reach the room while the author is offline")

	// Reconnect: the outbox flushes in compose order.
	h.client.Restore()
	if ev := nextEvent[Connectivity](t, h.sess.Events()); !ev.Up {
		t.Fatal("expected an up transition")
	}
	if got := bob.awaitMessage(); got.Body != "first" {
		t.Fatalf("first flushed message = %q", got.Body)
	}
	if got := bob.awaitMessage(); got.Body != "second" {
		t.Fatalf("second flushed message = %q", got.Body)
	}
}

func TestSessionVetoDiscardsProposal(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPublic(t, broker, "den", "night shift")
	h := startSession(t, clk, broker, seedOpts("den"))
	h.waitReady()

	bob := newPeer(t, broker, "den", "bob")
	bob.join()
	h.waitRoster(aliceID.ClientID, bob.id.ClientID)

	h.sess.ProposeVisibility(false)
	opened := nextEvent[VoteOpened](t, h.sess.Events())
	if opened.CanVote {
		t.Fatal("initiator must not be offered a ballot")
	}
	prop := bob.awaitProposal()
	if prop.TargetPublic {
		t.Fatalf("proposal target = %+v, want private", prop)
	}

	bob.ballot(prop.VoteID, wire.DecisionVeto)
	resolved, skipped := collectUntil[VoteResolved](t, h.sess.Events())
	if resolved.Outcome != VoteVetoed {
		t.Fatalf("outcome = %v, want vetoed", resolved.Outcome)
	}
	for _, ev := range skipped {
		if _, isConfig := ev.(ConfigChanged); isConfig {
			t.Fatal("a vetoed vote must not change the configuration")
		}
	}

	var stored wire.RoomConfig
	if err := json.Unmarshal(waitRetained(t, broker, wire.RoomTopic("den", wire.ChannelConfig)), &stored); err != nil {
		t.Fatalf("decoding retained config: %v", err)
	}
	if !stored.Public {
		t.Fatal("retained configuration changed despite the veto")
	}

	// The slot is free again: a new proposal opens normally.
	h.sess.ProposeVisibility(false)
	nextEvent[VoteOpened](t, h.sess.Events())
}

func TestSessionUnanimousVoteCommitsAndClearsLobby(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPublic(t, broker, "den", "night shift")
	h := startSession(t, clk, broker, seedOpts("den"))
	h.waitReady()

	bob := newPeer(t, broker, "den", "bob")
	bob.join()
	cara := newPeer(t, broker, "den", "cara")
	cara.join()
	h.waitRoster(aliceID.ClientID, bob.id.ClientID, cara.id.ClientID)

	// One tick advertises the public room with the full peer count.
	clk.Advance(5 * time.Second)
	bob.awaitPresence(wire.PresenceHeartbeat, aliceID.ClientID)
	var listing wire.LobbyListing
	if err := json.Unmarshal(waitRetained(t, broker, wire.LobbyTopic("den")), &listing); err != nil {
		t.Fatalf("decoding listing: %v", err)
	}
	if listing.PeerCount != 3 || listing.Topic != "night shift" {
		t.Fatalf("listing = %+v", listing)
	}

	h.sess.ProposeVisibility(false)
	prop := bob.awaitProposal()

	// One agree is progress, not resolution; the duplicate delivery
	// of the same ballot must not advance the count.
	bob.ballot(prop.VoteID, wire.DecisionAgree)
	progress := nextEvent[VoteProgress](t, h.sess.Events())
	if progress.Agreed != 2 || progress.Members != 3 {
		t.Fatalf("progress = %d/%d, want 2/3", progress.Agreed, progress.Members)
	}
	bob.ballot(prop.VoteID, wire.DecisionAgree)

	// The last agree completes unanimity; only then does the
	// initiator commit.
	cara.ballot(prop.VoteID, wire.DecisionAgree)
	resolved, skipped := collectUntil[VoteResolved](t, h.sess.Events())
	if resolved.Outcome != VotePassed {
		t.Fatalf("outcome = %v, want passed", resolved.Outcome)
	}
	for _, ev := range skipped {
		if p, isProgress := ev.(VoteProgress); isProgress && p.Agreed > 2 {
			t.Fatalf("duplicate ballot advanced the count: %+v", p)
		}
	}
	changed := nextEvent[ConfigChanged](t, h.sess.Events())
	if changed.Config.Public {
		t.Fatal("committed configuration should be private")
	}

	// Sync one tick so the commit's lobby clear has reached the
	// broker, then verify both retained values.
	clk.Advance(5 * time.Second)
	bob.awaitPresence(wire.PresenceHeartbeat, aliceID.ClientID)
	var stored wire.RoomConfig
	if err := json.Unmarshal(waitRetained(t, broker, wire.RoomTopic("den", wire.ChannelConfig)), &stored); err != nil {
		t.Fatalf("decoding retained config: %v", err)
	}
	if stored.Public {
		t.Fatal("retained configuration still public after the commit")
	}
	requireNoRetained(t, broker, wire.LobbyTopic("den"))
}

func TestSessionFollowsRemoteVote(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPublic(t, broker, "den", "night shift")
	h := startSession(t, clk, broker, seedOpts("den"))
	h.waitReady()

	bob := newPeer(t, broker, "den", "bob")
	bob.join()
	h.waitRoster(aliceID.ClientID, bob.id.ClientID)

	// Bob initiates; this session is a voter, not a counter.
	bob.propose("vote-77", false)
	opened := nextEvent[VoteOpened](t, h.sess.Events())
	if !opened.CanVote {
		t.Fatal("a non-initiator should be offered a ballot")
	}
	if opened.Proposal.VoteID != "vote-77" {
		t.Fatalf("proposal = %+v", opened.Proposal)
	}

	h.sess.Agree()
	b := bob.awaitBallot()
	if b.Voter.ClientID != aliceID.ClientID || b.Decision != wire.DecisionAgree {
		t.Fatalf("ballot = %+v", b)
	}

	// Unanimity is visible to this session too, but resolution waits
	// for the initiator's configuration update.
	progress := nextEvent[VoteProgress](t, h.sess.Events())
	if progress.Agreed != 2 || progress.Members != 2 {
		t.Fatalf("progress = %d/%d, want 2/2", progress.Agreed, progress.Members)
	}

	// Bob commits. The config update both applies the change and
	// resolves the local round.
	bob.publish(wire.RoomTopic("den", wire.ChannelVote), struct{}{}) // noise a real room would never send
	commit := wire.RoomConfig{Public: false, Topic: "night shift", CreatedBy: carol, CreatedAt: t0}
	payload, err := json.Marshal(commit)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := bob.tr.Publish(context.Background(), wire.RoomTopic("den", wire.ChannelConfig), payload, transport.PublishOptions{Retain: true}); err != nil {
		t.Fatalf("publish commit: %v", err)
	}

	changed := nextEvent[ConfigChanged](t, h.sess.Events())
	if changed.Config.Public {
		t.Fatal("adopted configuration should be private")
	}
	resolved := nextEvent[VoteResolved](t, h.sess.Events())
	if resolved.Outcome != VotePassed || resolved.Proposal.VoteID != "vote-77" {
		t.Fatalf("resolved = %+v", resolved)
	}
}

func TestSessionInitiatorCommitsAtDeadline(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPublic(t, broker, "den", "night shift")
	h := startSession(t, clk, broker, seedOpts("den"))
	h.waitReady()

	bob := newPeer(t, broker, "den", "bob")
	bob.join()
	h.waitRoster(aliceID.ClientID, bob.id.ClientID)

	pending := clk.PendingCount()
	h.sess.ProposeVisibility(false)
	clk.WaitForTimers(pending + 1) // the vote deadline is armed
	bob.awaitProposal()

	// Bob never ballots. For the initiator, the deadline is consent.
	clk.Advance(DefaultVoteTimeout)
	resolved := nextEvent[VoteResolved](t, h.sess.Events())
	if resolved.Outcome != VotePassed {
		t.Fatalf("outcome = %v, want passed at the deadline", resolved.Outcome)
	}
	nextEvent[ConfigChanged](t, h.sess.Events())

	var stored wire.RoomConfig
	if err := json.Unmarshal(waitRetained(t, broker, wire.RoomTopic("den", wire.ChannelConfig)), &stored); err != nil {
		t.Fatalf("decoding retained config: %v", err)
	}
	if stored.Public {
		t.Fatal("deadline commit did not reach the broker")
	}
}

func TestSessionBystanderDiscardsVoteAtDeadline(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	seededPublic(t, broker, "den", "night shift")
	h := startSession(t, clk, broker, seedOpts("den"))
	h.waitReady()

	bob := newPeer(t, broker, "den", "bob")
	bob.join()
	h.waitRoster(aliceID.ClientID, bob.id.ClientID)

	bob.propose("vote-9", false)
	nextEvent[VoteOpened](t, h.sess.Events()) // deadline armed before this event

	clk.Advance(DefaultVoteTimeout)
	resolved, skipped := collectUntil[VoteResolved](t, h.sess.Events())
	if resolved.Outcome != VoteExpired {
		t.Fatalf("outcome = %v, want expired", resolved.Outcome)
	}
	for _, ev := range skipped {
		if _, isConfig := ev.(ConfigChanged); isConfig {
			t.Fatal("a bystander must not apply anything at the deadline")
		}
	}

	// And it must not have committed on the initiator's behalf.
	var stored wire.RoomConfig
	if err := json.Unmarshal(waitRetained(t, broker, wire.RoomTopic("den", wire.ChannelConfig)), &stored); err != nil {
		t.Fatalf("decoding retained config: %v", err)
	}
	if !stored.Public {
		t.Fatal("bystander overwrote the room configuration")
	}
}

func TestSessionLobbyListingExpiresWithoutRefresh(t *testing.T) {
	clk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(clk)
	opts := seedOpts("den")
	opts.Create = Create{Public: true, Topic: "ghost town"}
	h := startSession(t, clk, broker, opts)

	clk.Advance(10 * time.Second)
	joined := h.waitReady()
	if !joined.Created {
		t.Fatal("expected creation")
	}
	waitRetained(t, broker, wire.LobbyTopic("den"))

	// The peer crashes rather than leaving: no explicit clear, no
	// further refreshes. The listing's expiry is the backstop.
	h.client.Drop(errors.New("power loss"))
	if ev := nextEvent[Connectivity](t, h.sess.Events()); ev.Up {
		t.Fatal("expected a down transition")
	}
	clk.Advance(16 * time.Second)
	requireNoRetained(t, broker, wire.LobbyTopic("den"))
}

// TestTwoSessionsVisibilityVote runs the full two-peer exchange with
// real sessions on both ends: create public, join, vote private,
// commit, lobby cleared.
func TestTwoSessionsVisibilityVote(t *testing.T) {
	brokerClk := clock.Fake(t0)
	broker := transport.NewMemoryBroker(brokerClk)

	clkA := clock.Fake(t0)
	optsA := Options{Room: "den", Identity: aliceID, Create: Create{Public: true, Topic: "late night"}}
	a := startSession(t, clkA, broker, optsA)
	clkA.Advance(10 * time.Second)
	if joined := a.waitReady(); !joined.Created {
		t.Fatal("alice should create the room")
	}

	clkB := clock.Fake(t0)
	optsB := Options{Room: "den", Identity: wire.Identity{ClientID: "client-bob", Username: "bob"}}
	b := startSession(t, clkB, broker, optsB)
	joinedB := b.waitReady()
	if joinedB.Created || !joinedB.Config.Public || joinedB.Config.Topic != "late night" {
		t.Fatalf("bob's handshake = %+v", joinedB)
	}

	// Rosters converge: alice sees bob's join; bob sees alice on her
	// next heartbeat.
	a.waitRoster("client-alice", "client-bob")
	clkA.Advance(5 * time.Second)
	b.waitRoster("client-alice", "client-bob")

	// Alice proposes going private; bob is asked and agrees.
	a.sess.ProposeVisibility(false)
	if opened := nextEvent[VoteOpened](t, a.sess.Events()); opened.CanVote {
		t.Fatal("initiator offered a ballot")
	}
	openedB := nextEvent[VoteOpened](t, b.sess.Events())
	if !openedB.CanVote || openedB.Proposal.Initiator.ClientID != "client-alice" {
		t.Fatalf("bob's view of the vote = %+v", openedB)
	}
	b.sess.Agree()

	// Alice reaches unanimity and commits; both peers converge on
	// the private configuration.
	if resolved := nextEvent[VoteResolved](t, a.sess.Events()); resolved.Outcome != VotePassed {
		t.Fatalf("alice's outcome = %v", resolved.Outcome)
	}
	if changed := nextEvent[ConfigChanged](t, a.sess.Events()); changed.Config.Public {
		t.Fatal("alice's configuration should be private")
	}
	if changed := nextEvent[ConfigChanged](t, b.sess.Events()); changed.Config.Public {
		t.Fatal("bob's configuration should be private")
	}
	if resolved := nextEvent[VoteResolved](t, b.sess.Events()); resolved.Outcome != VotePassed {
		t.Fatalf("bob's outcome = %v", resolved.Outcome)
	}

	// A message after the vote proves the commit path fully drained,
	// then the lobby must hold no listing for the now-private room.
	a.sess.SendText("members only now", "")
	if got := nextEvent[MessageAdded](t, b.sess.Events()); got.Message.Body != "members only now" {
		t.Fatalf("bob received %q", got.Message.Body)
	}
	requireNoRetained(t, broker, wire.LobbyTopic("den"))

	// Alice leaves; bob's roster shrinks to just himself.
	a.stop()
	b.waitRoster("client-bob")
}
