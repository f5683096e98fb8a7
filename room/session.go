// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftroom/driftroom/lib/clock"
	"github.com/driftroom/driftroom/transport"
	"github.com/driftroom/driftroom/wire"
)

// Reference timing. PruneAfter and CreateWindow derive from the tick
// when unset, so shortening the tick in tests shortens everything
// downstream of it.
const (
	DefaultTickInterval = 5 * time.Second
	DefaultVoteTimeout  = 60 * time.Second
)

// ErrTransportClosed is returned by Run when the transport's delivery
// channels close underneath a running session.
var ErrTransportClosed = errors.New("room: transport closed")

// Create describes the room this peer creates if the configuration
// handshake finds nobody home. The zero value is a private room with
// no topic.
type Create struct {
	Public bool
	Topic  string
}

// Options configures a Session. Room, Identity, and Transport are
// required; everything else has working defaults.
type Options struct {
	Room     wire.RoomID
	Identity wire.Identity

	Transport transport.Transport

	// Clock defaults to the real clock. Tests inject a fake one and
	// drive every timer in the session by hand.
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// TickInterval is the heartbeat and lobby-refresh period.
	TickInterval time.Duration

	// PruneAfter is how long a peer may stay silent before it is
	// dropped from the roster. Defaults to five ticks.
	PruneAfter time.Duration

	// VoteTimeout bounds a vote round. At the deadline the initiator
	// treats silence as consent; everyone else discards the round.
	VoteTimeout time.Duration

	// CreateWindow is how long to wait for an existing room's
	// retained configuration before concluding this peer is first in
	// and creating the room. Defaults to two ticks.
	CreateWindow time.Duration

	// ListingTTL is the broker-side expiry requested for lobby
	// listings. Defaults to wire.ListingTTL.
	ListingTTL time.Duration

	// Create is used if this peer ends up creating the room.
	Create Create

	// DisableLobby suppresses lobby advertising even for public
	// rooms.
	DisableLobby bool
}

// Session drives one peer's participation in one room: the presence
// cadence, the message log, the vote slot, and lobby advertising, all
// over a single broker connection.
//
// Everything stateful runs on the Run goroutine. Inbound publishes,
// connectivity transitions, timers, and user commands land in one
// select loop, so the state needs no locks and every decision sees a
// consistent view. Consumers read the Events channel; commands are
// fire-and-forget methods that enqueue onto the loop.
type Session struct {
	opts Options
	log  *slog.Logger
	clk  clock.Clock
	tr   transport.Transport

	cmds   chan func(context.Context)
	events chan Event
	done   chan struct{}

	// Everything below is confined to the Run goroutine.
	members *Membership
	votes   *Consensus
	msgs    *MessageLog
	outbox  *Outbox

	joined    bool
	config    wire.RoomConfig
	connected bool

	// Disarmed select arms. A nil channel never fires.
	createTimer  <-chan time.Time
	voteDeadline <-chan time.Time
}

// NewSession validates options, applies defaults, and builds a
// session. Nothing touches the network until Run.
func NewSession(opts Options) (*Session, error) {
	if err := opts.Room.Validate(); err != nil {
		return nil, fmt.Errorf("room: %w", err)
	}
	if err := opts.Identity.Validate(); err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.PruneAfter <= 0 {
		opts.PruneAfter = 5 * opts.TickInterval
	}
	if opts.VoteTimeout <= 0 {
		opts.VoteTimeout = DefaultVoteTimeout
	}
	if opts.CreateWindow <= 0 {
		opts.CreateWindow = 2 * opts.TickInterval
	}
	if opts.ListingTTL <= 0 {
		opts.ListingTTL = wire.ListingTTL
	}
	return &Session{
		opts:    opts,
		log:     opts.Logger.With("room", opts.Room, "client_id", opts.Identity.ClientID),
		clk:     opts.Clock,
		tr:      opts.Transport,
		cmds:    make(chan func(context.Context), 64),
		events:  make(chan Event, 256),
		done:    make(chan struct{}),
		members: NewMembership(opts.Identity.ClientID, opts.PruneAfter),
		votes:   NewConsensus(opts.Identity.ClientID),
		msgs:    NewMessageLog(),
		outbox:  NewOutbox(),
	}, nil
}

// Events returns the stream consumers render from. It closes when Run
// returns.
func (s *Session) Events() <-chan Event { return s.events }

// SendText composes and sends a text message. replyTo optionally
// names the message being replied to; zero means a top-level message.
// Like all command methods, it is fire-and-forget: problems surface
// in the event stream and the log, not as a return value.
func (s *Session) SendText(body string, replyTo wire.MessageID) {
	s.do(func(ctx context.Context) { s.send(ctx, wire.MessageText, body, "", replyTo) })
}

// SendImage sends an image reference with an optional caption.
func (s *Session) SendImage(imageRef, caption string, replyTo wire.MessageID) {
	kind := wire.MessageImage
	if caption != "" {
		kind = wire.MessageMixed
	}
	s.do(func(ctx context.Context) { s.send(ctx, kind, caption, imageRef, replyTo) })
}

// React records an emoji reaction on a message.
func (s *Session) React(id wire.MessageID, emoji string) {
	s.do(func(ctx context.Context) { s.react(ctx, id, emoji) })
}

// ProposeVisibility opens a vote to make the room public or private.
func (s *Session) ProposeVisibility(public bool) {
	s.do(func(ctx context.Context) { s.propose(ctx, public) })
}

// Agree casts an agreeing ballot in the active vote round.
func (s *Session) Agree() {
	s.do(func(ctx context.Context) { s.castBallot(ctx, wire.DecisionAgree) })
}

// Veto casts a vetoing ballot in the active vote round.
func (s *Session) Veto() {
	s.do(func(ctx context.Context) { s.castBallot(ctx, wire.DecisionVeto) })
}

func (s *Session) do(fn func(context.Context)) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}

// Run connects, announces the join, and drives the session until ctx
// is canceled. On cancellation it leaves gracefully (leave presence,
// lobby cleanup, disconnect) and returns nil; transport failure
// underneath a running session returns ErrTransportClosed.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer close(s.events)

	will, err := s.presencePayload(wire.PresenceLeave)
	if err != nil {
		return err
	}
	err = s.tr.Connect(ctx, &transport.Will{
		Topic:   wire.RoomTopic(s.opts.Room, wire.ChannelPresence),
		Payload: will,
	})
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	s.connected = true

	if err := s.tr.Subscribe(ctx, wire.RoomTopics(s.opts.Room)...); err != nil {
		_ = s.tr.Disconnect(ctx)
		return fmt.Errorf("subscribing: %w", err)
	}

	s.members.RefreshSelf(s.opts.Identity, s.clk.Now())
	s.publishPresence(ctx, wire.PresenceJoin)
	s.createTimer = s.clk.After(s.opts.CreateWindow)

	ticker := s.clk.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	s.log.Info("session started", "username", s.opts.Identity.Username)

	for {
		select {
		case <-ctx.Done():
			s.teardown(context.WithoutCancel(ctx))
			return nil

		case m, ok := <-s.tr.Messages():
			if !ok {
				return ErrTransportClosed
			}
			s.handleInbound(ctx, m)

		case ev, ok := <-s.tr.Events():
			if !ok {
				return ErrTransportClosed
			}
			s.handleConn(ctx, ev)

		case now := <-ticker.C:
			s.tick(ctx, now)

		case <-s.createTimer:
			s.createTimer = nil
			s.createRoom(ctx)

		case <-s.voteDeadline:
			s.voteDeadline = nil
			s.expireVote(ctx)

		case fn := <-s.cmds:
			fn(ctx)
		}
	}
}

// handleInbound decodes one publish and dispatches on the variant.
// Undecodable traffic is dropped: a peer publishing garbage must not
// be able to take down anyone else's session.
func (s *Session) handleInbound(ctx context.Context, m transport.Message) {
	ev, err := wire.Decode(m.Topic, m.Payload)
	if err != nil {
		s.log.Debug("dropping undecodable publish", "topic", m.Topic, "error", err)
		return
	}
	switch ev := ev.(type) {
	case wire.ConfigEvent:
		s.handleConfig(ctx, ev.Config)
	case wire.PresenceEvent:
		s.handlePresence(ev.Presence)
	case wire.MessageEvent:
		s.handleChat(ev.Message)
	case wire.ReactionEvent:
		s.handleReaction(ev.Reaction)
	case wire.ProposalEvent:
		s.handleProposal(ev.Proposal)
	case wire.BallotEvent:
		s.applyBallot(ctx, ev.Ballot)
	default:
		// Room sessions do not subscribe to lobby topics.
	}
}

func (s *Session) handleConfig(ctx context.Context, cfg wire.RoomConfig) {
	if !s.joined {
		s.joined = true
		s.createTimer = nil
		s.config = cfg
		s.log.Info("joined existing room",
			"public", cfg.Public,
			"created_by", cfg.CreatedBy.Username)
		s.emit(Joined{Config: cfg})
		s.emit(RosterUpdated{Peers: s.members.Peers()})
		return
	}
	if configEqual(cfg, s.config) {
		// The broker echoing a configuration this session already
		// adopted (usually its own commit).
		return
	}
	was := s.config
	s.config = cfg
	s.log.Info("room configuration changed", "public", cfg.Public)
	s.emit(ConfigChanged{Config: cfg})
	if prop, cleared := s.votes.ClearOnConfig(); cleared {
		// The initiator committed; for everyone else the config
		// update is the commit signal.
		s.voteDeadline = nil
		s.emit(VoteResolved{Proposal: prop, Outcome: VotePassed})
	}
	s.lobbyTransition(ctx, was.Public, cfg.Public)
}

func (s *Session) handlePresence(p wire.Presence) {
	if !s.members.Observe(p, s.clk.Now()) {
		return
	}
	switch p.Kind {
	case wire.PresenceJoin:
		s.log.Info("peer joined", "peer", p.Peer.Username, "peer_id", p.Peer.ClientID)
	case wire.PresenceLeave:
		s.log.Info("peer left", "peer", p.Peer.Username, "peer_id", p.Peer.ClientID)
	default:
		// A heartbeat that changed the roster is a rename or a peer
		// discovered late.
		s.log.Debug("roster updated by heartbeat", "peer", p.Peer.Username)
	}
	s.emit(RosterUpdated{Peers: s.members.Peers()})
}

func (s *Session) handleChat(msg wire.ChatMessage) {
	if !s.msgs.Append(msg) {
		return
	}
	snap, _ := s.msgs.Get(msg.ID)
	s.emit(MessageAdded{Message: snap})
}

func (s *Session) handleReaction(r wire.Reaction) {
	if !s.msgs.React(r) {
		return
	}
	snap, _ := s.msgs.Get(r.MessageID)
	s.emit(ReactionAdded{Message: snap, Reaction: r})
}

func (s *Session) handleProposal(p wire.VoteProposal) {
	if !s.votes.Open(p, s.clk.Now()) {
		// Echo of a round already in the slot.
		return
	}
	s.voteDeadline = s.clk.After(s.opts.VoteTimeout)
	mine := p.Initiator.ClientID == s.opts.Identity.ClientID
	if !mine {
		s.log.Info("vote opened",
			"vote_id", p.VoteID,
			"target_public", p.TargetPublic,
			"initiator", p.Initiator.Username)
	}
	s.emit(VoteOpened{Proposal: p, CanVote: !mine})
}

// applyBallot is the single path for ballots, both remote arrivals
// and the local peer's own (which the broker will also echo back;
// voter-keyed counting makes the echo a no-op).
func (s *Session) applyBallot(ctx context.Context, b wire.Ballot) {
	v := s.votes.Active()
	if v == nil || v.Proposal.VoteID != b.VoteID {
		return
	}
	prop := v.Proposal
	before := s.votes.AgreeCount()
	switch s.votes.ObserveBallot(b, s.members.Count()) {
	case ResolutionVetoed:
		s.voteDeadline = nil
		s.log.Info("vote vetoed", "vote_id", b.VoteID, "by", b.Voter.Username)
		s.emit(VoteResolved{Proposal: prop, Outcome: VoteVetoed})
	case ResolutionPassed:
		s.resolvePassed(ctx, prop)
	case ResolutionPending:
		if after := s.votes.AgreeCount(); after > before {
			s.emit(VoteProgress{Proposal: prop, Agreed: after, Members: s.members.Count()})
		}
	}
}

// resolvePassed handles the initiator-only commit: adopt the new
// configuration locally, publish it retained, and let the echo settle
// everyone else (and configEqual absorb our own).
func (s *Session) resolvePassed(ctx context.Context, prop wire.VoteProposal) {
	s.voteDeadline = nil
	s.log.Info("vote passed", "vote_id", prop.VoteID, "target_public", prop.TargetPublic)
	s.emit(VoteResolved{Proposal: prop, Outcome: VotePassed})

	cfg := s.config
	cfg.Public = prop.TargetPublic
	was := s.config
	s.config = cfg
	s.publishConfig(ctx, cfg)
	s.emit(ConfigChanged{Config: cfg})
	s.lobbyTransition(ctx, was.Public, cfg.Public)
}

func (s *Session) expireVote(ctx context.Context) {
	prop, commit, ok := s.votes.Expire()
	if !ok {
		return
	}
	if commit {
		s.log.Info("vote deadline reached with no veto; committing", "vote_id", prop.VoteID)
		s.resolvePassed(ctx, prop)
		return
	}
	s.log.Debug("vote deadline reached; discarding round", "vote_id", prop.VoteID)
	s.emit(VoteResolved{Proposal: prop, Outcome: VoteExpired})
}

func (s *Session) propose(ctx context.Context, public bool) {
	if !s.joined {
		s.log.Warn("cannot propose before the configuration handshake resolves")
		return
	}
	if v := s.votes.Active(); v != nil {
		s.log.Warn("vote already active", "vote_id", v.Proposal.VoteID)
		return
	}
	if s.config.Public == public {
		s.log.Info("room visibility already at target", "public", public)
		return
	}
	p := wire.VoteProposal{
		VoteID:       wire.NewVoteID(),
		Action:       wire.VoteActionSetVisibility,
		TargetPublic: public,
		Initiator:    s.opts.Identity,
		SentAt:       s.clk.Now(),
	}
	payload, err := json.Marshal(wire.VoteMessage{Kind: wire.VotePayloadProposal, Proposal: &p})
	if err != nil {
		s.log.Error("encoding proposal", "error", err)
		return
	}
	// Votes are never queued: a proposal that cannot reach the room
	// now is pointless later.
	if err := s.tr.Publish(ctx, wire.RoomTopic(s.opts.Room, wire.ChannelVote), payload, transport.PublishOptions{}); err != nil {
		s.log.Warn("proposal not sent", "error", err)
		return
	}
	s.votes.Open(p, s.clk.Now())
	s.log.Info("vote proposed", "vote_id", p.VoteID, "target_public", public)
	s.emit(VoteOpened{Proposal: p, CanVote: false})
	if s.votes.CheckQuorum(s.members.Count()) == ResolutionPassed {
		// Alone in the room: the proposal is the whole electorate.
		s.resolvePassed(ctx, p)
		return
	}
	s.voteDeadline = s.clk.After(s.opts.VoteTimeout)
}

func (s *Session) castBallot(ctx context.Context, d wire.BallotDecision) {
	v := s.votes.Active()
	if v == nil {
		s.log.Warn("no active vote")
		return
	}
	if v.Initiated {
		s.log.Warn("initiator agreement is implied; cannot ballot own proposal")
		return
	}
	if d == wire.DecisionAgree && s.votes.HasAgreed(s.opts.Identity.ClientID) {
		s.log.Warn("already agreed", "vote_id", v.Proposal.VoteID)
		return
	}
	b := wire.Ballot{
		VoteID:   v.Proposal.VoteID,
		Voter:    s.opts.Identity,
		Decision: d,
		SentAt:   s.clk.Now(),
	}
	payload, err := json.Marshal(wire.VoteMessage{Kind: wire.VotePayloadBallot, Ballot: &b})
	if err != nil {
		s.log.Error("encoding ballot", "error", err)
		return
	}
	if err := s.tr.Publish(ctx, wire.RoomTopic(s.opts.Room, wire.ChannelVote), payload, transport.PublishOptions{}); err != nil {
		s.log.Warn("ballot not sent", "error", err)
		return
	}
	s.applyBallot(ctx, b)
}

func (s *Session) send(ctx context.Context, kind wire.MessageKind, body, imageRef string, replyTo wire.MessageID) {
	msg := wire.ChatMessage{
		ID:       wire.NewMessageID(),
		Kind:     kind,
		Body:     body,
		ImageRef: imageRef,
		Sender:   s.opts.Identity,
		SentAt:   s.clk.Now(),
		ReplyTo:  replyTo,
	}
	if replyTo != "" {
		if target, ok := s.msgs.Get(replyTo); ok {
			sum := wire.Summarize(target.ChatMessage)
			msg.ReplySummary = &sum
		} else {
			s.log.Debug("reply target not in log", "reply_to", replyTo)
		}
	}
	if err := msg.Validate(); err != nil {
		s.log.Warn("refusing to send invalid message", "error", err)
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("encoding message", "error", err)
		return
	}
	// Local echo first: the author sees the message immediately, and
	// the broker's copy deduplicates by ID.
	s.msgs.Append(msg)
	snap, _ := s.msgs.Get(msg.ID)
	s.emit(MessageAdded{Message: snap})
	s.publishOrQueue(ctx, wire.RoomTopic(s.opts.Room, wire.ChannelMessages), payload, transport.PublishOptions{})
}

func (s *Session) react(ctx context.Context, id wire.MessageID, emoji string) {
	r := wire.Reaction{MessageID: id, Emoji: emoji, From: s.opts.Identity, SentAt: s.clk.Now()}
	if err := r.Validate(); err != nil {
		s.log.Warn("refusing to send invalid reaction", "error", err)
		return
	}
	payload, err := json.Marshal(r)
	if err != nil {
		s.log.Error("encoding reaction", "error", err)
		return
	}
	if !s.msgs.React(r) {
		// Unknown target or this peer already reacted with this
		// emoji; nothing to say to the room either way.
		s.log.Debug("reaction not recorded", "message_id", id, "emoji", emoji)
		return
	}
	snap, _ := s.msgs.Get(id)
	s.emit(ReactionAdded{Message: snap, Reaction: r})
	s.publishOrQueue(ctx, wire.RoomTopic(s.opts.Room, wire.ChannelReactions), payload, transport.PublishOptions{})
}

// tick runs the presence cadence: heartbeat out, self refreshed,
// silent peers pruned, and the lobby listing refreshed while the room
// is public.
func (s *Session) tick(ctx context.Context, now time.Time) {
	s.publishPresence(ctx, wire.PresenceHeartbeat)
	changed := s.members.RefreshSelf(s.opts.Identity, now)
	if pruned := s.members.Prune(now); len(pruned) > 0 {
		changed = true
		for _, id := range pruned {
			s.log.Info("pruned silent peer", "peer", id.Username, "peer_id", id.ClientID)
		}
	}
	if changed {
		s.emit(RosterUpdated{Peers: s.members.Peers()})
	}
	if s.joined && s.config.Public && !s.opts.DisableLobby {
		s.advertise(ctx)
	}
}

// createRoom resolves the handshake in the first-in direction: no
// retained configuration arrived within the create window, so this
// peer writes one. If two peers race to create, last write wins at
// the broker and both converge on the echo.
func (s *Session) createRoom(ctx context.Context) {
	if s.joined {
		return
	}
	s.joined = true
	cfg := wire.RoomConfig{
		Public:    s.opts.Create.Public,
		Topic:     s.opts.Create.Topic,
		CreatedBy: s.opts.Identity,
		CreatedAt: s.clk.Now(),
	}
	s.config = cfg
	s.publishConfig(ctx, cfg)
	s.log.Info("no existing configuration; created room", "public", cfg.Public, "topic", cfg.Topic)
	s.emit(Joined{Config: cfg, Created: true})
	s.emit(RosterUpdated{Peers: s.members.Peers()})
	if cfg.Public && !s.opts.DisableLobby {
		s.advertise(ctx)
	}
}

func (s *Session) handleConn(ctx context.Context, ev transport.ConnEvent) {
	switch ev.State {
	case transport.Up:
		s.connected = true
		s.log.Info("broker connection up")
		if s.outbox.Len() > 0 {
			n, err := s.outbox.Flush(func(topic string, payload []byte, opts transport.PublishOptions) error {
				return s.tr.Publish(ctx, topic, payload, opts)
			})
			if err != nil {
				s.log.Warn("outbox flush interrupted", "flushed", n, "pending", s.outbox.Len(), "error", err)
			} else if n > 0 {
				s.log.Info("flushed queued publishes", "count", n)
			}
		}
		// Heartbeat immediately so peers that pruned this session
		// during the outage rediscover it without waiting out a tick.
		s.publishPresence(ctx, wire.PresenceHeartbeat)
		s.emit(Connectivity{Up: true})

	case transport.Down:
		s.connected = false
		s.log.Warn("broker connection down", "error", ev.Err)
		s.emit(Connectivity{Up: false})
	}
}

// teardown is the graceful exit: explicit leave, lobby cleanup when
// this is the last peer out of a public room, disconnect.
func (s *Session) teardown(ctx context.Context) {
	s.publishPresence(ctx, wire.PresenceLeave)
	if s.joined && s.config.Public && !s.opts.DisableLobby && s.members.Count() <= 1 {
		// Broker-side listing expiry would get there eventually;
		// leaving cleanly should not make the lobby lie for that
		// long.
		s.clearListing(ctx)
	}
	if err := s.tr.Disconnect(ctx); err != nil {
		s.log.Debug("disconnect", "error", err)
	}
	s.log.Info("session closed")
}

// publishOrQueue is the path for user-authored traffic: published
// live when connected, queued for the reconnect flush when not.
func (s *Session) publishOrQueue(ctx context.Context, topic string, payload []byte, opts transport.PublishOptions) {
	if s.connected {
		err := s.tr.Publish(ctx, topic, payload, opts)
		if err == nil {
			return
		}
		if !errors.Is(err, transport.ErrNotConnected) {
			s.log.Warn("publish failed", "topic", topic, "error", err)
			return
		}
	}
	s.outbox.Enqueue(topic, payload, opts)
	s.log.Debug("queued while offline", "topic", topic, "pending", s.outbox.Len())
}

func (s *Session) publishPresence(ctx context.Context, kind wire.PresenceKind) {
	payload, err := s.presencePayload(kind)
	if err != nil {
		s.log.Error("encoding presence", "error", err)
		return
	}
	topic := wire.RoomTopic(s.opts.Room, wire.ChannelPresence)
	if err := s.tr.Publish(ctx, topic, payload, transport.PublishOptions{}); err != nil {
		// Presence is freshness-sensitive and never queued; the next
		// tick is a better announcement than a late one.
		s.log.Debug("presence not sent", "kind", kind, "error", err)
	}
}

func (s *Session) presencePayload(kind wire.PresenceKind) ([]byte, error) {
	p := wire.Presence{Kind: kind, Peer: s.opts.Identity, SentAt: s.clk.Now()}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding presence: %w", err)
	}
	return payload, nil
}

func (s *Session) publishConfig(ctx context.Context, cfg wire.RoomConfig) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		s.log.Error("encoding configuration", "error", err)
		return
	}
	topic := wire.RoomTopic(s.opts.Room, wire.ChannelConfig)
	if err := s.tr.Publish(ctx, topic, payload, transport.PublishOptions{Retain: true}); err != nil {
		s.log.Warn("configuration not published", "error", err)
	}
}

func (s *Session) advertise(ctx context.Context) {
	l := wire.LobbyListing{RoomID: s.opts.Room, Topic: s.config.Topic, PeerCount: s.members.Count()}
	payload, err := json.Marshal(l)
	if err != nil {
		s.log.Error("encoding listing", "error", err)
		return
	}
	opts := transport.PublishOptions{Retain: true, Expiry: s.opts.ListingTTL}
	if err := s.tr.Publish(ctx, wire.LobbyTopic(s.opts.Room), payload, opts); err != nil {
		s.log.Debug("listing not refreshed", "error", err)
	}
}

func (s *Session) clearListing(ctx context.Context) {
	err := s.tr.Publish(ctx, wire.LobbyTopic(s.opts.Room), nil, transport.PublishOptions{Retain: true})
	if err != nil {
		s.log.Warn("listing not cleared", "error", err)
	}
}

func (s *Session) lobbyTransition(ctx context.Context, was, public bool) {
	if s.opts.DisableLobby || was == public {
		return
	}
	if public {
		s.advertise(ctx)
	} else {
		s.clearListing(ctx)
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("event dropped; consumer not keeping up", "type", fmt.Sprintf("%T", ev))
	}
}

func configEqual(a, b wire.RoomConfig) bool {
	return a.Public == b.Public &&
		a.Topic == b.Topic &&
		a.CreatedBy == b.CreatedBy &&
		a.CreatedAt.Equal(b.CreatedAt)
}
