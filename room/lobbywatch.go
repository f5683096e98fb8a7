// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftroom/driftroom/lib/clock"
	"github.com/driftroom/driftroom/transport"
	"github.com/driftroom/driftroom/wire"
)

// LobbyOptions configures a LobbyWatcher. Transport is required.
type LobbyOptions struct {
	Transport transport.Transport

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// TTL is how long a listing survives without a refresh before the
	// local view drops it. Defaults to wire.ListingTTL, matching what
	// advertisers request from the broker.
	TTL time.Duration
}

// LobbyWatcher follows the lobby wildcard and keeps a live view of
// advertised rooms. Retained listings replay on subscribe, so the
// first snapshot is populated immediately; after that the view tracks
// refreshes, explicit clears, and silence.
//
// Listings age out locally as well as at the broker: a watcher that
// subscribed while a listing was alive would otherwise keep showing a
// room whose advertiser is gone.
type LobbyWatcher struct {
	opts LobbyOptions
	log  *slog.Logger
	clk  clock.Clock
	tr   transport.Transport

	browser *LobbyBrowser
	updates chan []wire.LobbyListing
}

// NewLobbyWatcher validates options and builds a watcher. Nothing
// touches the network until Run.
func NewLobbyWatcher(opts LobbyOptions) (*LobbyWatcher, error) {
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = wire.ListingTTL
	}
	return &LobbyWatcher{
		opts:    opts,
		log:     opts.Logger.With("component", "lobby"),
		clk:     opts.Clock,
		tr:      opts.Transport,
		browser: NewLobbyBrowser(opts.TTL),
		updates: make(chan []wire.LobbyListing, 16),
	}, nil
}

// Updates returns the snapshot stream. A new snapshot follows every
// listing change and every aging pass. It closes when Run returns.
func (w *LobbyWatcher) Updates() <-chan []wire.LobbyListing { return w.updates }

// Run connects, subscribes to the lobby wildcard, and maintains the
// view until ctx is canceled.
func (w *LobbyWatcher) Run(ctx context.Context) error {
	defer close(w.updates)

	if err := w.tr.Connect(ctx, nil); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	if err := w.tr.Subscribe(ctx, wire.LobbyWildcard); err != nil {
		_ = w.tr.Disconnect(context.WithoutCancel(ctx))
		return fmt.Errorf("subscribing: %w", err)
	}

	// The aging pass runs a few times per TTL so a dead listing
	// lingers well under one TTL past its last refresh.
	ticker := w.clk.NewTicker(w.opts.TTL / 3)
	defer ticker.Stop()

	w.log.Debug("lobby watch started", "ttl", w.opts.TTL)

	for {
		select {
		case <-ctx.Done():
			if err := w.tr.Disconnect(context.WithoutCancel(ctx)); err != nil {
				w.log.Debug("disconnect", "error", err)
			}
			return nil

		case m, ok := <-w.tr.Messages():
			if !ok {
				return ErrTransportClosed
			}
			w.handle(m)

		case ev, ok := <-w.tr.Events():
			if !ok {
				return ErrTransportClosed
			}
			if ev.State == transport.Down {
				w.log.Warn("broker connection down", "error", ev.Err)
			} else {
				w.log.Info("broker connection up")
			}

		case <-ticker.C:
			w.push()
		}
	}
}

func (w *LobbyWatcher) handle(m transport.Message) {
	ev, err := wire.Decode(m.Topic, m.Payload)
	if err != nil {
		w.log.Debug("dropping undecodable publish", "topic", m.Topic, "error", err)
		return
	}
	switch ev := ev.(type) {
	case wire.ListingEvent:
		w.browser.Observe(ev.Listing, w.clk.Now())
		w.push()
	case wire.ListingGoneEvent:
		if w.browser.Remove(ev.Room) {
			w.push()
		}
	default:
		// Lobby watchers subscribe to lobby topics only.
	}
}

func (w *LobbyWatcher) push() {
	snap := w.browser.Snapshot(w.clk.Now())
	select {
	case w.updates <- snap:
	default:
		w.log.Debug("lobby snapshot dropped; consumer not keeping up")
	}
}
