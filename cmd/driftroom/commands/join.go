// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/driftroom/driftroom/cmd/driftroom/cli"
	"github.com/driftroom/driftroom/lib/chatui"
	"github.com/driftroom/driftroom/lib/config"
	"github.com/driftroom/driftroom/room"
	"github.com/driftroom/driftroom/transport"
	"github.com/driftroom/driftroom/wire"
)

// JoinCommand returns the "join" subcommand that enters a chat room.
func JoinCommand() *cli.Command {
	var configPath string
	var logFile string
	var createPublic bool
	var topic string

	return &cli.Command{
		Name:    "join",
		Summary: "Join a chat room",
		Description: `Join a chat room, creating it if nobody is there yet.

Joining subscribes to the room's topics on the configured broker and
waits briefly for the room's retained settings. If none arrive, this
peer is first in and creates the room: private by default, public
(advertised in the lobby) with --public. The --public and --topic
flags only apply when this peer ends up creating the room; an
existing room's settings are changed from inside, by vote.`,
		Usage: "driftroom join <room> [flags]",
		Examples: []cli.Example{
			{
				Description: "Join (or create, private) the room \"den\"",
				Command:     "driftroom join den",
			},
			{
				Description: "Create public with a topic if first in",
				Command:     "driftroom join den --public --topic \"late night talks\"",
			},
			{
				Description: "Keep a debug log alongside the session",
				Command:     "driftroom join den --log-file /tmp/driftroom.log",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("join", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "path to config file (default: $DRIFTROOM_CONFIG, then built-in defaults)")
			flagSet.StringVar(&logFile, "log-file", "", "append JSON debug logs to this file")
			flagSet.BoolVar(&createPublic, "public", false, "if creating the room, advertise it in the lobby")
			flagSet.StringVar(&topic, "topic", "", "if creating the room, set this topic")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return cli.Validation("room argument required").
					WithHint("Run 'driftroom lobby' to browse public rooms.")
			}
			if len(args) > 1 {
				return cli.Validation("unexpected argument: %s", args[1])
			}
			roomID := wire.RoomID(args[0])
			if err := roomID.Validate(); err != nil {
				return cli.Validation("%v", err)
			}

			cfg, timing, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			create := room.Create{Public: createPublic, Topic: topic}
			return runChat(ctx, cfg, timing, roomID, create, logFile)
		},
	}
}

// loadConfig loads and validates configuration: the --config path if
// given, otherwise $DRIFTROOM_CONFIG, otherwise built-in defaults.
func loadConfig(path string) (*config.Config, config.Timing, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, config.Timing{}, cli.Validation("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, config.Timing{}, cli.Validation("invalid configuration: %v", err).
			WithHint("Config is read from --config, then $DRIFTROOM_CONFIG, then built-in defaults.")
	}
	timing, err := cfg.Timing()
	if err != nil {
		return nil, config.Timing{}, cli.Validation("invalid configuration: %v", err)
	}
	return cfg, timing, nil
}

// buildTransport constructs the broker adapter the config names. The
// name identifies the connection in broker-side monitoring; Redis has
// no equivalent and ignores it.
func buildTransport(cfg *config.Config, name string, logger *slog.Logger) (transport.Transport, error) {
	switch cfg.Broker.Kind {
	case config.BrokerNATS:
		return transport.NewNATS(transport.NATSOptions{
			URL:      cfg.Broker.URL,
			Name:     name,
			Username: cfg.Broker.Username,
			Password: cfg.Broker.Password,
			Logger:   logger,
		}), nil
	case config.BrokerRedis:
		addr, err := redisAddr(cfg.Broker.URL)
		if err != nil {
			return nil, cli.Validation("%v", err)
		}
		return transport.NewRedis(transport.RedisOptions{
			Addr:     addr,
			Username: cfg.Broker.Username,
			Password: cfg.Broker.Password,
			Logger:   logger,
		}), nil
	default:
		return nil, cli.Validation("unsupported broker kind %q", cfg.Broker.Kind)
	}
}

// redisAddr strips an optional redis:// scheme from the configured
// URL: go-redis takes a bare host:port.
func redisAddr(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		return raw, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("broker.url: %w", err)
	}
	if parsed.Scheme != "redis" {
		return "", fmt.Errorf("broker.url: expected redis:// scheme, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("broker.url: missing host in %q", raw)
	}
	return parsed.Host, nil
}

// runChat builds a fresh transport and session for one room and
// drives the chat TUI until the user quits or the session dies.
func runChat(ctx context.Context, cfg *config.Config, timing config.Timing, roomID wire.RoomID, create room.Create, logFile string) error {
	// The TUI owns the terminal, so session logs go to a file (or
	// nowhere), never to stderr.
	logger, logCloser, err := cli.NewScreenLogger(logFile)
	if err != nil {
		return cli.Validation("%v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	identity := cfg.NewIdentity()
	tr, err := buildTransport(cfg, "driftroom-"+string(identity.ClientID), logger)
	if err != nil {
		return err
	}

	session, err := room.NewSession(room.Options{
		Room:         roomID,
		Identity:     identity,
		Transport:    tr,
		Logger:       logger,
		TickInterval: timing.Tick,
		PruneAfter:   timing.PruneAfter,
		VoteTimeout:  timing.VoteTimeout,
		ListingTTL:   timing.ListingTTL,
		Create:       create,
	})
	if err != nil {
		return cli.Validation("%v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sessionDone := make(chan error, 1)
	go func() { sessionDone <- session.Run(runCtx) }()

	model := chatui.New(session, session.Events(), identity, roomID)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion())
	final, uiErr := program.Run()

	// Stop the session and wait for it so the broker connection is
	// down before the terminal is handed back.
	cancel()
	runErr := <-sessionDone

	if uiErr != nil {
		return cli.Internal("terminal UI: %w", uiErr)
	}
	if m, ok := final.(chatui.Model); ok && m.Closed() && runErr != nil {
		return cli.Transient("session ended: %w", runErr).
			WithHint("Check that the broker at %s is running and reachable.", cfg.Broker.URL)
	}
	return nil
}
