// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/driftroom/driftroom/cmd/driftroom/cli"
	"github.com/driftroom/driftroom/lib/config"
	"github.com/driftroom/driftroom/lib/lobbyui"
	"github.com/driftroom/driftroom/room"
	"github.com/driftroom/driftroom/wire"
)

// LobbyCommand returns the "lobby" subcommand that browses public
// rooms and joins the picked one.
func LobbyCommand() *cli.Command {
	var configPath string
	var logFile string

	return &cli.Command{
		Name:    "lobby",
		Summary: "Browse public rooms",
		Description: `Browse the rooms advertised in the lobby and join one.

The lobby is a live view: each public room's peers keep a listing
refreshed on the broker, and listings fade out shortly after the
last peer leaves. Picking a room joins it; quitting the browser
exits without joining anything.`,
		Usage: "driftroom lobby [flags]",
		Examples: []cli.Example{
			{
				Description: "Browse public rooms",
				Command:     "driftroom lobby",
			},
			{
				Description: "Browse on an alternate broker",
				Command:     "driftroom lobby --config ~/.config/driftroom/work.yaml",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("lobby", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "path to config file (default: $DRIFTROOM_CONFIG, then built-in defaults)")
			flagSet.StringVar(&logFile, "log-file", "", "append JSON debug logs to this file")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}

			cfg, timing, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			roomID, picked, err := pickRoom(ctx, cfg, timing, logFile)
			if err != nil || !picked {
				return err
			}
			return runChat(ctx, cfg, timing, roomID, room.Create{}, logFile)
		},
	}
}

// pickRoom runs the lobby picker TUI and reports which room, if any,
// the user chose. The watcher gets its own broker connection, torn
// down before the picked room dials one of its own.
func pickRoom(ctx context.Context, cfg *config.Config, timing config.Timing, logFile string) (wire.RoomID, bool, error) {
	logger, logCloser, err := cli.NewScreenLogger(logFile)
	if err != nil {
		return "", false, cli.Validation("%v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	tr, err := buildTransport(cfg, "driftroom-lobby", logger)
	if err != nil {
		return "", false, err
	}

	watcher, err := room.NewLobbyWatcher(room.LobbyOptions{
		Transport: tr,
		Logger:    logger,
		TTL:       timing.ListingTTL,
	})
	if err != nil {
		return "", false, cli.Internal("%v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	watcherDone := make(chan error, 1)
	go func() { watcherDone <- watcher.Run(runCtx) }()

	model := lobbyui.New(watcher.Updates())
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion())
	final, uiErr := program.Run()

	cancel()
	runErr := <-watcherDone

	if uiErr != nil {
		return "", false, cli.Internal("terminal UI: %w", uiErr)
	}

	picker, ok := final.(lobbyui.Model)
	if !ok {
		return "", false, nil
	}
	if picker.Closed() && runErr != nil {
		return "", false, cli.Transient("lobby watch ended: %w", runErr).
			WithHint("Check that the broker at %s is running and reachable.", cfg.Broker.URL)
	}
	roomID, picked := picker.Selected()
	return roomID, picked, nil
}
