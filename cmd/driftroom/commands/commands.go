// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the driftroom CLI command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/driftroom/driftroom/cmd/driftroom/cli"
	"github.com/driftroom/driftroom/lib/version"
)

// Root builds and returns the complete driftroom command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "driftroom",
		Description: `Driftroom: peer-coordinated chat rooms over a pub/sub broker.

Every participant is a full peer — there is no chat server. Rooms
exist wherever peers meet on a broker topic; presence, history, and
room settings are negotiated between the peers themselves.`,
		Subcommands: []*cli.Command{
			JoinCommand(),
			LobbyCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("driftroom %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Join a room (created private if it doesn't exist yet)",
				Command:     "driftroom join den",
			},
			{
				Description: "Join a room, creating it public with a topic if first in",
				Command:     "driftroom join den --public --topic \"late night talks\"",
			},
			{
				Description: "Browse public rooms and pick one to join",
				Command:     "driftroom lobby",
			},
			{
				Description: "Use an alternate broker configuration",
				Command:     "driftroom join den --config ~/.config/driftroom/work.yaml",
			},
		},
	}
}
