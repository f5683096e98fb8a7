// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"strconv"
	"strings"
)

// slashKind enumerates the composer's slash commands.
type slashKind int

const (
	slashReply slashKind = iota
	slashReact
	slashImage
	slashPublic
	slashPrivate
	slashAgree
	slashVeto
	slashHelp
	slashQuit
)

// slashCommand is a parsed composer command. Which fields are set
// depends on the kind: reply and react carry an ordinal, image carries
// a ref, and text holds the reply body, image caption, or reaction
// emoji.
type slashCommand struct {
	kind    slashKind
	ordinal int
	ref     string
	text    string
}

// helpText is shown in the status line for /help and mistyped commands.
const helpText = "/reply <n> [text] · /react <n> <emoji> · /img <ref> [caption] · /public · /private · /agree · /veto · /quit"

// parseSlash parses a composer line that starts with "/". The input
// is trusted to be non-empty and slash-prefixed; the caller routes
// plain text elsewhere.
func parseSlash(input string) (slashCommand, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(input), " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "/reply":
		ordinal, body, err := splitOrdinal(rest)
		if err != nil {
			return slashCommand{}, fmt.Errorf("usage: /reply <n> [text] — %w", err)
		}
		return slashCommand{kind: slashReply, ordinal: ordinal, text: body}, nil

	case "/react":
		ordinal, emoji, err := splitOrdinal(rest)
		if err != nil {
			return slashCommand{}, fmt.Errorf("usage: /react <n> <emoji> — %w", err)
		}
		if emoji == "" {
			return slashCommand{}, fmt.Errorf("usage: /react <n> <emoji> — emoji required")
		}
		return slashCommand{kind: slashReact, ordinal: ordinal, text: emoji}, nil

	case "/img", "/image":
		ref, caption, _ := strings.Cut(rest, " ")
		if ref == "" {
			return slashCommand{}, fmt.Errorf("usage: /img <ref> [caption] — image reference required")
		}
		return slashCommand{kind: slashImage, ref: ref, text: strings.TrimSpace(caption)}, nil

	case "/public":
		return slashCommand{kind: slashPublic}, nil
	case "/private":
		return slashCommand{kind: slashPrivate}, nil
	case "/agree":
		return slashCommand{kind: slashAgree}, nil
	case "/veto":
		return slashCommand{kind: slashVeto}, nil
	case "/help":
		return slashCommand{kind: slashHelp}, nil
	case "/quit", "/exit":
		return slashCommand{kind: slashQuit}, nil

	default:
		return slashCommand{}, fmt.Errorf("unknown command %s (try /help)", name)
	}
}

// splitOrdinal splits "3 tail words" into the message number and the
// remaining text.
func splitOrdinal(rest string) (int, string, error) {
	numText, tail, _ := strings.Cut(rest, " ")
	if numText == "" {
		return 0, "", fmt.Errorf("message number required")
	}
	n, err := strconv.Atoi(numText)
	if err != nil || n < 1 {
		return 0, "", fmt.Errorf("bad message number %q", numText)
	}
	return n, strings.TrimSpace(tail), nil
}
