// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for driftroom's terminal UIs. All
// colors use lipgloss ANSI 256-color codes for broad terminal
// compatibility.
//
// The fields cover universal chrome (text, selection, borders) and the
// semantic categories that recur across both screens: peer identity,
// connectivity, and vote state.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Peer name colors, assigned round-robin by join order so each
	// participant keeps a stable color for the life of the session.
	PeerColors [6]lipgloss.Color

	// SelfColor highlights the local user's own name and messages.
	SelfColor lipgloss.Color

	// Connectivity indicator.
	Online  lipgloss.Color
	Offline lipgloss.Color

	// Vote banner.
	VoteBackground lipgloss.Color
	VoteForeground lipgloss.Color

	// Presence notices (joins, leaves, prunes) rendered inline in the
	// transcript.
	NoticeText lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Filter match highlighting in the lobby browser.
	MatchForeground lipgloss.Color
}

// PeerColor returns a stable color for the given ordinal, wrapping
// around when more peers join than the palette has entries.
func (theme Theme) PeerColor(ordinal int) lipgloss.Color {
	if ordinal < 0 {
		ordinal = -ordinal
	}
	return theme.PeerColors[ordinal%len(theme.PeerColors)]
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed for
// 256-color terminals with a dark background (the common case for
// development environments and tmux sessions).
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	PeerColors: [6]lipgloss.Color{
		lipgloss.Color("75"),  // blue
		lipgloss.Color("114"), // green
		lipgloss.Color("208"), // orange
		lipgloss.Color("141"), // light purple
		lipgloss.Color("220"), // amber
		lipgloss.Color("203"), // salmon
	},

	SelfColor: lipgloss.Color("255"),

	Online:  lipgloss.Color("114"), // green
	Offline: lipgloss.Color("196"), // red

	VoteBackground: lipgloss.Color("58"), // dark amber tint
	VoteForeground: lipgloss.Color("255"),

	NoticeText: lipgloss.Color("245"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	MatchForeground: lipgloss.Color("220"), // amber
}
