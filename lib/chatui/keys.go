// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the chat screen. Printable keys
// belong to the composer, so every chord here is a control sequence or
// a key the composer has no use for.
type KeyMap struct {
	// Send submits the composer: a slash command or a chat message.
	Send key.Binding

	// Cancel clears a pending reply, or the composer when no reply
	// is pending.
	Cancel key.Binding

	// Voting on an open visibility round.
	Agree key.Binding
	Veto  key.Binding

	// Transcript scrolling.
	PageUp   key.Binding
	PageDown key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "send"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "cancel"),
	),
	Agree: key.NewBinding(
		key.WithKeys("ctrl+y"),
		key.WithHelp("C-y", "agree"),
	),
	Veto: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("C-n", "veto"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "scroll up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "scroll down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
}
