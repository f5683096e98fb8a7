// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package lobbyui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/junegunn/fzf/src/util"

	"github.com/driftroom/driftroom/lib/tui"
	"github.com/driftroom/driftroom/wire"
)

// lobbyUpdateMsg carries one snapshot from the watcher's update
// channel.
type lobbyUpdateMsg struct {
	listings []wire.LobbyListing
}

// lobbyClosedMsg signals that the watcher's update channel closed,
// meaning the watcher itself has stopped.
type lobbyClosedMsg struct{}

// Model is the lobby screen state.
type Model struct {
	updates <-chan []wire.LobbyListing

	theme tui.Theme
	keys  KeyMap
	slab  *util.Slab

	width  int
	height int
	ready  bool

	// listings is the latest snapshot in watcher order; rows is the
	// filtered and ranked view of it that the list renders.
	listings []wire.LobbyListing
	rows     []FilterResult
	filter   FilterModel

	cursor       int
	scrollOffset int

	selected wire.RoomID
	picked   bool
	closed   bool
}

// New builds a lobby screen consuming the given snapshot stream,
// normally a room.LobbyWatcher's Updates channel.
func New(updates <-chan []wire.LobbyListing) Model {
	return Model{
		updates: updates,
		theme:   tui.DefaultTheme,
		keys:    DefaultKeyMap,
		slab:    util.MakeSlab(100*1024, 2048),
	}
}

// Init starts the snapshot listener.
func (m Model) Init() tea.Cmd {
	return listenForUpdate(m.updates)
}

// listenForUpdate returns a command that blocks on the snapshot
// channel. The update handler re-issues it after every delivery, so
// exactly one listener is outstanding at a time.
func listenForUpdate(updates <-chan []wire.LobbyListing) tea.Cmd {
	return func() tea.Msg {
		listings, ok := <-updates
		if !ok {
			return lobbyClosedMsg{}
		}
		return lobbyUpdateMsg{listings: listings}
	}
}

// Update handles one bubbletea message.
func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		return m.handleKey(message)

	case tea.WindowSizeMsg:
		m.width = message.Width
		m.height = message.Height
		m.ready = true
		m.ensureCursorVisible()
		return m, nil

	case tea.MouseMsg:
		switch message.Button {
		case tea.MouseButtonWheelUp:
			m.moveCursor(-1)
		case tea.MouseButtonWheelDown:
			m.moveCursor(1)
		}
		return m, nil

	case lobbyUpdateMsg:
		m.listings = message.listings
		m.refresh()
		return m, listenForUpdate(m.updates)

	case lobbyClosedMsg:
		m.closed = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filter.Active {
		return m.handleFilterKey(message)
	}

	switch {
	case key.Matches(message, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(message, m.keys.Up):
		m.moveCursor(-1)

	case key.Matches(message, m.keys.Down):
		m.moveCursor(1)

	case key.Matches(message, m.keys.Select):
		if m.cursor < len(m.rows) {
			m.selected = m.rows[m.cursor].Listing.RoomID
			m.picked = true
			return m, tea.Quit
		}

	case key.Matches(message, m.keys.FilterActivate):
		m.filter.Active = true
		// Snap to the top so the best matches are visible as the
		// user types.
		m.cursor = 0
		m.scrollOffset = 0

	case key.Matches(message, m.keys.FilterClear):
		if m.filter.Input != "" {
			m.filter.Clear()
			m.refresh()
		}
	}
	return m, nil
}

// handleFilterKey processes keystrokes while the filter input has
// focus: regular characters go to the query, Esc clears and exits,
// Enter confirms and returns focus to the list.
func (m Model) handleFilterKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, m.keys.Quit):
		// ctrl+c always quits, even in filter mode.
		if message.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		// 'q' is a regular character in filter mode.
		m.filter.HandleRune('q')
		m.refresh()

	case key.Matches(message, m.keys.FilterClear):
		m.filter.Clear()
		m.refresh()

	case message.Type == tea.KeyEnter:
		m.filter.Active = false

	case message.Type == tea.KeyBackspace:
		if m.filter.HandleBackspace() {
			m.refresh()
		}

	case message.Type == tea.KeyRunes || message.Type == tea.KeySpace:
		for _, character := range message.Runes {
			m.filter.HandleRune(character)
		}
		m.refresh()
	}
	return m, nil
}

// refresh rebuilds the visible rows from the latest snapshot and the
// current filter, keeping the cursor on a valid row.
func (m *Model) refresh() {
	m.rows = m.filter.ApplyFuzzy(m.listings, m.slab)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureCursorVisible()
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureCursorVisible()
}

// ensureCursorVisible adjusts scrollOffset so the cursor is within
// the visible window, clamping the offset when the list shrinks.
func (m *Model) ensureCursorVisible() {
	visible := m.listHeight()
	if visible <= 0 {
		return
	}

	maxOffset := len(m.rows) - visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.scrollOffset > maxOffset {
		m.scrollOffset = maxOffset
	}

	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+visible {
		m.scrollOffset = m.cursor - visible + 1
	}
}

// Selected returns the room the user picked. ok is false when the
// screen quit without a pick, either because the user quit or because
// the watcher stopped.
func (m Model) Selected() (wire.RoomID, bool) {
	return m.selected, m.picked
}

// Closed reports whether the screen quit because the watcher's update
// channel closed underneath it.
func (m Model) Closed() bool { return m.closed }
