// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/driftroom/driftroom/lib/tui"
	"github.com/driftroom/driftroom/room"
	"github.com/driftroom/driftroom/wire"
)

// Controller is the subset of [room.Session] the chat screen drives.
// Calls enqueue work on the session loop and return immediately; the
// observable result comes back on the event channel.
type Controller interface {
	SendText(body string, replyTo wire.MessageID)
	SendImage(imageRef, caption string, replyTo wire.MessageID)
	React(id wire.MessageID, emoji string)
	ProposeVisibility(public bool)
	Agree()
	Veto()
}

// sessionEventMsg wraps a room event for delivery through the
// bubbletea message loop.
type sessionEventMsg struct {
	event room.Event
}

// sessionClosedMsg reports the session's event channel closing: the
// session loop has exited and the screen should too.
type sessionClosedMsg struct{}

// voteState tracks the visibility round currently shown in the banner.
type voteState struct {
	active    bool
	proposal  wire.VoteProposal
	canVote   bool
	responded bool
	agreed    int
	members   int
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	controller Controller
	events     <-chan room.Event
	self       wire.Identity
	roomID     wire.RoomID

	theme tui.Theme
	keys  KeyMap

	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textinput.Model

	transcript *transcript

	peers  []room.Peer
	colors map[wire.ClientID]int

	connected bool
	connKnown bool
	config    wire.RoomConfig
	joined    bool

	vote voteState

	// replyTo arms the next plain send as a reply; replyPreview is
	// the context line shown above the composer while armed.
	replyTo      wire.MessageID
	replyPreview string

	// status is a transient line (command errors, /help) replacing
	// the help line until the next keypress.
	status string

	closed bool
}

// New creates a chat screen for a running session. The events channel
// must be the session's; the model drains it for the life of the
// program.
func New(controller Controller, events <-chan room.Event, self wire.Identity, roomID wire.RoomID) Model {
	input := textinput.New()
	input.Placeholder = "Type a message, / for commands…"
	input.Prompt = "> "
	input.CharLimit = 0
	input.Focus()

	return Model{
		controller: controller,
		events:     events,
		self:       self,
		roomID:     roomID,
		theme:      tui.DefaultTheme,
		keys:       DefaultKeyMap,
		input:      input,
		transcript: newTranscript(),
		colors:     make(map[wire.ClientID]int),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenForSessionEvent(m.events))
}

// listenForSessionEvent returns a tea.Cmd that blocks until the next
// session event, then delivers it as a sessionEventMsg.
func listenForSessionEvent(events <-chan room.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return sessionClosedMsg{}
		}
		return sessionEventMsg{event: event}
	}
}

// Update implements tea.Model.
func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		return m.handleKey(message)

	case tea.WindowSizeMsg:
		m.width = message.Width
		m.height = message.Height
		m.ready = true
		m.layout()
		return m, nil

	case tea.MouseMsg:
		switch message.Button {
		case tea.MouseButtonWheelUp:
			m.viewport.LineUp(3)
		case tea.MouseButtonWheelDown:
			m.viewport.LineDown(3)
		}
		return m, nil

	case sessionEventMsg:
		m = m.handleSessionEvent(message.event)
		return m, listenForSessionEvent(m.events)

	case sessionClosedMsg:
		m.closed = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""

	switch {
	case key.Matches(message, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(message, m.keys.Send):
		return m.submit()

	case key.Matches(message, m.keys.Cancel):
		if m.replyTo != "" {
			m.replyTo = ""
			m.replyPreview = ""
			return m, nil
		}
		m.input.SetValue("")
		return m, nil

	case key.Matches(message, m.keys.Agree):
		return m.castAgree()

	case key.Matches(message, m.keys.Veto):
		return m.castVeto()

	case key.Matches(message, m.keys.PageUp), key.Matches(message, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(message)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(message)
	return m, cmd
}

// submit routes the composer line: slash commands to their handlers,
// anything else out as a chat message.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		return m.runSlash(text)
	}

	m.controller.SendText(text, m.replyTo)
	m.replyTo = ""
	m.replyPreview = ""
	m.input.SetValue("")
	return m, nil
}

func (m Model) runSlash(text string) (tea.Model, tea.Cmd) {
	command, err := parseSlash(text)
	if err != nil {
		// Keep the input so the user can fix it in place.
		m.status = err.Error()
		return m, nil
	}

	switch command.kind {
	case slashReply:
		target, ok := m.transcript.messageByOrdinal(command.ordinal)
		if !ok {
			m.status = fmt.Sprintf("no message [%d]", command.ordinal)
			return m, nil
		}
		if command.text == "" {
			// Arm reply mode: the next plain send replies to target.
			summary := wire.Summarize(target.ChatMessage)
			m.replyTo = target.ID
			m.replyPreview = summary.SenderName + ": " + summary.Excerpt
			m.input.SetValue("")
			return m, nil
		}
		m.controller.SendText(command.text, target.ID)

	case slashReact:
		target, ok := m.transcript.messageByOrdinal(command.ordinal)
		if !ok {
			m.status = fmt.Sprintf("no message [%d]", command.ordinal)
			return m, nil
		}
		m.controller.React(target.ID, command.text)

	case slashImage:
		m.controller.SendImage(command.ref, command.text, m.replyTo)
		m.replyTo = ""
		m.replyPreview = ""

	case slashPublic:
		if m.joined && m.config.Public {
			m.status = "room is already public"
			return m, nil
		}
		m.controller.ProposeVisibility(true)

	case slashPrivate:
		if m.joined && !m.config.Public {
			m.status = "room is already private"
			return m, nil
		}
		m.controller.ProposeVisibility(false)

	case slashAgree:
		return m.castAgree()

	case slashVeto:
		return m.castVeto()

	case slashHelp:
		m.status = helpText
		m.input.SetValue("")
		return m, nil

	case slashQuit:
		return m, tea.Quit
	}

	m.input.SetValue("")
	return m, nil
}

func (m Model) castAgree() (tea.Model, tea.Cmd) {
	if !m.vote.active || !m.vote.canVote || m.vote.responded {
		m.status = "no vote waiting for your answer"
		return m, nil
	}
	m.controller.Agree()
	m.vote.responded = true
	m.input.SetValue("")
	return m, nil
}

func (m Model) castVeto() (tea.Model, tea.Cmd) {
	if !m.vote.active || !m.vote.canVote || m.vote.responded {
		m.status = "no vote waiting for your answer"
		return m, nil
	}
	m.controller.Veto()
	m.vote.responded = true
	m.input.SetValue("")
	return m, nil
}

// handleSessionEvent applies one room event to the screen state.
func (m Model) handleSessionEvent(event room.Event) Model {
	switch event := event.(type) {
	case room.Joined:
		m.config = event.Config
		m.joined = true
		verb := "joined"
		if event.Created {
			verb = "created"
		}
		notice := fmt.Sprintf("%s %s (%s)", verb, m.roomID, visibilityLabel(event.Config.Public))
		if event.Config.Topic != "" {
			notice += " — " + event.Config.Topic
		}
		m.transcript.appendNotice(notice)
		m.refreshViewport()

	case room.Connectivity:
		if m.connKnown && m.connected != event.Up {
			if event.Up {
				m.transcript.appendNotice("reconnected — queued messages sent")
			} else {
				m.transcript.appendNotice("connection lost — messages will queue")
			}
			m.refreshViewport()
		}
		m.connected = event.Up
		m.connKnown = true

	case room.RosterUpdated:
		m = m.applyRoster(event.Peers)

	case room.MessageAdded:
		m.assignColor(event.Message.Sender.ClientID)
		m.transcript.appendMessage(event.Message)
		m.refreshViewport()

	case room.ReactionAdded:
		if m.transcript.updateMessage(event.Message) {
			m.refreshViewport()
		}

	case room.ConfigChanged:
		m.config = event.Config
		m.joined = true
		m.transcript.appendNotice("room is now " + visibilityLabel(event.Config.Public))
		m.refreshViewport()

	case room.VoteOpened:
		m.vote = voteState{
			active:   true,
			proposal: event.Proposal,
			canVote:  event.CanVote,
		}
		m.transcript.appendNotice(fmt.Sprintf("%s proposes making the room %s",
			event.Proposal.Initiator.Username, visibilityLabel(event.Proposal.TargetPublic)))
		m.refreshViewport()

	case room.VoteProgress:
		m.vote.agreed = event.Agreed
		m.vote.members = event.Members

	case room.VoteResolved:
		m.vote = voteState{}
		switch event.Outcome {
		case room.VotePassed:
			m.transcript.appendNotice("vote passed")
		case room.VoteVetoed:
			m.transcript.appendNotice("vote vetoed — room stays " + visibilityLabel(!event.Proposal.TargetPublic))
		case room.VoteExpired:
			m.transcript.appendNotice("vote expired without agreement")
		}
		m.refreshViewport()
	}
	return m
}

// applyRoster swaps in the new roster and emits join/leave notices
// for the difference against the previous one.
func (m Model) applyRoster(peers []room.Peer) Model {
	previous := make(map[wire.ClientID]bool, len(m.peers))
	for _, peer := range m.peers {
		previous[peer.Identity.ClientID] = true
	}

	current := make(map[wire.ClientID]bool, len(peers))
	for _, peer := range peers {
		id := peer.Identity.ClientID
		current[id] = true
		m.assignColor(id)
		// The first roster is the initial snapshot: everyone in it
		// was already here, so only later additions are "joined".
		if len(previous) > 0 && !previous[id] && id != m.self.ClientID {
			m.transcript.appendNotice(peer.Identity.Username + " joined")
		}
	}
	for _, peer := range m.peers {
		if !current[peer.Identity.ClientID] {
			m.transcript.appendNotice(peer.Identity.Username + " left")
		}
	}

	m.peers = peers
	m.refreshViewport()
	return m
}

// assignColor gives a client a stable palette slot the first time it
// is seen, in order of appearance.
func (m Model) assignColor(id wire.ClientID) {
	if _, ok := m.colors[id]; !ok {
		m.colors[id] = len(m.colors)
	}
}

// Closed reports whether the screen quit because the session's event
// channel closed underneath it (as opposed to the user quitting).
func (m Model) Closed() bool { return m.closed }

func visibilityLabel(public bool) string {
	if public {
		return "public"
	}
	return "private"
}
