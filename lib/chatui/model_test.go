// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/driftroom/driftroom/room"
	"github.com/driftroom/driftroom/wire"
)

var (
	selfIdentity = wire.Identity{ClientID: "client-ava", Username: "ava", Avatar: "⚡"}
	benIdentity  = wire.Identity{ClientID: "client-ben", Username: "ben"}
)

// controllerCall records one method invocation on the fake controller.
type controllerCall struct {
	method  string
	body    string
	ref     string
	emoji   string
	id      wire.MessageID
	replyTo wire.MessageID
	public  bool
}

type fakeController struct {
	calls []controllerCall
}

func (c *fakeController) SendText(body string, replyTo wire.MessageID) {
	c.calls = append(c.calls, controllerCall{method: "SendText", body: body, replyTo: replyTo})
}

func (c *fakeController) SendImage(imageRef, caption string, replyTo wire.MessageID) {
	c.calls = append(c.calls, controllerCall{method: "SendImage", ref: imageRef, body: caption, replyTo: replyTo})
}

func (c *fakeController) React(id wire.MessageID, emoji string) {
	c.calls = append(c.calls, controllerCall{method: "React", id: id, emoji: emoji})
}

func (c *fakeController) ProposeVisibility(public bool) {
	c.calls = append(c.calls, controllerCall{method: "ProposeVisibility", public: public})
}

func (c *fakeController) Agree() {
	c.calls = append(c.calls, controllerCall{method: "Agree"})
}

func (c *fakeController) Veto() {
	c.calls = append(c.calls, controllerCall{method: "Veto"})
}

func (c *fakeController) last(t *testing.T) controllerCall {
	t.Helper()
	if len(c.calls) == 0 {
		t.Fatal("no controller calls recorded")
	}
	return c.calls[len(c.calls)-1]
}

// newTestModel builds a sized model wired to a fake controller.
func newTestModel(t *testing.T, controller *fakeController) Model {
	t.Helper()
	events := make(chan room.Event)
	model := New(controller, events, selfIdentity, "den")
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model)
}

// deliver injects a session event as if the listen command had
// returned it.
func deliver(t *testing.T, model Model, event room.Event) Model {
	t.Helper()
	updated, _ := model.Update(sessionEventMsg{event: event})
	return updated.(Model)
}

func typeString(t *testing.T, model Model, text string) Model {
	t.Helper()
	for _, r := range text {
		updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		model = updated.(Model)
	}
	return model
}

func press(t *testing.T, model Model, keyType tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := model.Update(tea.KeyMsg{Type: keyType})
	return updated.(Model), cmd
}

func pressCtrl(t *testing.T, model Model, keyType tea.KeyType) Model {
	t.Helper()
	updated, _ := model.Update(tea.KeyMsg{Type: keyType})
	return updated.(Model)
}

func textMessage(id wire.MessageID, sender wire.Identity, body string) room.Message {
	return room.Message{
		ChatMessage: wire.ChatMessage{
			ID:     id,
			Kind:   wire.MessageText,
			Body:   body,
			Sender: sender,
			SentAt: time.Date(2026, 3, 14, 15, 4, 0, 0, time.UTC),
		},
	}
}

func TestModelSendsComposedText(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	model = typeString(t, model, "hello room")
	model, _ = press(t, model, tea.KeyEnter)

	call := controller.last(t)
	if call.method != "SendText" || call.body != "hello room" {
		t.Errorf("call = %+v, want SendText(hello room)", call)
	}
	if call.replyTo != "" {
		t.Errorf("replyTo = %q, want empty", call.replyTo)
	}
	if model.input.Value() != "" {
		t.Errorf("input not cleared after send: %q", model.input.Value())
	}
}

func TestModelEmptyInputDoesNotSend(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	model, _ = press(t, model, tea.KeyEnter)
	_ = model

	if len(controller.calls) != 0 {
		t.Errorf("empty enter produced calls: %+v", controller.calls)
	}
}

func TestModelSlashReplySendsImmediately(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)
	model = deliver(t, model, room.MessageAdded{Message: textMessage("msg-1", benIdentity, "anyone around?")})

	model = typeString(t, model, "/reply 1 right here")
	model, _ = press(t, model, tea.KeyEnter)

	call := controller.last(t)
	if call.method != "SendText" || call.body != "right here" || call.replyTo != "msg-1" {
		t.Errorf("call = %+v, want SendText(right here, reply msg-1)", call)
	}
}

func TestModelSlashReplyArmsPendingReply(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)
	model = deliver(t, model, room.MessageAdded{Message: textMessage("msg-1", benIdentity, "anyone around?")})

	model = typeString(t, model, "/reply 1")
	model, _ = press(t, model, tea.KeyEnter)

	if len(controller.calls) != 0 {
		t.Fatalf("arming a reply should not send, got %+v", controller.calls)
	}
	if !strings.Contains(model.View(), "replying to ben") {
		t.Error("view missing armed reply context")
	}

	model = typeString(t, model, "right here")
	model, _ = press(t, model, tea.KeyEnter)

	call := controller.last(t)
	if call.replyTo != "msg-1" {
		t.Errorf("replyTo = %q, want msg-1", call.replyTo)
	}

	// The reply arm is one-shot: the next send is a plain message.
	model = typeString(t, model, "and another thing")
	model, _ = press(t, model, tea.KeyEnter)
	if call := controller.last(t); call.replyTo != "" {
		t.Errorf("second send replyTo = %q, want empty", call.replyTo)
	}
}

func TestModelEscCancelsPendingReply(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)
	model = deliver(t, model, room.MessageAdded{Message: textMessage("msg-1", benIdentity, "hm")})

	model = typeString(t, model, "/reply 1")
	model, _ = press(t, model, tea.KeyEnter)
	model, _ = press(t, model, tea.KeyEscape)

	model = typeString(t, model, "not a reply")
	model, _ = press(t, model, tea.KeyEnter)

	if call := controller.last(t); call.replyTo != "" {
		t.Errorf("replyTo = %q after cancel, want empty", call.replyTo)
	}
}

func TestModelSlashReactTargetsMessage(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)
	model = deliver(t, model, room.MessageAdded{Message: textMessage("msg-1", benIdentity, "shipped it")})

	model = typeString(t, model, "/react 1 🎉")
	model, _ = press(t, model, tea.KeyEnter)

	call := controller.last(t)
	if call.method != "React" || call.id != "msg-1" || call.emoji != "🎉" {
		t.Errorf("call = %+v, want React(msg-1, 🎉)", call)
	}
}

func TestModelSlashReactUnknownOrdinal(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	model = typeString(t, model, "/react 9 🎉")
	model, _ = press(t, model, tea.KeyEnter)

	if len(controller.calls) != 0 {
		t.Errorf("unknown ordinal produced calls: %+v", controller.calls)
	}
	if !strings.Contains(model.View(), "no message [9]") {
		t.Error("view missing unknown-ordinal status")
	}
}

func TestModelSlashImage(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	model = typeString(t, model, "/img pic.png sunset over the bay")
	model, _ = press(t, model, tea.KeyEnter)

	call := controller.last(t)
	if call.method != "SendImage" || call.ref != "pic.png" || call.body != "sunset over the bay" {
		t.Errorf("call = %+v, want SendImage(pic.png, caption)", call)
	}
}

func TestModelSlashPublicProposesVote(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)
	model = deliver(t, model, room.Joined{Config: wire.RoomConfig{Public: false, CreatedBy: selfIdentity}})

	model = typeString(t, model, "/public")
	model, _ = press(t, model, tea.KeyEnter)

	call := controller.last(t)
	if call.method != "ProposeVisibility" || !call.public {
		t.Errorf("call = %+v, want ProposeVisibility(true)", call)
	}
}

func TestModelSlashPrivateOnPrivateRoomRefused(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)
	model = deliver(t, model, room.Joined{Config: wire.RoomConfig{Public: false, CreatedBy: selfIdentity}})

	model = typeString(t, model, "/private")
	model, _ = press(t, model, tea.KeyEnter)

	if len(controller.calls) != 0 {
		t.Errorf("redundant proposal produced calls: %+v", controller.calls)
	}
	if !strings.Contains(model.View(), "already private") {
		t.Error("view missing already-private status")
	}
}

func TestModelVoteKeysCastBallotOnce(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)
	model = deliver(t, model, room.VoteOpened{
		Proposal: wire.VoteProposal{VoteID: "vote-1", TargetPublic: true, Initiator: benIdentity},
		CanVote:  true,
	})

	model = pressCtrl(t, model, tea.KeyCtrlY)
	if len(controller.calls) != 1 || controller.calls[0].method != "Agree" {
		t.Fatalf("calls = %+v, want one Agree", controller.calls)
	}

	// A second agree has nothing to act on.
	model = pressCtrl(t, model, tea.KeyCtrlY)
	if len(controller.calls) != 1 {
		t.Errorf("repeated agree produced extra calls: %+v", controller.calls)
	}
	_ = model
}

func TestModelVetoKeyRequiresOpenVote(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	model = pressCtrl(t, model, tea.KeyCtrlN)
	if len(controller.calls) != 0 {
		t.Errorf("veto without a vote produced calls: %+v", controller.calls)
	}
	if !strings.Contains(model.View(), "no vote waiting") {
		t.Error("view missing no-vote status")
	}
}

func TestModelInitiatorCannotVote(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)
	model = deliver(t, model, room.VoteOpened{
		Proposal: wire.VoteProposal{VoteID: "vote-1", TargetPublic: true, Initiator: selfIdentity},
		CanVote:  false,
	})

	model = pressCtrl(t, model, tea.KeyCtrlY)
	if len(controller.calls) != 0 {
		t.Errorf("initiator agree produced calls: %+v", controller.calls)
	}
}

func TestModelVoteBannerLifecycle(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	model = deliver(t, model, room.VoteOpened{
		Proposal: wire.VoteProposal{VoteID: "vote-1", TargetPublic: true, Initiator: benIdentity},
		CanVote:  true,
	})
	if view := model.View(); !strings.Contains(view, "proposes a public room") {
		t.Error("view missing vote banner after VoteOpened")
	}

	model = deliver(t, model, room.VoteProgress{
		Proposal: wire.VoteProposal{VoteID: "vote-1"},
		Agreed:   2,
		Members:  3,
	})
	if view := model.View(); !strings.Contains(view, "2/3 agreed") {
		t.Error("view missing vote progress")
	}

	model = deliver(t, model, room.VoteResolved{
		Proposal: wire.VoteProposal{VoteID: "vote-1", TargetPublic: true},
		Outcome:  room.VotePassed,
	})
	view := model.View()
	if strings.Contains(view, "2/3 agreed") {
		t.Error("banner still visible after resolution")
	}
	if !strings.Contains(view, "vote passed") {
		t.Error("transcript missing vote outcome notice")
	}
}

func TestModelRosterNotices(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	// Initial snapshot: no join notices for peers already present.
	model = deliver(t, model, room.RosterUpdated{Peers: []room.Peer{{Identity: selfIdentity}}})
	if strings.Contains(model.View(), "joined") {
		t.Error("initial roster should not produce join notices")
	}

	model = deliver(t, model, room.RosterUpdated{Peers: []room.Peer{{Identity: selfIdentity}, {Identity: benIdentity}}})
	view := model.View()
	if !strings.Contains(view, "ben joined") {
		t.Error("view missing join notice for ben")
	}
	if !strings.Contains(view, "peers (2)") {
		t.Error("sidebar missing peer count")
	}

	model = deliver(t, model, room.RosterUpdated{Peers: []room.Peer{{Identity: selfIdentity}}})
	if !strings.Contains(model.View(), "ben left") {
		t.Error("view missing leave notice for ben")
	}
}

func TestModelTranscriptRendering(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	model = deliver(t, model, room.MessageAdded{Message: textMessage("msg-1", benIdentity, "first post")})

	reacted := textMessage("msg-1", benIdentity, "first post")
	reacted.Reactions = map[string][]wire.Identity{"🎉": {selfIdentity}}
	model = deliver(t, model, room.ReactionAdded{
		Message:  reacted,
		Reaction: wire.Reaction{MessageID: "msg-1", Emoji: "🎉", From: selfIdentity},
	})

	view := model.View()
	for _, want := range []string{"[1]", "first post", "🎉 1 (ava)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModelOrdinalsSkipNotices(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	model = deliver(t, model, room.MessageAdded{Message: textMessage("msg-1", benIdentity, "one")})
	model = deliver(t, model, room.RosterUpdated{Peers: []room.Peer{{Identity: selfIdentity}}})
	model = deliver(t, model, room.MessageAdded{Message: textMessage("msg-2", benIdentity, "two")})

	model = typeString(t, model, "/react 2 👀")
	model, _ = press(t, model, tea.KeyEnter)

	call := controller.last(t)
	if call.id != "msg-2" {
		t.Errorf("ordinal 2 resolved to %q, want msg-2", call.id)
	}
}

func TestModelConnectivityNotices(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	// The session's initial Up report is not news.
	model = deliver(t, model, room.Connectivity{Up: true})
	if strings.Contains(model.View(), "reconnected") {
		t.Error("initial connectivity produced a reconnect notice")
	}

	model = deliver(t, model, room.Connectivity{Up: false})
	view := model.View()
	if !strings.Contains(view, "connection lost") {
		t.Error("view missing connection-lost notice")
	}
	if !strings.Contains(view, "offline") {
		t.Error("header missing offline indicator")
	}

	model = deliver(t, model, room.Connectivity{Up: true})
	if !strings.Contains(model.View(), "reconnected") {
		t.Error("view missing reconnect notice")
	}
}

func TestModelJoinedNotice(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	model = deliver(t, model, room.Joined{
		Config:  wire.RoomConfig{Public: true, Topic: "late night talks", CreatedBy: selfIdentity},
		Created: true,
	})

	view := model.View()
	for _, want := range []string{"created den", "late night talks", "public"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModelQuitKey(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	_, command := press(t, model, tea.KeyCtrlC)
	if command == nil {
		t.Fatal("ctrl+c returned nil command")
	}
	if _, ok := command().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not quit")
	}
}

func TestModelSessionClosedQuits(t *testing.T) {
	controller := &fakeController{}
	model := newTestModel(t, controller)

	updated, command := model.Update(sessionClosedMsg{})
	if command == nil {
		t.Fatal("session close returned nil command")
	}
	if _, ok := command().(tea.QuitMsg); !ok {
		t.Error("session close did not quit")
	}
	if !updated.(Model).Closed() {
		t.Error("Closed() = false after session close")
	}
}
