// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/driftroom/driftroom/room"
	"github.com/driftroom/driftroom/wire"
)

const (
	// sidebarWidth is the peer list width including its left border.
	sidebarWidth = 22

	// minSidebarTotal is the narrowest terminal that still shows the
	// sidebar. Below this the transcript takes the full width.
	minSidebarTotal = 72

	// chromeRows is the fixed vertical overhead around the
	// transcript: header, divider, vote banner, reply line, composer,
	// help line. The banner and reply rows are reserved even when
	// empty so the transcript doesn't jump when they appear.
	chromeRows = 6
)

// layout recomputes component sizes after a resize.
func (m *Model) layout() {
	transcriptHeight := m.height - chromeRows
	if transcriptHeight < 1 {
		transcriptHeight = 1
	}
	m.viewport.Width = m.chatWidth()
	m.viewport.Height = transcriptHeight
	m.input.Width = m.width - len(m.input.Prompt) - 2
	m.refreshViewport()
}

// chatWidth is the transcript pane width, accounting for the sidebar
// when the terminal is wide enough for one.
func (m Model) chatWidth() int {
	if m.showSidebar() {
		return m.width - sidebarWidth
	}
	return m.width
}

func (m Model) showSidebar() bool {
	return m.width >= minSidebarTotal
}

// refreshViewport re-renders the transcript into the viewport,
// keeping the view glued to the newest message unless the user has
// scrolled up to read history.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return fmt.Sprintf("Joining %s…\n", m.roomID)
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(m.theme.BorderColor).Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	if m.showSidebar() {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.viewport.View(), m.renderSidebar()))
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")

	b.WriteString(m.renderVoteBanner())
	b.WriteString("\n")
	b.WriteString(m.renderReplyLine())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	return b.String()
}

// renderHeader draws the top line: room and topic on the left,
// connectivity and visibility on the right.
func (m Model) renderHeader() string {
	headerStyle := lipgloss.NewStyle().Foreground(m.theme.HeaderForeground).Bold(true)
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)

	left := headerStyle.Render("driftroom · " + string(m.roomID))
	if m.joined && m.config.Topic != "" {
		left += faint.Render(" — " + m.config.Topic)
	}

	conn := lipgloss.NewStyle().Foreground(m.theme.Online).Render("● online")
	if !m.connected {
		conn = lipgloss.NewStyle().Foreground(m.theme.Offline).Render("○ offline")
	}
	right := conn
	if m.joined {
		right += faint.Render(" · " + visibilityLabel(m.config.Public))
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// renderTranscript renders all entries at the current pane width.
func (m Model) renderTranscript() string {
	if len(m.transcript.entries) == 0 {
		return lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("No messages yet.")
	}
	wrap := lipgloss.NewStyle().Width(m.chatWidth())
	lines := make([]string, 0, len(m.transcript.entries))
	for _, e := range m.transcript.entries {
		lines = append(lines, wrap.Render(m.renderEntry(e)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderEntry(e entry) string {
	if e.kind == entryNotice {
		return lipgloss.NewStyle().Foreground(m.theme.NoticeText).Render("· " + e.notice)
	}
	return m.renderMessage(e.ordinal, e.message)
}

func (m Model) renderMessage(ordinal int, message room.Message) string {
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)

	var b strings.Builder

	// Reply context precedes the message, the way the eye reads a
	// quoted reply.
	if message.ReplySummary != nil {
		b.WriteString(faint.Render(fmt.Sprintf("  ↳ %s: %s", message.ReplySummary.SenderName, message.ReplySummary.Excerpt)))
		b.WriteString("\n")
	} else if message.ReplyTo != "" {
		// Dangling reference: the quoted message predates us or was
		// lost. The summary would normally cover this, but old
		// senders may omit it.
		b.WriteString(faint.Render("  ↳ (message unavailable)"))
		b.WriteString("\n")
	}

	b.WriteString(faint.Render(fmt.Sprintf("[%d] %s ", ordinal, message.SentAt.Format("15:04"))))
	b.WriteString(m.renderName(message.Sender))
	b.WriteString(faint.Render(": "))

	switch message.Kind {
	case wire.MessageImage:
		b.WriteString(m.renderImage(message))
	case wire.MessageMixed:
		b.WriteString(m.renderImage(message))
		if message.Body != "" {
			b.WriteString(" ")
			b.WriteString(message.Body)
		}
	default:
		b.WriteString(message.Body)
	}

	if len(message.Reactions) > 0 {
		b.WriteString("\n")
		b.WriteString(m.renderReactions(message.Reactions))
	}
	return b.String()
}

func (m Model) renderName(sender wire.Identity) string {
	color := m.theme.PeerColor(m.colors[sender.ClientID])
	if sender.ClientID == m.self.ClientID {
		color = m.theme.SelfColor
	}
	name := sender.Username
	if sender.Avatar != "" {
		name = sender.Avatar + " " + name
	}
	rendered := lipgloss.NewStyle().Foreground(color).Render(name)
	if sender.Privilege != "" {
		rendered += lipgloss.NewStyle().Foreground(m.theme.FaintText).Render(" [" + sender.Privilege + "]")
	}
	return rendered
}

func (m Model) renderImage(message room.Message) string {
	label := "[image] " + message.ImageRef
	if message.Kind == wire.MessageImage && message.Body != "" {
		label += " — " + message.Body
	}
	return lipgloss.NewStyle().Foreground(m.theme.NormalText).Render(label)
}

// renderReactions draws one line of emoji tallies with the reactors'
// names, emoji sorted for stable output.
func (m Model) renderReactions(reactions map[string][]wire.Identity) string {
	emojis := make([]string, 0, len(reactions))
	for emoji := range reactions {
		emojis = append(emojis, emoji)
	}
	sort.Strings(emojis)

	parts := make([]string, 0, len(emojis))
	for _, emoji := range emojis {
		reactors := reactions[emoji]
		names := make([]string, 0, len(reactors))
		for _, identity := range reactors {
			names = append(names, identity.Username)
		}
		parts = append(parts, fmt.Sprintf("%s %d (%s)", emoji, len(reactors), strings.Join(names, ", ")))
	}
	return lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("  " + strings.Join(parts, " · "))
}

// renderSidebar draws the peer list, join order top to bottom.
func (m Model) renderSidebar() string {
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)

	lines := make([]string, 0, len(m.peers)+1)
	lines = append(lines, lipgloss.NewStyle().Foreground(m.theme.HeaderForeground).Render(fmt.Sprintf("peers (%d)", len(m.peers))))
	for _, peer := range m.peers {
		line := " " + m.renderName(peer.Identity)
		if peer.Identity.ClientID == m.self.ClientID {
			line += faint.Render(" (you)")
		}
		lines = append(lines, line)
	}

	content := strings.Join(lines, "\n")
	return lipgloss.NewStyle().
		Width(sidebarWidth).
		Height(m.viewport.Height).
		MaxHeight(m.viewport.Height).
		PaddingLeft(1).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(m.theme.BorderColor).
		Render(content)
}

// renderVoteBanner draws the open round, or a blank line when idle.
func (m Model) renderVoteBanner() string {
	if !m.vote.active {
		return ""
	}

	target := visibilityLabel(m.vote.proposal.TargetPublic)
	var text string
	switch {
	case m.vote.canVote && !m.vote.responded:
		text = fmt.Sprintf("⚖ %s proposes a %s room — %s agree · %s veto",
			m.vote.proposal.Initiator.Username, target,
			m.keys.Agree.Help().Key, m.keys.Veto.Help().Key)
	default:
		text = fmt.Sprintf("⚖ %s room proposed — waiting for peers", target)
	}
	if m.vote.members > 0 {
		text += fmt.Sprintf(" · %d/%d agreed", m.vote.agreed, m.vote.members)
	}

	return lipgloss.NewStyle().
		Background(m.theme.VoteBackground).
		Foreground(m.theme.VoteForeground).
		Width(m.width).
		Render(" " + text)
}

// renderReplyLine draws the armed reply context, or a blank line.
func (m Model) renderReplyLine() string {
	if m.replyTo == "" {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(m.theme.FaintText).
		Render(fmt.Sprintf("↳ replying to %s (%s cancels)", m.replyPreview, m.keys.Cancel.Help().Key))
}

// renderStatusLine draws the transient status if set, the key help
// otherwise.
func (m Model) renderStatusLine() string {
	if m.status != "" {
		return lipgloss.NewStyle().Foreground(m.theme.Offline).Render(m.status)
	}
	help := fmt.Sprintf("%s send · /help commands · %s/%s scroll · %s quit",
		m.keys.Send.Help().Key, m.keys.PageUp.Help().Key, m.keys.PageDown.Help().Key, m.keys.Quit.Help().Key)
	return lipgloss.NewStyle().Foreground(m.theme.HelpText).Render(help)
}
