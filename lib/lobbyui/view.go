// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package lobbyui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// The screen is one top bar, the list, and one help line. The filter
// bar replaces the top bar rather than pushing the list down, so the
// layout never jumps when the user starts filtering.
const chromeRows = 2

func (m Model) listHeight() int { return m.height - chromeRows }

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "Watching the lobby…\n"
	}

	var b strings.Builder
	b.WriteString(m.renderTopBar())
	b.WriteString("\n")
	b.WriteString(m.renderList())
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderTopBar() string {
	if bar := m.filter.View(m.theme, m.width); bar != "" {
		return bar
	}

	title := lipgloss.NewStyle().
		Foreground(m.theme.HeaderForeground).
		Bold(true).
		Render("driftroom lobby")
	count := lipgloss.NewStyle().
		Foreground(m.theme.FaintText).
		Render(fmt.Sprintf(" · rooms (%d)", len(m.rows)))
	return title + count
}

// renderList draws exactly listHeight lines, padding with blanks when
// the lobby has fewer rooms than the window has rows.
func (m Model) renderList() string {
	height := m.listHeight()
	if height <= 0 {
		return ""
	}

	var b strings.Builder
	if len(m.rows) == 0 {
		empty := "No rooms advertised yet."
		if m.filter.Input != "" {
			empty = "No rooms match the filter."
		}
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.FaintText).Render(empty))
		b.WriteString("\n")
		for line := 1; line < height; line++ {
			b.WriteString("\n")
		}
		return b.String()
	}

	end := m.scrollOffset + height
	if end > len(m.rows) {
		end = len(m.rows)
	}
	for index := m.scrollOffset; index < end; index++ {
		b.WriteString(m.renderRow(m.rows[index], index == m.cursor))
		b.WriteString("\n")
	}
	for line := end - m.scrollOffset; line < height; line++ {
		b.WriteString("\n")
	}
	return b.String()
}

// renderRow draws one listing: cursor marker, room ID, topic, and the
// advertised peer count right-aligned. Matched runes from the fuzzy
// filter are highlighted in both the ID and the topic.
func (m Model) renderRow(row FilterResult, selected bool) string {
	base := lipgloss.NewStyle().Foreground(m.theme.NormalText)
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	match := lipgloss.NewStyle().Foreground(m.theme.MatchForeground).Bold(true)
	marker := "  "
	if selected {
		background := m.theme.SelectedBackground
		base = lipgloss.NewStyle().Foreground(m.theme.SelectedForeground).Background(background)
		faint = faint.Background(background)
		match = match.Background(background)
		marker = "> "
	}

	right := faint.Render(fmt.Sprintf("peers (%d)", row.Listing.PeerCount))
	rightWidth := lipgloss.Width(right)

	left := base.Render(marker) + highlightRunes(string(row.Listing.RoomID), row.RoomPositions, base, match)
	if topic := row.Listing.Topic; topic != "" {
		budget := m.width - lipgloss.Width(left) - rightWidth - 4
		if budget >= 4 {
			positions := row.TopicPositions
			if lipgloss.Width(topic) > budget {
				topic = truncate(topic, budget-1) + "…"
				positions = clampPositions(positions, len([]rune(topic))-1)
			}
			left += base.Render("  ") + highlightRunes(topic, positions, faint, match)
		}
	}

	gap := m.width - lipgloss.Width(left) - rightWidth - 1
	if gap < 1 {
		gap = 1
	}
	return left + base.Render(strings.Repeat(" ", gap)) + right
}

func (m Model) renderHelp() string {
	help := fmt.Sprintf("%s/%s move · %s join · %s filter · %s quit",
		m.keys.Up.Help().Key, m.keys.Down.Help().Key,
		m.keys.Select.Help().Key, m.keys.FilterActivate.Help().Key,
		m.keys.Quit.Help().Key)
	return lipgloss.NewStyle().Foreground(m.theme.HelpText).Render(help)
}

// highlightRunes renders text with highlightStyle at the matched rune
// positions and baseStyle everywhere else. Runs of same-style runes
// batch into a single Render call to keep the ANSI output compact.
func highlightRunes(text string, positions []int, baseStyle, highlightStyle lipgloss.Style) string {
	if len(positions) == 0 {
		return baseStyle.Render(text)
	}

	positionSet := make(map[int]bool, len(positions))
	for _, position := range positions {
		positionSet[position] = true
	}

	runes := []rune(text)
	var result strings.Builder
	runStart := 0
	highlighted := len(runes) > 0 && positionSet[0]
	for index := 1; index <= len(runes); index++ {
		current := index < len(runes) && positionSet[index]
		if current != highlighted || index == len(runes) {
			chunk := string(runes[runStart:index])
			if highlighted {
				result.WriteString(highlightStyle.Render(chunk))
			} else {
				result.WriteString(baseStyle.Render(chunk))
			}
			runStart = index
			highlighted = current
		}
	}
	return result.String()
}

// truncate cuts text to at most maxWidth visible columns, measuring
// with lipgloss so wide characters count correctly.
func truncate(text string, maxWidth int) string {
	if lipgloss.Width(text) <= maxWidth {
		return text
	}
	runes := []rune(text)
	for length := len(runes) - 1; length >= 0; length-- {
		candidate := string(runes[:length])
		if lipgloss.Width(candidate) <= maxWidth {
			return candidate
		}
	}
	return ""
}

// clampPositions drops match positions at or past limit, for text
// that was truncated after matching.
func clampPositions(positions []int, limit int) []int {
	var kept []int
	for _, position := range positions {
		if position < limit {
			kept = append(kept, position)
		}
	}
	return kept
}
