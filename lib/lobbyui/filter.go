// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package lobbyui

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"

	"github.com/driftroom/driftroom/lib/tui"
	"github.com/driftroom/driftroom/wire"
)

// FilterModel holds the fuzzy filter state for the lobby list. The
// caller routes keystrokes to HandleRune/HandleBackspace and rebuilds
// its row set through ApplyFuzzy after each change.
type FilterModel struct {
	// Input is the current filter query text.
	Input string

	// Active is true when the filter input has keyboard focus
	// (the user pressed / to start typing).
	Active bool
}

// FilterResult pairs a listing with its match score and the matched
// rune positions, which the renderer highlights. Positions index into
// the room ID and topic respectively.
type FilterResult struct {
	Listing        wire.LobbyListing
	Score          int
	RoomPositions  []int
	TopicPositions []int
}

// ApplyFuzzy filters and ranks listings against the current query. An
// empty query passes everything through in input order with zero
// scores. A listing matches when the query matches its room ID or its
// topic; the better of the two scores ranks it. Ties keep input
// order, which the watcher already sorts by room ID.
func (filter *FilterModel) ApplyFuzzy(listings []wire.LobbyListing, slab *util.Slab) []FilterResult {
	if filter.Input == "" {
		results := make([]FilterResult, len(listings))
		for index, listing := range listings {
			results[index] = FilterResult{Listing: listing}
		}
		return results
	}

	pattern := []rune(filter.Input)
	var results []FilterResult
	for _, listing := range listings {
		roomResult := tui.FuzzyMatch(string(listing.RoomID), pattern, slab)
		topicResult := tui.FuzzyMatch(listing.Topic, pattern, slab)
		if roomResult.Score <= 0 && topicResult.Score <= 0 {
			continue
		}
		result := FilterResult{
			Listing:        listing,
			RoomPositions:  roomResult.Positions,
			TopicPositions: topicResult.Positions,
			Score:          roomResult.Score,
		}
		if topicResult.Score > result.Score {
			result.Score = topicResult.Score
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	return results
}

// HandleRune appends a character to the filter query. Returns true if
// the input changed.
func (filter *FilterModel) HandleRune(character rune) bool {
	filter.Input += string(character)
	return true
}

// HandleBackspace removes the last character from the filter query.
// Returns true if the input changed.
func (filter *FilterModel) HandleBackspace() bool {
	if len(filter.Input) == 0 {
		return false
	}
	runes := []rune(filter.Input)
	filter.Input = string(runes[:len(runes)-1])
	return true
}

// Clear resets the filter query and deactivates it.
func (filter *FilterModel) Clear() {
	filter.Input = ""
	filter.Active = false
}

// View renders the filter bar. When active, shows the query with a
// cursor. When inactive with text, shows the query as a subtle
// indicator. When inactive and empty, returns the empty string.
func (filter *FilterModel) View(theme tui.Theme, width int) string {
	if !filter.Active && filter.Input == "" {
		return ""
	}

	if filter.Active {
		style := lipgloss.NewStyle().
			Foreground(theme.NormalText).
			Width(width)
		cursor := lipgloss.NewStyle().
			Foreground(theme.HeaderForeground).
			Bold(true).
			Render("▎")
		return style.Render(" / " + filter.Input + cursor)
	}

	return lipgloss.NewStyle().
		Foreground(theme.FaintText).
		Width(width).
		Render(" filter: " + filter.Input)
}
