// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"sort"
	"strings"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult holds the outcome of matching a pattern against a text:
// the fzf score (higher is better, zero means no match) and the rune
// indices of the matched characters in ascending order.
type FuzzyResult struct {
	Score     int
	Positions []int
}

// FuzzyMatch runs fzf's V2 fuzzy algorithm against text. Matching is
// case-insensitive: both the text and the pattern are lowercased
// before scoring, so callers can pass raw user input directly.
//
// The slab is fzf's scratch allocation arena. Passing nil is valid
// (the algorithm falls back to per-call allocation); callers matching
// many candidates in a loop should allocate one slab with
// [util.MakeSlab] and reuse it across calls.
//
// An empty pattern or a failed match returns a zero FuzzyResult.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{}
	}

	lowered := make([]rune, len(pattern))
	for i, r := range pattern {
		lowered[i] = unicode.ToLower(r)
	}
	chars := util.ToChars([]byte(strings.ToLower(text)))

	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Start < 0 {
		return FuzzyResult{}
	}

	var matched []int
	if positions != nil {
		matched = *positions
		sort.Ints(matched)
	}
	return FuzzyResult{Score: result.Score, Positions: matched}
}
