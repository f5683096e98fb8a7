// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"strings"
)

// MatchFilter reports whether a concrete topic matches a subscription
// filter. Filters are segment sequences separated by "/"; a "+"
// segment matches exactly one topic segment. There is no multi-level
// wildcard: every subscription in this system is either a concrete
// topic or a single-level scan like "lobby/+".
func MatchFilter(filter, topic string) bool {
	filterSegments := strings.Split(filter, "/")
	topicSegments := strings.Split(topic, "/")
	if len(filterSegments) != len(topicSegments) {
		return false
	}
	for i, fs := range filterSegments {
		if fs == "+" {
			continue
		}
		if fs != topicSegments[i] {
			return false
		}
	}
	return true
}

// ValidateFilter rejects filters the broker contract does not support.
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("transport: empty topic filter")
	}
	for _, segment := range strings.Split(filter, "/") {
		if segment == "" {
			return fmt.Errorf("transport: filter %q has an empty segment", filter)
		}
		if segment != "+" && strings.ContainsAny(segment, "+#") {
			return fmt.Errorf("transport: filter %q mixes wildcard and literal characters", filter)
		}
	}
	return nil
}

// ValidateTopic rejects topics that are not publishable: wildcards are
// only meaningful in subscription filters.
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("transport: empty topic")
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("transport: topic %q contains wildcard characters", topic)
	}
	for _, segment := range strings.Split(topic, "/") {
		if segment == "" {
			return fmt.Errorf("transport: topic %q has an empty segment", topic)
		}
	}
	return nil
}
