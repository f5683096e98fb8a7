// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driftroom/driftroom/wire"
)

// BrokerKind selects the transport adapter.
type BrokerKind string

const (
	// BrokerNATS uses a NATS server with JetStream for retention.
	BrokerNATS BrokerKind = "nats"
	// BrokerRedis uses Redis pub/sub with keyspace retention.
	BrokerRedis BrokerKind = "redis"
)

// Config is the master configuration for the driftroom CLI.
type Config struct {
	// Broker configures how to reach the pub/sub broker.
	Broker BrokerConfig `yaml:"broker"`

	// Identity configures how this peer presents itself in rooms.
	Identity IdentityConfig `yaml:"identity"`

	// Tuning overrides protocol timing. The defaults match the
	// protocol's reference cadence and rarely need changing.
	Tuning TuningConfig `yaml:"tuning"`
}

// BrokerConfig configures the broker connection.
type BrokerConfig struct {
	// Kind selects the adapter: "nats" or "redis".
	Kind BrokerKind `yaml:"kind"`

	// URL is the broker address, e.g. nats://127.0.0.1:4222 or
	// redis://127.0.0.1:6379.
	URL string `yaml:"url"`

	// Username and Password authenticate to the broker when it
	// requires credentials. ${VAR} patterns are expanded so secrets
	// can stay out of the file.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// IdentityConfig configures the peer identity announced in rooms. The
// client ID is minted fresh per run, not configured: two terminals
// with the same username are two peers.
type IdentityConfig struct {
	// Username is the display name shown to other peers.
	Username string `yaml:"username"`

	// Avatar is an optional short glyph rendered next to the name.
	Avatar string `yaml:"avatar"`

	// Privilege is an optional room privilege code, carried opaquely.
	Privilege string `yaml:"privilege"`
}

// TuningConfig holds protocol timing as duration strings ("5s",
// "1m"). Parsed and checked by Validate; read through Timing.
type TuningConfig struct {
	// Tick is the heartbeat and lobby-refresh period. Default: 5s.
	Tick string `yaml:"tick"`

	// PruneAfter is how long a peer may stay silent before being
	// dropped from the roster. Default: 25s (five ticks).
	PruneAfter string `yaml:"prune_after"`

	// VoteTimeout bounds a vote round. Default: 60s.
	VoteTimeout string `yaml:"vote_timeout"`

	// ListingTTL is the broker-side expiry requested for lobby
	// listings. Default: 15s.
	ListingTTL string `yaml:"listing_ttl"`
}

// Timing is TuningConfig parsed into durations.
type Timing struct {
	Tick        time.Duration
	PruneAfter  time.Duration
	VoteTimeout time.Duration
	ListingTTL  time.Duration
}

// Default returns a configuration that works against a local broker
// with no file at all.
func Default() *Config {
	username := "anonymous"
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	}
	return &Config{
		Broker: BrokerConfig{
			Kind: BrokerNATS,
			URL:  "nats://127.0.0.1:4222",
		},
		Identity: IdentityConfig{
			Username: username,
		},
		Tuning: TuningConfig{
			Tick:        "5s",
			PruneAfter:  "25s",
			VoteTimeout: "60s",
			ListingTTL:  "15s",
		},
	}
}

// Load loads configuration from the file named by DRIFTROOM_CONFIG.
// With the variable unset it returns defaults: driftroom is usable
// with no file against a local broker.
func Load() (*Config, error) {
	path := os.Getenv("DRIFTROOM_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging it
// over defaults. Environment variables do not override config values;
// the only expansion performed is ${VAR} in broker connection fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// broker connection fields.
func (c *Config) expandVariables() {
	c.Broker.URL = expandVars(c.Broker.URL)
	c.Broker.Username = expandVars(c.Broker.Username)
	c.Broker.Password = expandVars(c.Broker.Password)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors, accumulating all of
// them rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error

	switch c.Broker.Kind {
	case BrokerNATS, BrokerRedis:
	default:
		errs = append(errs, fmt.Errorf("broker.kind must be %q or %q, got %q",
			BrokerNATS, BrokerRedis, c.Broker.Kind))
	}
	if c.Broker.URL == "" {
		errs = append(errs, errors.New("broker.url is required"))
	}

	if c.Identity.Username == "" {
		errs = append(errs, errors.New("identity.username is required"))
	}

	timing, err := c.Timing()
	if err != nil {
		errs = append(errs, err)
	} else {
		if timing.PruneAfter <= timing.Tick {
			errs = append(errs, fmt.Errorf("tuning.prune_after (%s) must exceed tuning.tick (%s)",
				timing.PruneAfter, timing.Tick))
		}
		if timing.VoteTimeout <= timing.Tick {
			errs = append(errs, fmt.Errorf("tuning.vote_timeout (%s) must exceed tuning.tick (%s)",
				timing.VoteTimeout, timing.Tick))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Timing parses the tuning section.
func (c *Config) Timing() (Timing, error) {
	var t Timing
	var errs []error
	parse := func(name, s string, dst *time.Duration) {
		d, err := time.ParseDuration(s)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("tuning.%s: %w", name, err))
		case d <= 0:
			errs = append(errs, fmt.Errorf("tuning.%s must be positive, got %s", name, d))
		default:
			*dst = d
		}
	}
	parse("tick", c.Tuning.Tick, &t.Tick)
	parse("prune_after", c.Tuning.PruneAfter, &t.PruneAfter)
	parse("vote_timeout", c.Tuning.VoteTimeout, &t.VoteTimeout)
	parse("listing_ttl", c.Tuning.ListingTTL, &t.ListingTTL)
	if len(errs) > 0 {
		return Timing{}, errors.Join(errs...)
	}
	return t, nil
}

// NewIdentity mints the wire identity for one run: the configured
// presentation plus a fresh client ID.
func (c *Config) NewIdentity() wire.Identity {
	return wire.Identity{
		ClientID:  wire.NewClientID(),
		Username:  c.Identity.Username,
		Avatar:    c.Identity.Avatar,
		Privilege: c.Identity.Privilege,
	}
}
