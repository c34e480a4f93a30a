// Package config loads the demo CLI consumer's on-disk configuration:
// which monitor runtime flags to enable and, optionally, which
// interfaces to restrict the subscription to. The core netmon engine
// has no knowledge of this package — it is the "CLI flag parsing /
// config" collaborator that sits outside the core.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
)

// DefaultConfigPath is the default location the CLI reads from.
const DefaultConfigPath = "/etc/ifwatch/config.toml"

// Config is the top-level configuration for the ifwatch CLI.
// It is persisted as a TOML file at DefaultConfigPath.
type Config struct {
	Monitor    MonitorConfig `toml:"monitor"`
	Interfaces []string      `toml:"interfaces,omitempty"`
}

// MonitorConfig selects which netmon.RuntimeFlags the CLI passes to
// netmon.New.
type MonitorConfig struct {
	// StatsForNerds enables periodic statistics logging.
	StatsForNerds bool `toml:"stats_for_nerds,omitempty"`

	// PreferredFamilyV4 restricts address/route tracking to IPv4 only.
	PreferredFamilyV4 bool `toml:"preferred_family_v4,omitempty"`

	// PreferredFamilyV6 restricts address/route tracking to IPv6 only.
	PreferredFamilyV6 bool `toml:"preferred_family_v6,omitempty"`

	// IncludeNonIeee802 widens the default link-type filter to every
	// interface type the kernel reports, not just Ethernet/802.11/
	// loopback.
	IncludeNonIeee802 bool `toml:"include_non_ieee802,omitempty"`

	// NonBlocking sets the route-netlink socket to non-blocking mode.
	NonBlocking bool `toml:"non_blocking,omitempty"`

	// DumpPackets logs every raw rtnetlink message received, at debug
	// level. Noisy; meant for diagnosing a specific session, not left
	// on.
	DumpPackets bool `toml:"dump_packets,omitempty"`
}

// DefaultConfig returns a Config with every flag unset and no
// interface allow-list (watch everything).
func DefaultConfig() *Config {
	return &Config{}
}

// Load reads and decodes path. A missing file is not an error: it
// returns DefaultConfig so the CLI can run unconfigured.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return cfg, nil
}
