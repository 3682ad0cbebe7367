// Package config loads pulsived's process-level configuration: the
// HubConfig execution model plus everything the CLI entrypoint needs
// to wire script loading, storage, and the optional host-bridge/
// network listener (§6, §A.3). Values are bound with
// github.com/spf13/viper against a gopkg.in/yaml.v3 struct tag set,
// following cklxx-elephant.ai's viper+yaml.v3 combination: defaults
// are registered before any file is read, so an empty path yields the
// defaults; a path naming a missing or malformed file is an error.
package config

import (
	"fmt"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/weng-chenghui/pulsive"
)

// Resolution names the yaml/CLI spelling of a pulsive.ResolutionPolicy.
type Resolution string

const (
	ResolutionAbort            Resolution = "abort"
	ResolutionLastWriteWins    Resolution = "last_write_wins"
	ResolutionPreferLowestCore Resolution = "prefer_lowest_core"
)

func (r Resolution) toPolicy() pulsive.ResolutionPolicy {
	switch r {
	case ResolutionAbort:
		return pulsive.Abort
	case ResolutionLastWriteWins:
		return pulsive.LastWriteWins
	default:
		return pulsive.PreferLowestCore
	}
}

// Config is the full process configuration a pulsived invocation reads
// before constructing its Hub.
type Config struct {
	// CoreCount is the number of worker cores per TickSyncGroup.
	CoreCount int `yaml:"core_count" mapstructure:"core_count"`
	// GlobalSeed seeds every Core's per-tick Rng (§4.6).
	GlobalSeed uint64 `yaml:"global_seed" mapstructure:"global_seed"`
	// Resolution is the conflict-resolution policy a Hub applies.
	Resolution Resolution `yaml:"resolution" mapstructure:"resolution"`

	// ListenAddr is the address the optional network listener binds,
	// e.g. for netcode.AcceptWS. Empty disables the listener.
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
	// ScriptDir holds the resource/event/entity_type script files a
	// Loader reads at startup (§6).
	ScriptDir string `yaml:"script_dir" mapstructure:"script_dir"`
	// StoragePath is the buntdb file a storage.Store opens. Empty runs
	// in-memory only.
	StoragePath string `yaml:"storage_path" mapstructure:"storage_path"`
	// JournalMaxEntries bounds how many journal.Entry records are
	// retained before the oldest are evicted.
	JournalMaxEntries int `yaml:"journal_max_entries" mapstructure:"journal_max_entries"`
	// JournalMaxSnapshots bounds how many periodic Model snapshots the
	// journal retains for replay seeking.
	JournalMaxSnapshots int `yaml:"journal_max_snapshots" mapstructure:"journal_max_snapshots"`
	// RingBufferCapacity sizes the RingBuffer StateHistory a Hub or
	// netcode.Predictor keeps for rollback (§4.7).
	RingBufferCapacity int `yaml:"ring_buffer_capacity" mapstructure:"ring_buffer_capacity"`
}

// HubConfig converts the loaded configuration into the engine's
// pulsive.HubConfig.
func (c Config) HubConfig() pulsive.HubConfig {
	return pulsive.HubConfig{
		CoreCount:  pulsive.WithCoreCount(c.CoreCount),
		GlobalSeed: c.GlobalSeed,
		Resolution: c.Resolution.toPolicy(),
	}
}

// defaults registers every Config field's zero-value-avoiding default,
// applied before the config file (if any) is read, so that a run with
// no config file at all still produces a usable Config (§A.3).
func defaults(v *viper.Viper) {
	v.SetDefault("core_count", 1)
	v.SetDefault("global_seed", uint64(1))
	v.SetDefault("resolution", string(ResolutionPreferLowestCore))
	v.SetDefault("listen_addr", "")
	v.SetDefault("script_dir", "")
	v.SetDefault("storage_path", "")
	v.SetDefault("journal_max_entries", 4096)
	v.SetDefault("journal_max_snapshots", 64)
	v.SetDefault("ring_buffer_capacity", 256)
}

// Load builds a Config from the file at path, falling back to defaults
// for anything the file doesn't set. An empty path is not an error:
// Load returns the registered defaults untouched. A path that doesn't
// exist, or that fails to parse, is an error — the caller (cmd/pulsived)
// maps it to the non-zero "config parse error" exit code (§6).
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Dump renders the effective configuration back out as yaml, for a
// "config show" style diagnostic dump — the same yaml.v3 round-trip
// shape internal/script uses for its own Definitions.
func (c Config) Dump() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: encode: %w", err)
	}
	return data, nil
}
