package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weng-chenghui/pulsive"
)

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.CoreCount)
	assert.Equal(t, uint64(1), cfg.GlobalSeed)
	assert.Equal(t, ResolutionPreferLowestCore, cfg.Resolution)
	assert.Equal(t, 256, cfg.RingBufferCapacity)
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulsived.yaml")
	contents := `
core_count: 4
global_seed: 42
resolution: last_write_wins
listen_addr: ":7777"
script_dir: ./scripts
storage_path: ./data.db
journal_max_entries: 10
journal_max_snapshots: 2
ring_buffer_capacity: 16
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.CoreCount)
	assert.Equal(t, uint64(42), cfg.GlobalSeed)
	assert.Equal(t, Resolution("last_write_wins"), cfg.Resolution)
	assert.Equal(t, ":7777", cfg.ListenAddr)
	assert.Equal(t, "./scripts", cfg.ScriptDir)
	assert.Equal(t, "./data.db", cfg.StoragePath)
	assert.Equal(t, 10, cfg.JournalMaxEntries)
	assert.Equal(t, 2, cfg.JournalMaxSnapshots)
	assert.Equal(t, 16, cfg.RingBufferCapacity)
}

func TestLoad_MalformedFileIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("core_count: [this is not valid: yaml"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_HubConfigConverts(t *testing.T) {
	cfg := Config{CoreCount: 2, GlobalSeed: 9, Resolution: ResolutionAbort}
	hc := cfg.HubConfig()
	assert.Equal(t, 2, hc.CoreCount)
	assert.Equal(t, uint64(9), hc.GlobalSeed)
	assert.Equal(t, pulsive.Abort, hc.Resolution)
}

func TestConfig_HubConfigClampsCoreCount(t *testing.T) {
	cfg := Config{CoreCount: 0, Resolution: ResolutionPreferLowestCore}
	hc := cfg.HubConfig()
	assert.Equal(t, 1, hc.CoreCount, "WithCoreCount clamps below-1 values up to 1")
}

func TestConfig_DumpRoundTrips(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	data, err := cfg.Dump()
	require.NoError(t, err)
	assert.Contains(t, string(data), "core_count: 1")
}
