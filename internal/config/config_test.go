package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, "rpm", cfg.Pool.Disttype)
	assert.True(t, cfg.Pool.PromoteEpoch)
	assert.Equal(t, 8<<20, cfg.Page.CapacityBytes)
}

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solv.toml")
	content := []byte(`
[pool]
disttype = "apk"
promote_epoch = false

[writer]
flags = ["no_storage_solvable", "bogus_future_flag"]

[page]
capacity_bytes = 65536
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "apk", cfg.Pool.Disttype)
	assert.False(t, cfg.Pool.PromoteEpoch)
	assert.Equal(t, 65536, cfg.Page.CapacityBytes)
}

func TestWriterFlagBitsIgnoresUnknownNames(t *testing.T) {
	w := Writer{Flags: []string{"legacy", "keep_type_deleted", "nonsense"}}
	bits := w.WriterFlagBits()
	assert.Equal(t, uint32(1<<0|1<<2), bits)
}
