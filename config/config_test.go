package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigident.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
negative_cache_window: 15m
negative_cache_size: 100
concurrency: 8
log_level: debug
trust_roots: /etc/sigident/roots.pem
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.NegativeCacheWindow)
	assert.Equal(t, 100, cfg.NegativeCacheSize)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/etc/sigident/roots.pem", cfg.TrustRoots)
	assert.Equal(t, int64(16<<20), cfg.MaxSignatureSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigident.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 8\n"), 0o644))

	t.Setenv("SIGIDENT_CONCURRENCY", "2")
	t.Setenv("SIGIDENT_DEV_MODE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.True(t, cfg.DevMode)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigident.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 0\nnegative_cache_size: -1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ConcurrencyOpt)
	assert.Contains(t, err.Error(), NegativeCacheSizeOpt)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigident.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: [\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sigident.yaml")

	want := Default()
	want.NegativeCacheWindow = 90 * time.Second
	want.Concurrency = 3
	want.LogFile = "/var/log/sigident.log"
	want.DevMode = true
	require.NoError(t, want.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
