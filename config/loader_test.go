package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFallsBackThroughCandidates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("environment: custom\n"), 0o644))

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "staging"})
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Environment)
}

func TestLoadWithNoFilesUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "staging"})
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, ":8080", cfg.Gateway.ListenAddr)
}

func TestApplyEnvironmentOverridesTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("gateway:\n  listen_addr: \":1111\"\n"), 0o644))

	t.Setenv("ROSELITE_GATEWAY_LISTEN_ADDR", ":2222")

	cfg, err := Load(LoaderOptions{ConfigDir: dir})
	require.NoError(t, err)
	assert.Equal(t, ":2222", cfg.Gateway.ListenAddr)
}

func TestLoadBackfillsEmptyBootstrapPeers(t *testing.T) {
	dir := t.TempDir()
	content := "dht:\n  bootstrap_peers: []\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte(content), 0o644))

	_, err := Load(LoaderOptions{ConfigDir: dir})
	// setDefaults backfills bootstrap_peers before validation runs, so an
	// explicit empty list is indistinguishable from "unset" and does not
	// fail validation.
	require.NoError(t, err)
}

func TestGatewayIdentityPassword(t *testing.T) {
	t.Setenv("ROSELITE_PASSWORD", "s3cr3t")
	assert.Equal(t, "s3cr3t", GatewayIdentityPassword())
}
