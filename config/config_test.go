package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test-config.yaml")

	content := `
environment: staging
gateway:
  listen_addr: ":9999"
  base_domain: "roselite.test"
dht:
  bootstrap_peers:
    - "peer-a.example.com"
  attach_retries: 5
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, ":9999", cfg.Gateway.ListenAddr)
	assert.Equal(t, "roselite.test", cfg.Gateway.BaseDomain)
	assert.Equal(t, []string{"peer-a.example.com"}, cfg.DHT.BootstrapPeers)
	assert.Equal(t, 5, cfg.DHT.AttachRetries)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Defaults fill in untouched sections.
	assert.Equal(t, 950_000, cfg.Store.MaxRecordBytes)
	assert.Equal(t, 8_000, cfg.Store.ChunkSize)
	assert.True(t, cfg.Health.Enabled)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestSetDefaultsFillsEverything(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.Gateway.ListenAddr)
	assert.Equal(t, 5*time.Minute, cfg.Gateway.CacheTTL)
	assert.Equal(t, DefaultBootstrapPeers, cfg.DHT.BootstrapPeers)
	assert.Equal(t, 30*time.Second, cfg.DHT.AttachTimeout)
	assert.Equal(t, 3, cfg.DHT.AttachRetries)
	assert.Equal(t, 2*time.Second, cfg.DHT.RetryDelay)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, 8081, cfg.Health.Port)
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "roundtrip.yaml")
	jsonPath := filepath.Join(dir, "roundtrip.json")

	cfg := &Config{}
	setDefaults(cfg)
	cfg.Gateway.BaseDomain = "roselite.example"

	require.NoError(t, SaveToFile(cfg, yamlPath))
	require.NoError(t, SaveToFile(cfg, jsonPath))

	reloadedYAML, err := LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "roselite.example", reloadedYAML.Gateway.BaseDomain)

	reloadedJSON, err := LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "roselite.example", reloadedJSON.Gateway.BaseDomain)
}
