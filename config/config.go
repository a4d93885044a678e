// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config loads and validates the roselite gateway's runtime
// configuration: listen address, DHT bootstrap, cache storage, optional
// Postgres slug index, logging, metrics and health.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the roselite gateway daemon.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Gateway     *GatewayConfig  `yaml:"gateway" json:"gateway"`
	DHT         *DHTConfig      `yaml:"dht" json:"dht"`
	Store       *StoreConfig    `yaml:"store" json:"store"`
	Database    *DatabaseConfig `yaml:"database" json:"database"`
	Logging     *LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig   `yaml:"health" json:"health"`
}

// GatewayConfig controls the HTTP gateway that serves published apps.
type GatewayConfig struct {
	ListenAddr            string        `yaml:"listen_addr" json:"listen_addr"`
	BaseDomain            string        `yaml:"base_domain" json:"base_domain"`
	CacheTTL              time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	CacheMaxEntries       int           `yaml:"cache_max_entries" json:"cache_max_entries"`
	VerifyManifestOnServe bool          `yaml:"verify_manifest_on_serve" json:"verify_manifest_on_serve"`
}

// DHTConfig controls the Veilid-compatible DHT client.
type DHTConfig struct {
	BootstrapPeers []string      `yaml:"bootstrap_peers" json:"bootstrap_peers"`
	AttachTimeout  time.Duration `yaml:"attach_timeout" json:"attach_timeout"`
	AttachRetries  int           `yaml:"attach_retries" json:"attach_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay" json:"retry_delay"`
	StateDir       string        `yaml:"state_dir" json:"state_dir"`
}

// StoreConfig controls chunked publish/download and the local content
// record cache.
type StoreConfig struct {
	MaxRecordBytes int    `yaml:"max_record_bytes" json:"max_record_bytes"`
	ChunkSize      int    `yaml:"chunk_size" json:"chunk_size"`
	CacheDir       string `yaml:"cache_dir" json:"cache_dir"`
}

// DatabaseConfig controls the optional Postgres-backed slug index.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	DSN     string `yaml:"dsn" json:"dsn"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig represents health check configuration.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile loads a Config from a YAML (or JSON-fallback) file on
// disk.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path, choosing JSON or YAML by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Gateway == nil {
		cfg.Gateway = &GatewayConfig{}
	}
	if cfg.Gateway.ListenAddr == "" {
		cfg.Gateway.ListenAddr = ":8080"
	}
	if cfg.Gateway.CacheTTL == 0 {
		cfg.Gateway.CacheTTL = 5 * time.Minute
	}
	if cfg.Gateway.CacheMaxEntries == 0 {
		cfg.Gateway.CacheMaxEntries = 1000
	}

	if cfg.DHT == nil {
		cfg.DHT = &DHTConfig{}
	}
	if len(cfg.DHT.BootstrapPeers) == 0 {
		cfg.DHT.BootstrapPeers = DefaultBootstrapPeers
	}
	if cfg.DHT.AttachTimeout == 0 {
		cfg.DHT.AttachTimeout = 30 * time.Second
	}
	if cfg.DHT.AttachRetries == 0 {
		cfg.DHT.AttachRetries = 3
	}
	if cfg.DHT.RetryDelay == 0 {
		cfg.DHT.RetryDelay = 2 * time.Second
	}
	if cfg.DHT.StateDir == "" {
		cfg.DHT.StateDir = ".roselite"
	}

	if cfg.Store == nil {
		cfg.Store = &StoreConfig{}
	}
	if cfg.Store.MaxRecordBytes == 0 {
		cfg.Store.MaxRecordBytes = 950_000
	}
	if cfg.Store.ChunkSize == 0 {
		cfg.Store.ChunkSize = 8_000
	}
	if cfg.Store.CacheDir == "" {
		cfg.Store.CacheDir = ".roselite/cache"
	}

	if cfg.Database == nil {
		cfg.Database = &DatabaseConfig{}
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health == nil {
		cfg.Health = &HealthConfig{Enabled: true}
	}
	if cfg.Health.Port == 0 {
		cfg.Health.Port = 8081
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/health"
	}
}

// DefaultBootstrapPeers are the default DHT bootstrap addresses used
// when none are configured, mirroring Veilid's published bootstrap set.
var DefaultBootstrapPeers = []string{
	"bootstrap.veilid.net:5150",
	"bootstrap.dev.veilid.net:5150",
	"178.68.166.46:5158",
	"161.35.164.16:5158",
	"159.89.163.27:5158",
	"159.223.237.84:5158",
}
