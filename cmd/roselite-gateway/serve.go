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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roselite-project/roselite/config"
	"github.com/roselite-project/roselite/internal/dhtclient"
	"github.com/roselite-project/roselite/internal/dnsresolver"
	"github.com/roselite-project/roselite/internal/gateway"
	"github.com/roselite-project/roselite/internal/logger"
	"github.com/roselite-project/roselite/internal/slugindex"
	"github.com/roselite-project/roselite/internal/slugindex/memory"
	"github.com/roselite-project/roselite/internal/slugindex/postgres"
	"github.com/roselite-project/roselite/internal/store"
	"github.com/roselite-project/roselite/pkg/health"
)

var (
	configPath     string
	listenAddr     string
	gatewayHost    string
	cacheRoot      string
	bootstrapPeers []string
	dbDSN          string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway daemon",
	Long: `Start the roselite gateway daemon: attach to the DHT swarm, bring up the
HTTP gateway that resolves incoming requests by Host header, and expose a
health/metrics endpoint alongside it.`,
	Example: `  # Start with defaults, reading config.yaml if present
  roselite-gateway serve

  # Override the gateway's own host and cache directory
  roselite-gateway serve --gateway-host gateway.example --cache-root /var/lib/roselite/cache`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML or JSON)")
	serveCmd.Flags().StringVar(&listenAddr, "listen-addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringVar(&gatewayHost, "gateway-host", "", "Bare host that serves the welcome page (overrides config)")
	serveCmd.Flags().StringVar(&cacheRoot, "cache-root", "", "On-disk directory for extracted site caches (overrides config)")
	serveCmd.Flags().StringSliceVar(&bootstrapPeers, "bootstrap-peers", nil, "DHT bootstrap peer multiaddrs (overrides config)")
	serveCmd.Flags().StringVar(&dbDSN, "db-dsn", "", "Postgres DSN for the slug index (overrides config, enables Postgres backend)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)

	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			if e.Level == "error" {
				return fmt.Errorf("invalid configuration: %s: %s", e.Field, e.Message)
			}
		}
	}

	log := buildLogger(cfg)

	dhtClient := dhtclient.New(dhtclient.Config{
		BootstrapPeers: cfg.DHT.BootstrapPeers,
		AttachTimeout:  cfg.DHT.AttachTimeout,
		AttachRetries:  cfg.DHT.AttachRetries,
		RetryDelay:     cfg.DHT.RetryDelay,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dhtClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to dht: %w", err)
	}
	defer dhtClient.Disconnect(context.Background())

	var index slugindex.Index
	if cfg.Database.Enabled && cfg.Database.DSN != "" {
		pgIndex, err := postgres.New(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connect to slug index database: %w", err)
		}
		defer pgIndex.Close()
		index = pgIndex
		log.Info("using postgres slug index")
	} else {
		index = memory.New()
		log.Info("using in-memory slug index")
	}

	appStore := store.New(dhtClient, index, log)
	resolver := dnsresolver.New("")
	gw := gateway.New(appStore, resolver, cfg.Gateway.BaseDomain, cfg.Store.CacheDir, cfg.Gateway.VerifyManifestOnServe, log)

	httpServer := &http.Server{
		Addr:              cfg.Gateway.ListenAddr,
		Handler:           gw,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer, err = health.StartHealthServer(cfg.Health.Port, log)
		if err != nil {
			return fmt.Errorf("start health server: %w", err)
		}
		healthServer.Checker().RegisterCheck("dht", dhtClient.HealthCheck)
		healthServer.Checker().RegisterCheck("system", health.SystemCheck)
		if pgIndex, ok := index.(*postgres.Index); ok {
			healthServer.Checker().RegisterCheck("database", pgIndex.HealthCheck)
		}
	}

	go func() {
		log.Info("starting gateway", logger.String("listen_addr", cfg.Gateway.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("gateway server error", logger.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down gateway")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("gateway shutdown error", logger.Error(err))
	}
	if healthServer != nil {
		_ = healthServer.Stop(shutdownCtx)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		config.SubstituteEnvVarsInConfig(cfg)
		return cfg, nil
	}
	return config.Load(config.LoaderOptions{SkipValidation: true})
}

func applyFlagOverrides(cfg *config.Config) {
	if listenAddr != "" {
		cfg.Gateway.ListenAddr = listenAddr
	}
	if gatewayHost != "" {
		cfg.Gateway.BaseDomain = gatewayHost
	}
	if cacheRoot != "" {
		cfg.Store.CacheDir = cacheRoot
	}
	if len(bootstrapPeers) > 0 {
		cfg.DHT.BootstrapPeers = bootstrapPeers
	}
	if dbDSN != "" {
		cfg.Database.Enabled = true
		cfg.Database.DSN = dbDSN
	}
}

func buildLogger(cfg *config.Config) logger.Logger {
	var level logger.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = logger.DebugLevel
	case "warn":
		level = logger.WarnLevel
	case "error":
		level = logger.ErrorLevel
	default:
		level = logger.InfoLevel
	}
	return logger.NewLogger(os.Stdout, level)
}
