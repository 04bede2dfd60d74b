// Kestrel - Electrical inspection intelligence that deploys in 60 seconds.
// Copyright (c) 2026 openinspect
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/openinspect/kestrel/internal/api"
	"github.com/openinspect/kestrel/internal/bus"
	"github.com/openinspect/kestrel/internal/cache"
	"github.com/openinspect/kestrel/internal/domain"
	"github.com/openinspect/kestrel/internal/overrides"
	"github.com/openinspect/kestrel/internal/repository"
	"github.com/openinspect/kestrel/internal/resolve"
	"github.com/openinspect/kestrel/internal/snapshot"
	"github.com/openinspect/kestrel/internal/stats"
	"github.com/openinspect/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	// Rule table paths can be pointed elsewhere via environment
	if v := os.Getenv("KESTREL_RULES_PATH"); v != "" {
		cfg.Snapshot.RulesPath = v
	}
	if v := os.Getenv("KESTREL_CATALOG_PATH"); v != "" {
		cfg.Snapshot.CatalogPath = v
	}
	if v := os.Getenv("KESTREL_MATRIX_PATH"); v != "" {
		cfg.Snapshot.MatrixPath = v
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Load the rule tables into the config snapshot store
	store, err := snapshot.NewStore(cfg.Snapshot, logger)
	if err != nil {
		slog.Error("failed to load rule tables", "error", err)
		os.Exit(1)
	}
	snap := store.Current()
	slog.Info("config snapshot loaded",
		"version", snap.Version,
		"rules", len(snap.Rules),
		"findings", len(snap.Findings),
		"diagnostics", len(store.Diagnostics()),
	)

	// Initialize Resolver
	resolver := resolve.NewResolver(store, repo)
	slog.Info("resolver initialized", "engine", resolve.EngineVersion)

	// Initialize Override Service
	overrideSvc := overrides.NewService(repo, busImpl, logger)

	// Initialize Activation Stats
	statsSvc := stats.NewService(cacheImpl, 24*time.Hour)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, resolver, statsSvc, cacheImpl)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("KESTREL_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		workerCfg := worker.Config{
			TenantIDs: tenantIDs,
			PlanTTL:   time.Hour,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, store, resolver, overrideSvc, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                 ║")
	fmt.Println("  ║   Electrical Inspection Intelligence    ║")
	fmt.Println("  ║      Every finding, weighed.            ║")
	fmt.Println("  ╚═════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /resolve                        - Resolve intake answers into findings")
	fmt.Println("    POST /intake                         - Queue an intake for async processing")
	fmt.Println("    GET  /resolutions/{id}               - Get a persisted resolution")
	fmt.Println("    GET  /findings                       - List the finding catalog")
	fmt.Println("    GET  /findings/{id}                  - Finding detail with override state")
	fmt.Println("    POST /findings/{id}/override         - Save a draft dimension override")
	fmt.Println("    POST /findings/{id}/override/reset   - Reset a finding to its seed")
	fmt.Println("    POST /findings/dimensions/publish    - Publish a draft override")
	fmt.Println("    POST /findings/dimensions/rollback   - Roll back to a prior version")
	fmt.Println("    POST /selection/resolve              - Resolve report profile and modules")
	fmt.Println("    POST /plans/build                    - Assemble a report plan")
	fmt.Println("    POST /config/reload                  - Hot-reload the rule tables")
	fmt.Println("    GET  /health                         - Health check")
	fmt.Println()
}
