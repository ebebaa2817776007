// Command veldtd runs the Veldt NPC behavior simulation daemon: it loads
// world catalogs, registers each world with the scheduler, and ticks them
// until shutdown.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mirelet/veldt/internal/api"
	"github.com/mirelet/veldt/internal/behavior"
	"github.com/mirelet/veldt/internal/catalog"
	"github.com/mirelet/veldt/internal/config"
	"github.com/mirelet/veldt/internal/jobs"
	"github.com/mirelet/veldt/internal/sim"
	"github.com/mirelet/veldt/internal/stats"
	"github.com/mirelet/veldt/internal/store"
	"github.com/mirelet/veldt/internal/tiers"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// ── Storage ───────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── World catalogs ────────────────────────────────────────────────
	worlds, err := catalog.LoadDir(cfg.CatalogDir)
	if err != nil {
		slog.Error("failed to load world catalogs", "dir", cfg.CatalogDir, "error", err)
		os.Exit(1)
	}
	for _, w := range worlds {
		if err := db.UpsertWorld(w); err != nil {
			slog.Error("failed to import world", "world", w.ID, "error", err)
			os.Exit(1)
		}
		slog.Info("world imported", "world", w.ID,
			"routines", len(w.Routines), "activities", len(w.Activities))
	}
	if len(worlds) == 0 {
		slog.Warn("no world catalogs found", "dir", cfg.CatalogDir)
	}

	// ── Registries ────────────────────────────────────────────────────
	registries := behavior.NewRegistries()
	summary := registries.Bootstrap()
	slog.Info("behavior registries bootstrapped",
		"conditions", summary.ConditionsAdded,
		"effects", summary.EffectsAdded,
		"scoring_factors", summary.ScoringAdded)

	// ── Scheduler ─────────────────────────────────────────────────────
	queue := jobs.NewQueue(cfg.JobQueueCap)
	scheduler := sim.NewScheduler(
		db,
		tiers.IntervalClassifier{},
		behavior.NewResolver(registries),
		queue,
		stats.Multi{stats.NewAmbient(cfg.Seed)},
	)
	scheduler.Seed = cfg.Seed

	for _, w := range worlds {
		if _, err := scheduler.RegisterWorld(w.ID); err != nil {
			slog.Error("failed to register world", "world", w.ID, "error", err)
			os.Exit(1)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("VELDT_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Scheduler: scheduler,
		DB:        db,
		Jobs:      queue,
		Port:      cfg.APIPort,
		AdminKey:  cfg.AdminKey,
	}
	apiServer.Start()

	// ── Run ───────────────────────────────────────────────────────────
	runner := sim.NewRunner(scheduler)
	runner.Interval = time.Duration(cfg.TickInterval * float64(time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("veldt daemon running", "worlds", len(worlds), "api_port", cfg.APIPort)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("runner stopped", "error", err)
	}

	// Final checkpoint for every world on shutdown.
	for _, id := range scheduler.RegisteredWorlds() {
		if err := scheduler.UnregisterWorld(id); err != nil {
			slog.Error("final checkpoint failed", "world", id, "error", err)
		}
	}
	slog.Info("veldt daemon stopped")
}
