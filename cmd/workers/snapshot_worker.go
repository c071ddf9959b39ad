package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"carbon-scribe/verification-engine/internal/config"
	"carbon-scribe/verification-engine/internal/engine"
	"carbon-scribe/verification-engine/internal/reports/dashboard"
	"carbon-scribe/verification-engine/internal/tiers"
	"carbon-scribe/verification-engine/internal/trends"
)

// staleRefresher is the part of the dashboard refresher the worker drives
type staleRefresher interface {
	RefreshStale(ctx context.Context) (int, error)
}

// SnapshotWorker refreshes stale dashboard snapshots on a cron schedule
type SnapshotWorker struct {
	refresher staleRefresher
	logger    *zap.Logger
	schedule  string
	timeout   time.Duration
	running   atomic.Bool
}

// NewSnapshotWorker creates a new snapshot worker
func NewSnapshotWorker(refresher staleRefresher, logger *zap.Logger, schedule string, timeout time.Duration) *SnapshotWorker {
	return &SnapshotWorker{
		refresher: refresher,
		logger:    logger,
		schedule:  schedule,
		timeout:   timeout,
	}
}

// Start runs one refresh immediately and then on every tick until ctx is cancelled
func (w *SnapshotWorker) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(w.schedule, func() { w.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid worker schedule %q: %w", w.schedule, err)
	}

	w.logger.Info("Starting snapshot worker", zap.String("schedule", w.schedule))

	w.runOnce(ctx)
	c.Start()

	<-ctx.Done()
	w.logger.Info("Snapshot worker shutting down")
	<-c.Stop().Done()
	return nil
}

// runOnce refreshes one batch; a tick that overlaps a running batch is skipped
func (w *SnapshotWorker) runOnce(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Debug("Previous refresh still running, skipping tick")
		return
	}
	defer w.running.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	refreshed, err := w.refresher.RefreshStale(runCtx)
	if err != nil {
		w.logger.Error("Failed to refresh stale snapshots", zap.Error(err))
		return
	}
	if refreshed > 0 {
		w.logger.Info("Snapshots refreshed",
			zap.Int("count", refreshed),
			zap.Duration("duration", time.Since(start)))
	}
}

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	dbURL := cfg.Database.GetDatabaseURL()

	gormDB, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Connected to database")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dashboard.EnsureSchema(ctx, db); err != nil {
		logger.Fatal("Failed to create snapshot schema", zap.Error(err))
	}

	refresher := dashboard.NewRefresher(
		engine.NewRepository(gormDB),
		dashboard.NewSnapshotRepository(db),
		trends.NewEngine(cfg.Scoring.TrendDelta),
		logger,
		dashboard.RefresherConfig{
			BatchSize:      cfg.Worker.BatchSize,
			MaxConcurrent:  cfg.Worker.MaxConcurrent,
			StaleThreshold: cfg.Worker.StaleThreshold,
			HistoryDepth:   tiers.Enterprise.Capabilities().HistoryDepth,
		},
	)
	worker := NewSnapshotWorker(refresher, logger, cfg.Worker.Schedule, 5*time.Minute)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := worker.Start(ctx); err != nil {
		logger.Error("Worker error", zap.Error(err))
	}

	logger.Info("Snapshot worker stopped")
}
