package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"carbon-scribe/verification-engine/internal/config"
	"carbon-scribe/verification-engine/internal/credits"
	"carbon-scribe/verification-engine/internal/documents"
	"carbon-scribe/verification-engine/internal/engine"
	"carbon-scribe/verification-engine/internal/notifications"
	"carbon-scribe/verification-engine/internal/notifications/websocket"
	"carbon-scribe/verification-engine/internal/reports/dashboard"
	"carbon-scribe/verification-engine/internal/tiers"
	"carbon-scribe/verification-engine/internal/trends"
	"carbon-scribe/verification-engine/internal/verification"
	"carbon-scribe/verification-engine/pkg/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	dbURL := cfg.Database.GetDatabaseURL()

	// Ledger tables go through gorm
	gormDB, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get database handle", zap.Error(err))
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqlDB.Close()

	if cfg.Database.AutoMigrate {
		if err := engine.Migrate(gormDB); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	// Dashboard snapshots go through sqlx
	snapshotDB, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		logger.Fatal("Failed to connect snapshot store", zap.Error(err))
	}
	defer snapshotDB.Close()
	if err := dashboard.EnsureSchema(ctx, snapshotDB); err != nil {
		logger.Fatal("Failed to create snapshot schema", zap.Error(err))
	}

	scorer, err := verification.NewScorer(cfg.Scoring.Weights, cfg.Scoring.Thresholds)
	if err != nil {
		logger.Fatal("Invalid scoring configuration", zap.Error(err))
	}
	creditEngine, err := credits.NewEngine(cfg.Scoring.Grades)
	if err != nil {
		logger.Fatal("Invalid grade configuration", zap.Error(err))
	}

	// Evidence archive and SNS events
	var archiveClient storage.S3Client
	publishers := []notifications.Publisher{}
	if cfg.AWS.ArchiveEnabled() || cfg.AWS.EventsEnabled() {
		awsCfg, err := cfg.AWS.LoadSDKConfig(ctx)
		if err != nil {
			logger.Fatal("Failed to load AWS config", zap.Error(err))
		}
		if cfg.AWS.ArchiveEnabled() {
			archiveClient = storage.NewS3Client(awsCfg, storage.S3Options{
				Endpoint:     cfg.AWS.Endpoint,
				UsePathStyle: cfg.AWS.Endpoint != "",
			})
		}
		if cfg.AWS.EventsEnabled() {
			publishers = append(publishers, notifications.NewSNSPublisher(awsCfg, cfg.AWS.EventsTopicARN, cfg.AWS.Endpoint))
		}
	}
	if archiveClient == nil {
		logger.Warn("No evidence bucket configured, archiving extractions in memory")
		archiveClient = storage.NewMemoryS3Client()
	}

	wsManager := websocket.NewManager(logger)
	defer wsManager.Stop()
	publishers = append(publishers, wsManager)

	cache := dashboard.NewSummaryCache(cfg.Cache.SummaryTTL)
	defer cache.Stop()

	service := engine.NewService(engine.Dependencies{
		Repository: engine.NewRepository(gormDB),
		Evaluator:  engine.NewEvaluator(scorer, creditEngine),
		Trends:     trends.NewEngine(cfg.Scoring.TrendDelta),
		Cache:      cache,
		Snapshots:  dashboard.NewSnapshotRepository(snapshotDB),
		Archive:    documents.NewStorageProvider(archiveClient, cfg.AWS.EvidenceBucket),
		Publisher:  notifications.NewMultiPublisher(logger, publishers...),
		Metrics:    engine.NewMetrics(prometheus.DefaultRegisterer),
		Logger:     logger,
	})
	handler := engine.NewHandler(service)

	// Setup Router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+engine.TierHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	{
		handler.RegisterRoutes(api)
	}

	// Realtime subject updates
	router.GET("/ws", func(c *gin.Context) {
		tierName := c.GetHeader(engine.TierHeader)
		if tierName == "" {
			tierName = c.Query("tier")
		}
		tier, err := tiers.Parse(tierName)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !tier.Capabilities().RealtimeUpdates {
			c.JSON(http.StatusForbidden, gin.H{"error": tiers.ErrFeatureNotAvailable.Error()})
			return
		}
		if _, err := wsManager.HandleConnection(c.Writer, c.Request); err != nil {
			logger.Warn("WebSocket upgrade failed", zap.Error(err))
		}
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		state := "healthy"
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			state = "database unavailable"
		}
		c.JSON(status, gin.H{
			"status":      state,
			"connections": wsManager.GetConnectionCount(),
			"timestamp":   time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
