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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/driftlab/skyfeed/internal/api"
	"github.com/driftlab/skyfeed/internal/cache"
	"github.com/driftlab/skyfeed/internal/db"
	"github.com/driftlab/skyfeed/internal/feed"
	"github.com/driftlab/skyfeed/internal/stats"
	"github.com/driftlab/skyfeed/pkg/config"
	"github.com/driftlab/skyfeed/pkg/logging"
	"github.com/driftlab/skyfeed/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Skyfeed API Server")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Initialize Redis cache
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	repo := db.NewRepository(database.DB)
	posts := db.NewPostRepository(repo)
	statsRepo := db.NewStatsRepository(repo)

	// Register feeds
	registry := feed.NewRegistry()
	welcome := registerFeeds(registry, &cfg.Feeds, posts)

	engine := feed.NewEngine(registry, redisCache, cfg.Server.FeedTimeout)
	recorder := stats.NewRecorder(statsRepo, cfg.Server.StatsBuffer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go recorder.Run(ctx)
	for uri, refresher := range registry.Refreshers() {
		go feed.RunRefreshLoop(ctx, uri, refresher, cfg.Feeds.SnapshotInterval)
	}
	go welcome.RunSweeper(ctx, cfg.Feeds.WelcomeTTL)

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	apiRouter := api.NewRouter(&cfg.Server, engine, recorder, api.GatewayVerifier{})
	apiRouter.SetupRoutes(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			zap.String("address", srv.Addr),
			zap.Strings("feeds", engine.URIs()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// registerFeeds binds every configured algorithm to its generator uri and
// returns the welcome feed so main can run its sweeper.
func registerFeeds(registry *feed.Registry, cfg *config.FeedsConfig, posts *db.PostRepository) *feed.Welcome {
	uri := func(rkey string) string {
		return feed.GeneratorURI(cfg.PublisherDID, rkey)
	}

	registry.Register(uri("recent"), feed.NewRecency(posts, db.PostFilter{Lang: cfg.Lang}))
	registry.Register(uri("needs-alt"), feed.NewRecency(posts, db.PostFilter{MissingAlt: true}))
	if cfg.Tag != "" {
		registry.Register(uri("topic"), feed.NewRecency(posts, db.PostFilter{TagContains: cfg.Tag}))
	}
	if authors := splitList(cfg.Authors); len(authors) > 0 {
		registry.Register(uri("team"), feed.NewRecency(posts, db.PostFilter{Authors: authors}))
	}

	registry.Register(uri("hot"), feed.NewHot(posts, cfg.Gravity, cfg.HotCandidates, splitList(cfg.BannedTerms)))

	snapshotFilter := db.PostFilter{Authors: splitList(cfg.SnapshotAuthors)}
	registry.Register(uri("spotlight"), feed.NewSnapshot(posts, snapshotFilter, cfg.SnapshotSize))

	welcome := feed.NewWelcome(splitList(cfg.WelcomePosts), splitList(cfg.WelcomeRepeatPosts), cfg.WelcomeTTL)
	registry.Register(uri("welcome"), welcome)

	return welcome
}

// splitList parses a comma-separated config value, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
