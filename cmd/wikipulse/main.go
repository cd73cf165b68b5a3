package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wikipulse/wikipulse/internal/client"
	"github.com/wikipulse/wikipulse/internal/config"
	"github.com/wikipulse/wikipulse/internal/health"
	"github.com/wikipulse/wikipulse/internal/metrics"
	"github.com/wikipulse/wikipulse/internal/model"
	"github.com/wikipulse/wikipulse/internal/rank"
	"github.com/wikipulse/wikipulse/internal/server"
	"github.com/wikipulse/wikipulse/internal/service"
	"github.com/wikipulse/wikipulse/internal/storage/snapshot"
)

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("project", cfg.Collection.Project),
		zap.String("collection_id", cfg.Collection.CollectionID),
		zap.Int("port", cfg.Server.Port))

	// Open the snapshot store only when snapshots are in use
	var blobs *snapshot.Store
	if cfg.Collection.CollectionID != "" {
		blobs, err = snapshot.Open(cfg.Snapshot.Path, logger)
		if err != nil {
			logger.Fatal("Failed to open snapshot store", zap.Error(err))
		}
		defer blobs.Close()
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	tracker := health.NewTracker(cfg.Stream.StaleAfter)

	// Build and start the collection
	collection := service.NewCollectionService(&service.CollectionConfig{
		Project:       cfg.Collection.Project,
		HomeWiki:      cfg.Collection.HomeWiki,
		MaxLifespan:   cfg.Collection.MaxLifespan,
		MaxInactivity: cfg.Collection.MaxInactivity,
		MinPurgeTime:  cfg.Collection.MinPurgeTime,
		MinSpeed:      cfg.Collection.MinSpeed,
		SweepInterval: cfg.Collection.SweepInterval,
		CollectionID:  cfg.Collection.CollectionID,
		NotifyBuffer:  cfg.Collection.NotifyBuffer,
	}, blobs, m, logger)
	collection.Start(context.Background())

	// Connect to the stream
	ctx, cancel := context.WithCancel(context.Background())
	stream := client.NewStreamClient(&client.StreamConfig{
		URL:              cfg.Stream.URL,
		Project:          cfg.Collection.Project,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout,
		MaxReconnectWait: cfg.Stream.MaxReconnectWait,
	}, collection.HandleEvent, tracker, m, logger)
	stream.Start(ctx)

	// Serve the report API
	reportServer := server.NewReportServer(&server.ReportServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, collection, tracker, logger)
	reportServer.Start()

	// Log the ranking views periodically
	reporterDone := make(chan struct{})
	go runReporter(ctx, collection, logger, reporterDone)

	// Drain notifications so the buffer never fills when nothing else
	// subscribes
	go func() {
		for range collection.Subscribe() {
		}
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	cancel()
	stream.Wait()
	<-reporterDone
	collection.Stop()
	if err := reportServer.Stop(); err != nil {
		logger.Error("Failed to stop report server", zap.Error(err))
	}
}

// runReporter logs the top pages per ranking view every ten seconds.
func runReporter(ctx context.Context, collection *service.CollectionService, logger *zap.Logger, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			pages := collection.GetPages()
			logTop(logger, "most edited", rank.TopBy(pages, rank.ByEdits, 5, now), func(p *model.PageRecord) float64 {
				return p.EditVelocity(now, false, false)
			})
			logTop(logger, "biggest movers", rank.TopBy(pages, rank.ByBytes, 5, now), func(p *model.PageRecord) float64 {
				return float64(p.BytesChanged)
			})
			logTop(logger, "most vibrant", rank.TopBy(pages, rank.ByBias, 5, now), func(p *model.PageRecord) float64 {
				return p.BiasScore()
			})
		}
	}
}

func logTop(logger *zap.Logger, view string, pages []*model.PageRecord, score func(*model.PageRecord) float64) {
	for _, p := range pages {
		logger.Info("Ranking",
			zap.String("view", view),
			zap.String("title", p.Title),
			zap.Float64("score", score(p)))
	}
}

func loadConfig() (*config.Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.LoadConfig(configPath)
}

// initLogger initializes the zap logger
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
