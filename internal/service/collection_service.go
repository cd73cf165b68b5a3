package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wikipulse/wikipulse/internal/metrics"
	"github.com/wikipulse/wikipulse/internal/model"
	"github.com/wikipulse/wikipulse/internal/storage/pagestore"
	"github.com/wikipulse/wikipulse/internal/storage/snapshot"
)

// CollectionConfig holds collection configuration. Zero values fall back to
// the defaults below.
type CollectionConfig struct {
	Project       string        // wiki filter, "*" admits all
	HomeWiki      string        // wiki keyed by bare title
	MaxLifespan   time.Duration // default 24h
	MaxInactivity time.Duration // default 60m
	MinPurgeTime  time.Duration // default 5m
	MinSpeed      float64       // default 3 edits/minute
	SweepInterval time.Duration // default 20s
	CollectionID  string        // persistence key; empty disables snapshots
	NotifyBuffer  int           // default 128
}

func (c *CollectionConfig) setDefaults() {
	if c.Project == "" {
		c.Project = "en.wikipedia.org"
	}
	if c.HomeWiki == "" {
		c.HomeWiki = pagestore.DefaultHomeWiki
	}
	if c.MaxLifespan == 0 {
		c.MaxLifespan = 24 * time.Hour
	}
	if c.MaxInactivity == 0 {
		c.MaxInactivity = 60 * time.Minute
	}
	if c.MinPurgeTime == 0 {
		c.MinPurgeTime = 5 * time.Minute
	}
	if c.MinSpeed == 0 {
		c.MinSpeed = 3
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 20 * time.Second
	}
	if c.NotifyBuffer == 0 {
		c.NotifyBuffer = 128
	}
}

// EditNotification is delivered once per successfully applied non-control
// edit. Page is the post-mutation record.
type EditNotification struct {
	Page       *model.PageRecord
	Collection *CollectionService
}

// CollectionService is the composition root: it owns the page store, wires
// classification output into aggregation, owns the sweeper timer, and
// exposes the public read/write API plus the edit-notification channel.
type CollectionService struct {
	config      *CollectionConfig
	store       *pagestore.Store
	aggregation *AggregationService
	sweeper     *SweeperService
	snapshots   *SnapshotService
	metrics     *metrics.Metrics
	logger      *zap.Logger

	notifyCh  chan EditNotification
	notifyMu  sync.RWMutex
	stopped   bool
	closeOnce sync.Once
}

// NewCollectionService creates and wires a collection. blobs may be nil;
// snapshots are enabled only when both blobs and a collection id are set.
func NewCollectionService(cfg *CollectionConfig, blobs *snapshot.Store, m *metrics.Metrics, logger *zap.Logger) *CollectionService {
	cfg.setDefaults()

	store := pagestore.New(cfg.HomeWiki, logger)

	c := &CollectionService{
		config:   cfg,
		store:    store,
		metrics:  m,
		logger:   logger,
		notifyCh: make(chan EditNotification, cfg.NotifyBuffer),
	}

	if blobs != nil && cfg.CollectionID != "" {
		c.snapshots = NewSnapshotService(store, blobs, cfg.CollectionID, m, logger)
	}

	c.aggregation = NewAggregationService(store, cfg.Project, m, logger)
	c.aggregation.SetNotifyFunc(c.emit)

	c.sweeper = NewSweeperService(&SweeperConfig{
		Interval:      cfg.SweepInterval,
		MaxLifespan:   cfg.MaxLifespan,
		MaxInactivity: cfg.MaxInactivity,
		MinPurgeTime:  cfg.MinPurgeTime,
		MinSpeed:      cfg.MinSpeed,
	}, store, c.snapshots, m, logger)

	return c
}

// Start restores the last snapshot (when configured) and launches the
// sweeper. A failed restore is logged and the collection starts empty.
func (c *CollectionService) Start(ctx context.Context) {
	if c.snapshots != nil {
		if err := c.snapshots.Restore(ctx); err != nil {
			c.logger.Warn("Starting with empty collection", zap.Error(err))
		}
	}
	c.sweeper.Start()
	c.logger.Info("Collection started",
		zap.String("project", c.config.Project),
		zap.String("collection_id", c.config.CollectionID))
}

// Stop halts the sweeper and closes the notification channel. Events
// arriving after Stop are still aggregated but no longer notified.
func (c *CollectionService) Stop() {
	c.sweeper.Stop()
	c.closeOnce.Do(func() {
		c.notifyMu.Lock()
		c.stopped = true
		close(c.notifyCh)
		c.notifyMu.Unlock()
	})
	c.logger.Info("Collection stopped")
}

// HandleEvent is the ingest entry point the stream transport calls, one
// event at a time.
func (c *CollectionService) HandleEvent(ev *model.RecentChange) {
	c.aggregation.HandleEvent(ev)
}

// Subscribe returns the edit-notification channel. The channel is closed by
// Stop.
func (c *CollectionService) Subscribe() <-chan EditNotification {
	return c.notifyCh
}

// GetPage returns the record for the identity, creating a fresh zeroed
// record if absent.
func (c *CollectionService) GetPage(title, wiki string) *model.PageRecord {
	return c.store.GetOrCreate(title, wiki)
}

// GetPages returns a snapshot of every tracked page.
func (c *CollectionService) GetPages() []*model.PageRecord {
	return c.store.ListAll()
}

// MarkSafe exempts the identity from the speed and inactivity eviction
// checks; passing unsafe toggles the exemption back off.
func (c *CollectionService) MarkSafe(id string, unsafe bool) {
	c.store.MarkSafe(id, unsafe)
}

// Drop removes the identity from the collection.
func (c *CollectionService) Drop(title, wiki string) {
	c.store.Drop(title, wiki)
}

// Protect marks the identity as protected if it is tracked.
func (c *CollectionService) Protect(title, wiki string) {
	c.store.Protect(title, wiki)
}

// Len returns the number of tracked pages.
func (c *CollectionService) Len() int {
	return c.store.Len()
}

// emit delivers a notification without blocking the aggregation path. A
// full buffer or an already-stopped collection drops the notification and
// counts it.
func (c *CollectionService) emit(page *model.PageRecord) {
	c.notifyMu.RLock()
	defer c.notifyMu.RUnlock()

	if c.stopped {
		c.metrics.NotificationsDroppedTotal.Inc()
		return
	}

	select {
	case c.notifyCh <- EditNotification{Page: page, Collection: c}:
		c.metrics.NotificationsSentTotal.Inc()
	default:
		c.metrics.NotificationsDroppedTotal.Inc()
	}
}
