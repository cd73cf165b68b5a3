package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wikipulse/wikipulse/internal/metrics"
	"github.com/wikipulse/wikipulse/internal/model"
	"github.com/wikipulse/wikipulse/internal/storage/pagestore"
	"github.com/wikipulse/wikipulse/internal/storage/snapshot"
)

// SnapshotService serializes the live page set into the blob store and
// restores it at startup. Snapshots are a resume optimization, not
// authoritative history; every failure degrades to an empty store.
type SnapshotService struct {
	store        *pagestore.Store
	blobs        *snapshot.Store
	collectionID string
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewSnapshotService creates a new snapshot service.
func NewSnapshotService(store *pagestore.Store, blobs *snapshot.Store, collectionID string, m *metrics.Metrics, logger *zap.Logger) *SnapshotService {
	return &SnapshotService{
		store:        store,
		blobs:        blobs,
		collectionID: collectionID,
		metrics:      m,
		logger:       logger,
	}
}

// Persist writes the current page set under the collection id.
func (s *SnapshotService) Persist(ctx context.Context) error {
	data, err := model.EncodeSnapshot(s.store.Export())
	if err != nil {
		s.metrics.SnapshotFailuresTotal.Inc()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := s.blobs.Put(ctx, s.collectionID, data); err != nil {
		s.metrics.SnapshotFailuresTotal.Inc()
		return err
	}

	s.metrics.SnapshotPersistsTotal.Inc()
	return nil
}

// Restore replaces the page set with the last persisted snapshot. A missing
// or unreadable snapshot leaves the store untouched and returns the error
// so the caller can log and continue empty.
func (s *SnapshotService) Restore(ctx context.Context) error {
	data, err := s.blobs.Get(ctx, s.collectionID)
	if err != nil {
		s.metrics.SnapshotFailuresTotal.Inc()
		return err
	}

	pages, err := model.DecodeSnapshot(data)
	if err != nil {
		s.metrics.SnapshotFailuresTotal.Inc()
		return err
	}

	s.store.Replace(pages)
	s.logger.Info("Restored collection snapshot",
		zap.String("collection_id", s.collectionID),
		zap.Int("pages", len(pages)))
	return nil
}
