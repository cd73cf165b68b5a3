// Package snapshot provides the key->blob store that collection snapshots
// persist to between restarts. Blobs are opaque to this package; integrity
// is guarded with a CRC32 checksum column.
package snapshot

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/wikipulse/wikipulse/internal/errors"
	"github.com/wikipulse/wikipulse/internal/util"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	blob       BLOB NOT NULL,
	crc        INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);`

// Production-safe pragmas applied via EXEC so they work regardless of
// driver DSN handling.
var pragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA busy_timeout = 10000;",
	"PRAGMA synchronous = NORMAL;",
}

// Store is an sqlite-backed blob store keyed by collection id.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the snapshot database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot db: %w", err)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Put upserts a blob under the given key.
func (s *Store) Put(ctx context.Context, key string, blob []byte) error {
	crc := util.ComputeChecksum(blob)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, blob, crc, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET blob = excluded.blob, crc = excluded.crc, updated_at = excluded.updated_at`,
		key, blob, int64(crc), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrap(errors.ErrCodeSnapshotUnavailable, "failed to persist snapshot", err)
	}
	return nil
}

// Get returns the blob stored under the given key. Missing keys report
// ErrCodeSnapshotNotFound; blobs failing checksum validation report
// ErrCodeSnapshotCorrupted.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	var crc int64
	err := s.db.QueryRowContext(ctx,
		`SELECT blob, crc FROM snapshots WHERE id = ?`, key).Scan(&blob, &crc)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "no snapshot for key "+key)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSnapshotUnavailable, "failed to read snapshot", err)
	}

	if !util.ValidateChecksum(blob, uint32(crc)) {
		return nil, errors.New(errors.ErrCodeSnapshotCorrupted, "snapshot checksum mismatch for key "+key)
	}
	return blob, nil
}

// Delete removes the blob stored under the given key, if any.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, key); err != nil {
		return errors.Wrap(errors.ErrCodeSnapshotUnavailable, "failed to delete snapshot", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
