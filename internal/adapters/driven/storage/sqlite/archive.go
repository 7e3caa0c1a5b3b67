package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
)

// snapshotArchive implements driven.SnapshotArchive.
type snapshotArchive struct {
	store *Store
}

var _ driven.SnapshotArchive = (*snapshotArchive)(nil)

// SaveSnapshot replaces the archived snapshot for key.
func (s *snapshotArchive) SaveSnapshot(ctx context.Context, key string, snap *domain.AggregateSnapshot) error {
	if key == "" || snap == nil {
		return domain.ErrInvalidInput
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO snapshots (cache_key, run_id, fetched_at, records, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			run_id = excluded.run_id,
			fetched_at = excluded.fetched_at,
			records = excluded.records,
			payload = excluded.payload
	`, key, snap.SourceMeta.RunID, snap.FetchedAt.UTC().Format(timeLayout), len(snap.Records), string(payload))
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the archived snapshot for key, or nil.
func (s *snapshotArchive) LatestSnapshot(ctx context.Context, key string) (*domain.AggregateSnapshot, error) {
	var payload string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT payload FROM snapshots WHERE cache_key = ?", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}

	var snap domain.AggregateSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("unmarshalling snapshot: %w", err)
	}
	if snap.Records == nil {
		snap.Records = []domain.CanonicalRecord{}
	}
	return &snap, nil
}
