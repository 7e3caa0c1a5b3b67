package driven

import (
	"context"

	"github.com/custodia-labs/propfeed/internal/core/domain"
)

// SnapshotArchive keeps the most recent published snapshot per aggregate
// key so a restarted process can serve data before its first run.
type SnapshotArchive interface {
	// SaveSnapshot replaces the archived snapshot for key.
	SaveSnapshot(ctx context.Context, key string, snap *domain.AggregateSnapshot) error

	// LatestSnapshot returns the archived snapshot for key.
	// Returns nil and no error if nothing is archived.
	LatestSnapshot(ctx context.Context, key string) (*domain.AggregateSnapshot, error)
}
