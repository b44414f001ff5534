package storage

import (
	"context"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
)

// PatternStore persists historical opportunity patterns. Stores are
// append-only with a fixed capacity: inserting past capacity evicts the
// oldest entries. Ids are assigned by the store and increase
// monotonically.
type PatternStore interface {
	// Insert adds a pattern and returns its assigned id.
	Insert(ctx context.Context, p *domain.HistoricalPattern) (int64, error)

	// List retrieves all stored patterns ordered by id ASC.
	List(ctx context.Context) ([]*domain.HistoricalPattern, error)

	// GetByID retrieves a pattern by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.HistoricalPattern, error)

	// Stats aggregates the store contents.
	Stats(ctx context.Context) (*domain.PatternStats, error)
}

// OpportunityArchive appends flattened opportunity records for offline
// analysis. Best-effort: the request path never blocks on it.
type OpportunityArchive interface {
	// InsertBulk appends records in one batch.
	InsertBulk(ctx context.Context, records []*domain.OpportunityRecord) error

	// GetByTimeRange retrieves records created within [start, end]
	// (inclusive, Unix milliseconds), ordered by creation time ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.OpportunityRecord, error)
}
