package clickhouse

import (
	"context"
	"fmt"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage"
)

// OpportunityArchive implements storage.OpportunityArchive using
// ClickHouse. MergeTree does not enforce uniqueness; duplicate ids are
// tolerated and collapsed by downstream queries if needed.
type OpportunityArchive struct {
	conn *Conn
}

// NewOpportunityArchive creates a new OpportunityArchive.
func NewOpportunityArchive(conn *Conn) *OpportunityArchive {
	return &OpportunityArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.OpportunityArchive = (*OpportunityArchive)(nil)

// InsertBulk appends records in one batch.
func (s *OpportunityArchive) InsertBulk(ctx context.Context, records []*domain.OpportunityRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO opportunity_archive (
			id, source, start_token, hops, input_amount,
			profit, profit_pct, confidence, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.ID, string(r.Source), r.StartToken, uint8(r.Hops), r.InputAmount,
			r.Profit, r.ProfitPct, r.Confidence, uint64(r.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves records created within [start, end]
// (inclusive), ordered by creation time ASC.
func (s *OpportunityArchive) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.OpportunityRecord, error) {
	query := `
		SELECT id, source, start_token, hops, input_amount,
		       profit, profit_pct, confidence, created_at
		FROM opportunity_archive
		WHERE created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	var records []*domain.OpportunityRecord
	for rows.Next() {
		var r domain.OpportunityRecord
		var source string
		var hops uint8
		var createdAt uint64

		err := rows.Scan(
			&r.ID, &source, &r.StartToken, &hops, &r.InputAmount,
			&r.Profit, &r.ProfitPct, &r.Confidence, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}

		r.Source = domain.OpportunitySource(source)
		r.Hops = int(hops)
		r.CreatedAt = int64(createdAt)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}

	return records, nil
}
