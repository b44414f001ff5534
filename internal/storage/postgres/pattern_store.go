package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage"
)

// PatternStore implements storage.PatternStore using PostgreSQL.
// Capacity is enforced on insert by deleting the oldest rows beyond
// the cap.
type PatternStore struct {
	pool     *Pool
	capacity int
}

// NewPatternStore creates a new PatternStore with the given capacity.
func NewPatternStore(pool *Pool, capacity int) *PatternStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &PatternStore{pool: pool, capacity: capacity}
}

// Compile-time interface check.
var _ storage.PatternStore = (*PatternStore)(nil)

// Insert adds a pattern and returns its assigned id. Oldest rows beyond
// capacity are deleted in the same transaction.
func (s *PatternStore) Insert(ctx context.Context, p *domain.HistoricalPattern) (int64, error) {
	if p == nil {
		return 0, storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin insert pattern: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO historical_patterns (
			route_length, fee_total, token_category, profit_pct,
			success, realized_profit, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err = tx.QueryRow(ctx, query,
		p.Fingerprint.RouteLength,
		p.Fingerprint.FeeTotal,
		string(p.Fingerprint.TokenCategory),
		p.Fingerprint.ProfitPct,
		p.Success,
		p.RealizedProfit,
		p.RecordedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert pattern: %w", err)
	}

	prune := `
		DELETE FROM historical_patterns
		WHERE id NOT IN (
			SELECT id FROM historical_patterns ORDER BY id DESC LIMIT $1
		)
	`
	if _, err := tx.Exec(ctx, prune, s.capacity); err != nil {
		return 0, fmt.Errorf("prune patterns: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit insert pattern: %w", err)
	}
	return id, nil
}

// List retrieves all stored patterns ordered by id ASC.
func (s *PatternStore) List(ctx context.Context) ([]*domain.HistoricalPattern, error) {
	query := `
		SELECT id, route_length, fee_total, token_category, profit_pct,
		       success, realized_profit, recorded_at
		FROM historical_patterns
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// GetByID retrieves a pattern by id. Returns ErrNotFound if not exists.
func (s *PatternStore) GetByID(ctx context.Context, id int64) (*domain.HistoricalPattern, error) {
	query := `
		SELECT id, route_length, fee_total, token_category, profit_pct,
		       success, realized_profit, recorded_at
		FROM historical_patterns
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	p, err := scanPattern(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pattern by id: %w", err)
	}
	return p, nil
}

// Stats aggregates the store contents.
func (s *PatternStore) Stats(ctx context.Context) (*domain.PatternStats, error) {
	query := `
		SELECT count(*),
		       coalesce(avg(CASE WHEN success THEN 1.0 ELSE 0.0 END), 0)
		FROM historical_patterns
	`

	var count int
	var successRate float64
	if err := s.pool.QueryRow(ctx, query).Scan(&count, &successRate); err != nil {
		return nil, fmt.Errorf("pattern stats: %w", err)
	}

	return &domain.PatternStats{
		Count:       count,
		Capacity:    s.capacity,
		SuccessRate: successRate,
	}, nil
}

// scanPattern scans a single row into a HistoricalPattern.
func scanPattern(row pgx.Row) (*domain.HistoricalPattern, error) {
	var p domain.HistoricalPattern
	var category string

	err := row.Scan(
		&p.ID,
		&p.Fingerprint.RouteLength,
		&p.Fingerprint.FeeTotal,
		&category,
		&p.Fingerprint.ProfitPct,
		&p.Success,
		&p.RealizedProfit,
		&p.RecordedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Fingerprint.TokenCategory = domain.TokenCategory(category)
	return &p, nil
}

// scanPatterns scans multiple rows into a slice of HistoricalPattern.
func scanPatterns(rows pgx.Rows) ([]*domain.HistoricalPattern, error) {
	var patterns []*domain.HistoricalPattern

	for rows.Next() {
		var p domain.HistoricalPattern
		var category string

		err := rows.Scan(
			&p.ID,
			&p.Fingerprint.RouteLength,
			&p.Fingerprint.FeeTotal,
			&category,
			&p.Fingerprint.ProfitPct,
			&p.Success,
			&p.RealizedProfit,
			&p.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pattern row: %w", err)
		}

		p.Fingerprint.TokenCategory = domain.TokenCategory(category)
		patterns = append(patterns, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pattern rows: %w", err)
	}

	return patterns, nil
}
