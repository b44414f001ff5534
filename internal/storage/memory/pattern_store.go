package memory

import (
	"context"
	"sync"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage"
)

// DefaultPatternCapacity bounds the in-memory pattern store.
const DefaultPatternCapacity = 1000

// PatternStore is an in-memory implementation of storage.PatternStore.
type PatternStore struct {
	mu       sync.RWMutex
	capacity int
	nextID   int64
	data     []*domain.HistoricalPattern // ordered by id ASC
}

// NewPatternStore creates an in-memory pattern store. A non-positive
// capacity falls back to DefaultPatternCapacity.
func NewPatternStore(capacity int) *PatternStore {
	if capacity <= 0 {
		capacity = DefaultPatternCapacity
	}
	return &PatternStore{
		capacity: capacity,
		nextID:   1,
	}
}

// Compile-time interface check.
var _ storage.PatternStore = (*PatternStore)(nil)

// Insert adds a pattern, evicting the oldest entry when at capacity.
func (s *PatternStore) Insert(_ context.Context, p *domain.HistoricalPattern) (int64, error) {
	if p == nil {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	cp := *p
	cp.ID = s.nextID
	s.nextID++

	if len(s.data) >= s.capacity {
		copy(s.data, s.data[1:])
		s.data[len(s.data)-1] = &cp
	} else {
		s.data = append(s.data, &cp)
	}
	return cp.ID, nil
}

// List retrieves all stored patterns ordered by id ASC.
func (s *PatternStore) List(_ context.Context) ([]*domain.HistoricalPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.HistoricalPattern, len(s.data))
	for i, p := range s.data {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

// GetByID retrieves a pattern by id. Returns ErrNotFound if not exists.
func (s *PatternStore) GetByID(_ context.Context, id int64) (*domain.HistoricalPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.data {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// Stats aggregates the store contents.
func (s *PatternStore) Stats(_ context.Context) (*domain.PatternStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.PatternStats{
		Count:    len(s.data),
		Capacity: s.capacity,
	}
	if len(s.data) == 0 {
		return stats, nil
	}

	successes := 0
	for _, p := range s.data {
		if p.Success {
			successes++
		}
	}
	stats.SuccessRate = float64(successes) / float64(len(s.data))
	return stats, nil
}
