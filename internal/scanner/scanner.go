// Package scanner fans out to all registered venue fetchers and merges
// their pools into a single graph snapshot. A venue that errors or
// times out is excluded with its failure recorded; the scan itself
// never aborts on a single venue.
package scanner

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/fetcher"
)

// Config holds scan timing and concurrency bounds.
type Config struct {
	// FetchTimeout bounds each individual venue fetch.
	FetchTimeout time.Duration
	// ScanTimeout bounds the scan as a whole.
	ScanTimeout time.Duration
	// Concurrency caps simultaneous venue fetches.
	Concurrency int
}

// DefaultConfig returns production scan bounds.
func DefaultConfig() Config {
	return Config{
		FetchTimeout: 5 * time.Second,
		ScanTimeout:  15 * time.Second,
		Concurrency:  4,
	}
}

// VenueStatus records one venue's outcome for a scan.
type VenueStatus struct {
	Venue     domain.Venue  // reporting venue
	OK        bool          // whether the fetch succeeded
	PoolCount int           // pools contributed
	Error     string        // failure detail, empty on success
	Duration  time.Duration // fetch wall time
}

// Result is a merged snapshot plus per-venue statuses.
type Result struct {
	Pools     []*domain.Pool               // deduplicated pool set
	Statuses  map[domain.Venue]VenueStatus // one entry per registered venue
	ScannedAt int64                        // scan completion, Unix milliseconds
}

// Succeeded returns how many venues fetched successfully.
func (r *Result) Succeeded() int {
	n := 0
	for _, s := range r.Statuses {
		if s.OK {
			n++
		}
	}
	return n
}

// PoolByID returns the pool with the given id, or nil.
func (r *Result) PoolByID(id string) *domain.Pool {
	for _, p := range r.Pools {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Scanner merges fetcher output into consistent snapshots.
type Scanner struct {
	registry *fetcher.Registry
	config   Config
	logger   *log.Logger
}

// New creates a Scanner over the given fetcher registry.
func New(registry *fetcher.Registry, config Config, logger *log.Logger) *Scanner {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConfig().Concurrency
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultConfig().FetchTimeout
	}
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = DefaultConfig().ScanTimeout
	}
	return &Scanner{
		registry: registry,
		config:   config,
		logger:   logger,
	}
}

// Scan fetches all venues concurrently and merges the results.
// Each venue fetch runs under its own deadline; a slow or failing
// venue never cancels its siblings. Duplicate pool ids resolve to the
// most recently observed snapshot.
func (s *Scanner) Scan(ctx context.Context) *Result {
	ctx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	fetchers := s.registry.All()

	result := &Result{
		Statuses: make(map[domain.Venue]VenueStatus, len(fetchers)),
	}

	var mu sync.Mutex
	byID := make(map[string]*domain.Pool)

	g := &errgroup.Group{}
	g.SetLimit(s.config.Concurrency)

	for _, f := range fetchers {
		f := f
		g.Go(func() error {
			fetchCtx, fetchCancel := context.WithTimeout(ctx, s.config.FetchTimeout)
			defer fetchCancel()

			started := time.Now()
			pools, err := f.FetchPools(fetchCtx)
			elapsed := time.Since(started)

			status := VenueStatus{
				Venue:    f.Venue(),
				Duration: elapsed,
			}

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				status.Error = err.Error()
				result.Statuses[f.Venue()] = status
				s.logger.Printf("venue %s failed after %s: %v", f.Venue(), elapsed.Round(time.Millisecond), err)
				// Failures are recorded, never propagated: returning an
				// error here would cancel sibling fetches.
				return nil
			}

			status.OK = true
			status.PoolCount = len(pools)
			result.Statuses[f.Venue()] = status

			for _, p := range pools {
				existing, ok := byID[p.ID]
				if ok && existing.UpdatedAt >= p.UpdatedAt {
					continue
				}
				byID[p.ID] = p
			}
			return nil
		})
	}

	g.Wait()

	result.Pools = make([]*domain.Pool, 0, len(byID))
	for _, p := range byID {
		result.Pools = append(result.Pools, p)
	}
	// Deterministic output ordering
	sort.Slice(result.Pools, func(i, j int) bool {
		return result.Pools[i].ID < result.Pools[j].ID
	})

	result.ScannedAt = time.Now().UnixMilli()
	return result
}
