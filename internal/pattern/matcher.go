// Package pattern matches live opportunities against historical
// outcomes by fingerprint similarity.
package pattern

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage"
)

// Config tunes the matcher.
type Config struct {
	TopK          int     // max matches returned per query
	MinSimilarity float64 // matches below this are dropped
}

// DefaultConfig returns default matcher tuning.
func DefaultConfig() Config {
	return Config{
		TopK:          10,
		MinSimilarity: 0.5,
	}
}

// Similarity dimension weights. Route shape and margin dominate;
// category mismatches are penalized but not disqualifying.
const (
	weightRoute    = 0.30
	weightFee      = 0.20
	weightCategory = 0.20
	weightProfit   = 0.30

	// Normalization scales: differences at or beyond these count as
	// fully dissimilar on their dimension.
	routeScale  = 5.0
	feeScale    = 0.05
	profitScale = 10.0
)

// Matcher queries a pattern store for historical analogues of a live
// fingerprint. Stateless besides configuration; safe for concurrent
// use when the store is.
type Matcher struct {
	store   storage.PatternStore
	config  Config
	logger  *log.Logger
	nowFunc func() time.Time
}

// NewMatcher creates a pattern matcher backed by the given store.
func NewMatcher(store storage.PatternStore, config Config, logger *log.Logger) *Matcher {
	if config.TopK <= 0 {
		config.TopK = DefaultConfig().TopK
	}
	return &Matcher{
		store:   store,
		config:  config,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// FingerprintOf summarizes an opportunity's shape. Fee totals are read
// from the pool set; synthetic redemption legs contribute no fee.
func FingerprintOf(o *domain.Opportunity, pools map[string]*domain.Pool) domain.Fingerprint {
	var feeTotal float64
	for _, step := range o.Steps {
		if p := pools[step.PoolID]; p != nil {
			feeTotal += p.FeeRate
		}
	}
	return domain.Fingerprint{
		RouteLength:   o.Hops(),
		FeeTotal:      feeTotal,
		TokenCategory: domain.Categorize(o.StartToken()),
		ProfitPct:     o.ProfitPct,
	}
}

// Record stores the realized outcome of an executed opportunity.
func (m *Matcher) Record(ctx context.Context, fp domain.Fingerprint, success bool, realizedProfit float64) (int64, error) {
	id, err := m.store.Insert(ctx, &domain.HistoricalPattern{
		Fingerprint:    fp,
		Success:        success,
		RealizedProfit: realizedProfit,
		RecordedAt:     m.nowFunc().UnixMilli(),
	})
	if err != nil {
		return 0, fmt.Errorf("record pattern: %w", err)
	}
	return id, nil
}

// FindMatches returns stored patterns most similar to the query
// fingerprint, sorted by similarity descending. Ties break on newer
// entries first.
func (m *Matcher) FindMatches(ctx context.Context, fp domain.Fingerprint) ([]domain.PatternMatch, error) {
	stored, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}

	var matches []domain.PatternMatch
	for _, p := range stored {
		sim := Similarity(fp, p.Fingerprint)
		if sim < m.config.MinSimilarity {
			continue
		}
		matches = append(matches, domain.PatternMatch{Pattern: *p, Similarity: sim})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Pattern.ID > matches[j].Pattern.ID
	})

	if len(matches) > m.config.TopK {
		matches = matches[:m.config.TopK]
	}
	return matches, nil
}

// SuccessEstimate returns the similarity-weighted success rate of the
// best matches, and the match count it was computed from. Zero matches
// yield a neutral 0.5.
func (m *Matcher) SuccessEstimate(ctx context.Context, fp domain.Fingerprint) (float64, int, error) {
	matches, err := m.FindMatches(ctx, fp)
	if err != nil {
		return 0, 0, err
	}
	if len(matches) == 0 {
		return 0.5, 0, nil
	}

	var weighted, total float64
	for _, match := range matches {
		total += match.Similarity
		if match.Pattern.Success {
			weighted += match.Similarity
		}
	}
	if total == 0 {
		return 0.5, len(matches), nil
	}
	return weighted / total, len(matches), nil
}

// Stats aggregates the backing store.
func (m *Matcher) Stats(ctx context.Context) (*domain.PatternStats, error) {
	return m.store.Stats(ctx)
}

// Similarity is a bounded metric over fingerprints: 1 for identical
// vectors, falling off with per-dimension normalized distance.
func Similarity(a, b domain.Fingerprint) float64 {
	routeDist := math.Min(1, math.Abs(float64(a.RouteLength-b.RouteLength))/routeScale)
	feeDist := math.Min(1, math.Abs(a.FeeTotal-b.FeeTotal)/feeScale)
	profitDist := math.Min(1, math.Abs(a.ProfitPct-b.ProfitPct)/profitScale)

	categoryDist := 0.0
	if a.TokenCategory != b.TokenCategory {
		categoryDist = 1
	}

	dist := weightRoute*routeDist +
		weightFee*feeDist +
		weightCategory*categoryDist +
		weightProfit*profitDist
	return 1 - dist
}
