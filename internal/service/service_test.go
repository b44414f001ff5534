package service

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krewdev/SealevelStudio4-sub007/internal/analytics"
	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/fetcher"
	"github.com/krewdev/SealevelStudio4-sub007/internal/graph"
	"github.com/krewdev/SealevelStudio4-sub007/internal/pattern"
	"github.com/krewdev/SealevelStudio4-sub007/internal/poolcache"
	"github.com/krewdev/SealevelStudio4-sub007/internal/risk"
	"github.com/krewdev/SealevelStudio4-sub007/internal/scanner"
	"github.com/krewdev/SealevelStudio4-sub007/internal/signal"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage/memory"
)

var testLogger = log.New(io.Discard, "", 0)

// fakeFetcher serves a mutable pool set and counts fetches.
type fakeFetcher struct {
	mu      sync.Mutex
	venue   domain.Venue
	pools   []*domain.Pool
	fetches int
	err     error
}

func (f *fakeFetcher) Venue() domain.Venue { return f.venue }

func (f *fakeFetcher) FetchPools(context.Context) ([]*domain.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*domain.Pool, len(f.pools))
	for i, p := range f.pools {
		out[i] = p.Clone()
	}
	return out, nil
}

func (f *fakeFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeFetcher) setPools(pools []*domain.Pool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pools = pools
}

func mkPool(id, mintA, mintB string, reserveA, reserveB float64) *domain.Pool {
	p := &domain.Pool{
		ID:        id,
		Venue:     domain.VenueRaydium,
		Address:   id,
		TokenA:    domain.Token{Mint: mintA, Symbol: mintA, Decimals: 9},
		TokenB:    domain.Token{Mint: mintB, Symbol: mintB, Decimals: 9},
		ReserveA:  reserveA,
		ReserveB:  reserveB,
		FeeRate:   0,
		UpdatedAt: time.Now().UnixMilli(),
	}
	p.Price = p.SpotPrice()
	return p
}

// arbPools seeds a two-pool round trip on the same pair: A->B at 2.0 on
// one pool, B->A at 1.0 on the other.
func arbPools() []*domain.Pool {
	return []*domain.Pool{
		mkPool("raydium:rich", "WSOLMINT", "USDCMINT", 100, 200),
		mkPool("raydium:flat", "WSOLMINT", "USDCMINT", 100, 100),
	}
}

func newTestService(t *testing.T, f *fakeFetcher) *Service {
	t.Helper()

	registry := fetcher.NewRegistry()
	registry.Register(f)

	detectCfg := graph.Config{
		MaxHops:        4,
		MinProfitPct:   0.1,
		InputAmount:    1,
		OpportunityTTL: time.Minute,
	}

	prioritizer, err := signal.New(signal.DefaultConfig(), testLogger)
	require.NoError(t, err)

	deps := Deps{
		Scanner:     scanner.New(registry, scanner.DefaultConfig(), testLogger),
		Cache:       poolcache.New(poolcache.DefaultConfig()),
		Simple:      graph.NewSimpleDetector(detectCfg, testLogger),
		Detector:    graph.NewDetector(detectCfg, testLogger),
		Peg:         graph.NewPegScanner(graph.PegConfig{DeviationThreshold: 0.005}, detectCfg, testLogger),
		Analyzer:    risk.New(risk.DefaultConfig(), testLogger),
		Monitor:     analytics.NewMonitor(analytics.DefaultConfig(), testLogger),
		Matcher:     pattern.NewMatcher(memory.NewPatternStore(100), pattern.DefaultConfig(), testLogger),
		Prioritizer: prioritizer,
	}

	cfg := DefaultConfig()
	cfg.StartMints = []string{"WSOLMINT"}
	return New(deps, cfg, testLogger)
}

func TestOpportunities_DetectsSeededArb(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)

	report, err := svc.Opportunities(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, report.Opportunities)
	assert.Equal(t, 2, report.PoolCount)
	assert.False(t, report.FromCache, "first request always scans")

	top := report.Opportunities[0]
	require.NoError(t, top.Validate())
	assert.InDelta(t, 100.0, top.ProfitPct, 1e-6, "2x out, 1x back doubles the input")
}

func TestOpportunities_SecondRequestServedFromCache(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)
	ctx := context.Background()

	_, err := svc.Opportunities(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, f.fetchCount())

	report, err := svc.Opportunities(ctx)
	require.NoError(t, err)
	assert.True(t, report.FromCache)
	assert.Equal(t, 1, f.fetchCount(), "fresh cache entries avoid a rescan")
}

func TestOpportunities_NoVenuesIsError(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, err: context.DeadlineExceeded}
	svc := newTestService(t, f)

	_, err := svc.Opportunities(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestOpportunities_DeduplicatesAcrossDetectors(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)

	report, err := svc.Opportunities(context.Background())
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, o := range report.Opportunities {
		key := ""
		for _, step := range o.Steps {
			key += step.PoolID + "|"
		}
		seen[key]++
	}
	for key, n := range seen {
		assert.Equal(t, 1, n, "route %s reported more than once", key)
	}
}

func TestSignals_RanksDetectedOpportunities(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)

	signals, err := svc.Signals(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, signals)

	for i, s := range signals {
		assert.Equal(t, i+1, s.Rank)
		require.NotNil(t, s.Assessment)
		assert.GreaterOrEqual(t, s.CompositeScore, 0.0)
		assert.LessOrEqual(t, s.CompositeScore, 1.0)
	}
}

func TestSignals_PredictionConfidenceLiftsScore(t *testing.T) {
	ctx := context.Background()

	base := newTestService(t, &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()})
	baseline, err := base.Signals(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, baseline)

	svc := newTestService(t, &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()})
	current := time.Now()
	svc.deps.Monitor.WithClock(func() time.Time { return current })

	// Seed a clean uptrend per pool ending at the live price, so the
	// scan's own sample extends the trend instead of breaking it.
	for i := 1; i <= 30; i++ {
		current = current.Add(time.Second)
		pools := arbPools()
		for _, p := range pools {
			p.Price *= 0.7 + float64(i)*0.01
		}
		svc.deps.Monitor.Observe(pools)
	}

	trending, err := svc.Signals(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, trending)

	start := trending[0].Opportunity.Steps[0].PoolID
	pred := svc.deps.Monitor.Predict(start)
	assert.Equal(t, domain.DirectionUp, pred.Direction)
	assert.Greater(t, pred.Confidence, 0.5, "deep clean trend is a confident forecast")

	assert.Greater(t, trending[0].CompositeScore, baseline[0].CompositeScore,
		"forecast confidence feeds the composite score")
}

func TestRecordOutcome_RoundTrip(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)
	ctx := context.Background()

	report, err := svc.Opportunities(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, report.Opportunities)

	id, err := svc.RecordOutcome(ctx, Outcome{
		OpportunityID:  report.Opportunities[0].ID,
		Success:        true,
		RealizedProfit: 0.9,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	stats, err := svc.PatternStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 1.0, stats.SuccessRate)
}

func TestRecordOutcome_UnknownOpportunity(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)

	_, err := svc.RecordOutcome(context.Background(), Outcome{OpportunityID: "nope"})
	assert.ErrorIs(t, err, ErrUnknownOpportunity)
}

func TestAnalyses_FiltersAndSelects(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)
	ctx := context.Background()

	report, err := svc.Analyses(ctx, AnalysisQuery{})
	require.NoError(t, err)
	require.NotEmpty(t, report.Analyses)
	for _, a := range report.Analyses {
		assert.GreaterOrEqual(t, a.RiskScore, 0.0)
		assert.LessOrEqual(t, a.RiskScore, 1.0)
	}

	id := report.Analyses[0].Opportunity.ID
	single, err := svc.Analyses(ctx, AnalysisQuery{OpportunityID: id})
	require.NoError(t, err)
	require.Len(t, single.Analyses, 1)
	assert.Equal(t, id, single.Analyses[0].Opportunity.ID)

	_, err = svc.Analyses(ctx, AnalysisQuery{OpportunityID: "missing"})
	assert.ErrorIs(t, err, ErrUnknownOpportunity)

	empty, err := svc.Analyses(ctx, AnalysisQuery{MinProfitPct: 1000})
	require.NoError(t, err)
	assert.Empty(t, empty.Analyses)
}

func TestGraph_ReportsStats(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)

	report, err := svc.Graph(context.Background(), GraphQuery{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Stats.Nodes)
	assert.Equal(t, 4, report.Stats.Edges)
	assert.Equal(t, 2, report.Stats.Pools)
	assert.Equal(t, 2, report.PoolCount)
	assert.NotEmpty(t, report.Opportunities)
	require.Contains(t, report.Venues, domain.VenueRaydium)
	assert.True(t, report.Venues[domain.VenueRaydium].OK)
}

func TestGraph_QueryOverrides(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)
	ctx := context.Background()

	report, err := svc.Graph(ctx, GraphQuery{StartMint: "USDCMINT", MaxHops: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, report.Opportunities, "round trip exists from either side of the pair")

	empty, err := svc.Graph(ctx, GraphQuery{MinProfitPct: 1000})
	require.NoError(t, err)
	assert.Empty(t, empty.Opportunities)

	_, err = svc.Graph(ctx, GraphQuery{StartMint: "UNKNOWNMINT"})
	assert.ErrorIs(t, err, graph.ErrUnknownToken)
}

func TestMonitor_FiltersPools(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)
	ctx := context.Background()

	report, err := svc.Monitor(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, report.Pools, 2)

	filtered, err := svc.Monitor(ctx, []string{"raydium:flat"})
	require.NoError(t, err)
	require.Len(t, filtered.Pools, 1)
	assert.Equal(t, "raydium:flat", filtered.Pools[0].ID)

	_, err = svc.Monitor(ctx, []string{"unknown:pool"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPredict_UsesObservedHistory(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)
	ctx := context.Background()

	report, err := svc.Predict(ctx, []string{"raydium:rich"}, 2*time.Minute)
	require.NoError(t, err)
	require.Len(t, report.Predictions, 1)
	p := report.Predictions[0]
	assert.Equal(t, "raydium:rich", p.PoolID)
	assert.Equal(t, domain.DirectionFlat, p.Direction, "one sample cannot trend")
	assert.Equal(t, 120, p.HorizonSeconds)

	all, err := svc.Predict(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all.Predictions, 2, "no filter predicts every tracked pool")

	_, err = svc.Predict(ctx, []string{"unknown:pool"}, 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHealth_LifecycleStates(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)

	assert.Equal(t, "starting", svc.Health().Status)

	_, err := svc.Opportunities(context.Background())
	require.NoError(t, err)

	h := svc.Health()
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 2, h.TrackedPools)
	assert.Positive(t, h.LastScanAt)
}

func TestCarryOver_ThreadsVolumeAndTrades(t *testing.T) {
	f := &fakeFetcher{venue: domain.VenueRaydium, pools: arbPools()}
	svc := newTestService(t, f)
	ctx := context.Background()

	_, err := svc.Opportunities(ctx)
	require.NoError(t, err)

	// Shift the rich pool's price and force a rescan by expiring the
	// cache through a fresh snapshot request after mutation.
	moved := arbPools()
	moved[0].ReserveA = 90
	moved[0].ReserveB = 210
	moved[0].Price = moved[0].SpotPrice()
	moved[0].UpdatedAt = time.Now().UnixMilli() + 1
	f.setPools(moved)

	snap, err := svc.rescan(ctx)
	require.NoError(t, err)

	p := snap.ByID["raydium:rich"]
	require.NotNil(t, p)
	require.NotEmpty(t, p.RecentTrades, "price move synthesizes a trade")
	assert.Positive(t, p.Volume24h)
	assert.InDelta(t, p.Price, p.RecentTrades[len(p.RecentTrades)-1].Price, 1e-12)
}
