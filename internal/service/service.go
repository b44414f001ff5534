// Package service orchestrates the request pipeline: snapshot
// acquisition through the cache, cycle detection, risk scoring,
// pattern matching, and signal ranking.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/krewdev/SealevelStudio4-sub007/internal/analytics"
	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/graph"
	"github.com/krewdev/SealevelStudio4-sub007/internal/observability"
	"github.com/krewdev/SealevelStudio4-sub007/internal/pattern"
	"github.com/krewdev/SealevelStudio4-sub007/internal/poolcache"
	"github.com/krewdev/SealevelStudio4-sub007/internal/risk"
	"github.com/krewdev/SealevelStudio4-sub007/internal/scanner"
	"github.com/krewdev/SealevelStudio4-sub007/internal/signal"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage"
)

// Service errors.
var (
	// ErrNoSnapshot is returned when no venue produced pools and the
	// cache holds nothing usable.
	ErrNoSnapshot = errors.New("no pool snapshot available")

	// ErrUnknownOpportunity is returned when an outcome references an
	// opportunity the service no longer tracks.
	ErrUnknownOpportunity = errors.New("unknown opportunity")
)

// Config tunes the service.
type Config struct {
	// StartMints are the tokens bounded cycle search runs from.
	StartMints []string
	// RiskSignals carries the operator-supplied congestion and
	// competition inputs.
	RiskSignals risk.Signals
	// RecentOpCap bounds the index of opportunities kept for outcome
	// recording.
	RecentOpCap int
	// ArchiveTimeout bounds each background archive write.
	ArchiveTimeout time.Duration
}

// DefaultConfig returns default service tuning.
func DefaultConfig() Config {
	return Config{
		StartMints:     []string{domain.MintWSOL, domain.MintUSDC},
		RecentOpCap:    512,
		ArchiveTimeout: 5 * time.Second,
	}
}

// Deps are the service's collaborators. Archive may be nil; everything
// else is required.
type Deps struct {
	Scanner     *scanner.Scanner
	Cache       *poolcache.Cache
	Simple      *graph.SimpleDetector
	Detector    *graph.Detector
	Peg         *graph.PegScanner
	Analyzer    *risk.Analyzer
	Monitor     *analytics.Monitor
	Matcher     *pattern.Matcher
	Prioritizer *signal.Prioritizer
	Archive     storage.OpportunityArchive
}

// Service runs the detection pipeline on demand. Safe for concurrent
// use.
type Service struct {
	deps   Deps
	config Config
	logger *log.Logger

	mu           sync.RWMutex
	knownIDs     []string
	lastPools    map[string]*domain.Pool
	lastStatuses map[domain.Venue]scanner.VenueStatus
	lastScanAt   int64
	recentOps    map[string]*domain.Opportunity
	recentOrder  []string

	nowFunc func() time.Time
}

// New creates the service.
func New(deps Deps, config Config, logger *log.Logger) *Service {
	if config.RecentOpCap <= 0 {
		config.RecentOpCap = DefaultConfig().RecentOpCap
	}
	if config.ArchiveTimeout <= 0 {
		config.ArchiveTimeout = DefaultConfig().ArchiveTimeout
	}
	if len(config.StartMints) == 0 {
		config.StartMints = DefaultConfig().StartMints
	}
	return &Service{
		deps:      deps,
		config:    config,
		logger:    logger,
		lastPools: make(map[string]*domain.Pool),
		recentOps: make(map[string]*domain.Opportunity),
		nowFunc:   time.Now,
	}
}

// Snapshot is a consistent pool set with its provenance.
type Snapshot struct {
	Pools     []*domain.Pool
	ByID      map[string]*domain.Pool
	FromCache bool
	ScannedAt int64
}

// snapshot serves pools from the cache when every known pool is fresh,
// falling back to a full venue scan otherwise.
func (s *Service) snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	ids := s.knownIDs
	scannedAt := s.lastScanAt
	s.mu.RUnlock()

	if len(ids) > 0 {
		pools := make([]*domain.Pool, 0, len(ids))
		allFresh := true
		for _, id := range ids {
			p, ok := s.deps.Cache.Get(id)
			if !ok {
				allFresh = false
				break
			}
			pools = append(pools, p)
		}
		if allFresh {
			s.syncCacheMetrics()
			return &Snapshot{Pools: pools, ByID: indexPools(pools), FromCache: true, ScannedAt: scannedAt}, nil
		}
	}

	return s.rescan(ctx)
}

// rescan runs a full venue scan, threads forward per-pool trade
// history, feeds the monitor, and refills the cache with
// volatility-adaptive TTLs.
func (s *Service) rescan(ctx context.Context) (*Snapshot, error) {
	started := s.nowFunc()
	result := s.deps.Scanner.Scan(ctx)
	ok := result.Succeeded() > 0
	observability.RecordScan(ok, time.Since(started).Seconds())

	for venue, status := range result.Statuses {
		if !status.OK {
			observability.RecordVenueError(string(venue))
		}
	}

	if len(result.Pools) == 0 {
		return nil, fmt.Errorf("%w: %d venues failed", ErrNoSnapshot, len(result.Statuses))
	}

	s.carryOver(result.Pools)
	s.deps.Monitor.Observe(result.Pools)

	ids := make([]string, 0, len(result.Pools))
	byID := make(map[string]*domain.Pool, len(result.Pools))
	for _, p := range result.Pools {
		s.deps.Cache.Set(p.ID, p, s.deps.Monitor.Volatility(p.ID))
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	s.mu.Lock()
	s.knownIDs = ids
	s.lastPools = byID
	s.lastStatuses = result.Statuses
	s.lastScanAt = result.ScannedAt
	s.mu.Unlock()

	observability.DefaultMetrics.PoolsObserved.Set(float64(len(result.Pools)))
	if ok {
		observability.DefaultMetrics.LastSuccessfulScan.Set(float64(result.ScannedAt) / 1000)
	}
	s.syncCacheMetrics()

	return &Snapshot{Pools: result.Pools, ByID: byID, FromCache: false, ScannedAt: result.ScannedAt}, nil
}

// carryOver threads volume and the trade ring from the previous
// snapshot into fresh pools. Account state holds no trade history, so
// the service synthesizes one trade per observed price move, sized by
// the reserve delta.
func (s *Service) carryOver(pools []*domain.Pool) {
	s.mu.RLock()
	prev := s.lastPools
	s.mu.RUnlock()

	now := s.nowFunc().UnixMilli()
	for _, p := range pools {
		old := prev[p.ID]
		if old == nil {
			continue
		}
		p.Volume24h = old.Volume24h
		p.RecentTrades = append([]domain.Trade(nil), old.RecentTrades...)

		if old.Price > 0 && p.Price != old.Price {
			size := math.Abs(p.ReserveA - old.ReserveA)
			p.RecordTrade(domain.Trade{Price: p.Price, Size: size, Timestamp: now})
			p.Volume24h += size * p.Price
		}
	}
}

func (s *Service) syncCacheMetrics() {
	stats := s.deps.Cache.Stats()
	m := observability.DefaultMetrics
	m.CacheHits.Set(float64(stats.Hits))
	m.CacheMisses.Set(float64(stats.Misses))
	m.CacheEvictions.Set(float64(stats.Evictions))
	m.CacheExpirations.Set(float64(stats.Expirations))
	m.CacheSize.Set(float64(stats.Size))
}

func indexPools(pools []*domain.Pool) map[string]*domain.Pool {
	byID := make(map[string]*domain.Pool, len(pools))
	for _, p := range pools {
		byID[p.ID] = p
	}
	return byID
}

// OpportunityReport is the detection result for one request.
type OpportunityReport struct {
	Opportunities []*domain.Opportunity
	PoolCount     int
	FromCache     bool
	GeneratedAt   int64
}

// Opportunities runs all detectors over the current snapshot and
// returns the merged, deduplicated result sorted by profit descending.
func (s *Service) Opportunities(ctx context.Context) (*OpportunityReport, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ops := s.detect(snap)

	return &OpportunityReport{
		Opportunities: ops,
		PoolCount:     len(snap.Pools),
		FromCache:     snap.FromCache,
		GeneratedAt:   s.nowFunc().UnixMilli(),
	}, nil
}

// AnalysisQuery filters the analyzed opportunity set.
type AnalysisQuery struct {
	// MinProfitPct drops opportunities below this profit percentage.
	MinProfitPct float64
	// OpportunityID narrows the result to a single opportunity.
	OpportunityID string
}

// AnalysisReport is the risk-scored detection result.
type AnalysisReport struct {
	Analyses    []*domain.RiskAssessment
	PoolCount   int
	FromCache   bool
	GeneratedAt int64
}

// Analyses detects and risk-scores opportunities, ranked by profit
// descending. A non-empty OpportunityID selects that opportunity,
// falling back to the recently-seen index for ids no longer detected.
func (s *Service) Analyses(ctx context.Context, query AnalysisQuery) (*AnalysisReport, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ops := s.detect(snap)

	if query.MinProfitPct > 0 {
		filtered := ops[:0]
		for _, o := range ops {
			if o.ProfitPct >= query.MinProfitPct {
				filtered = append(filtered, o)
			}
		}
		ops = filtered
	}

	if query.OpportunityID != "" {
		var match *domain.Opportunity
		for _, o := range ops {
			if o.ID == query.OpportunityID {
				match = o
				break
			}
		}
		if match == nil {
			s.mu.RLock()
			match = s.recentOps[query.OpportunityID]
			s.mu.RUnlock()
		}
		if match == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOpportunity, query.OpportunityID)
		}
		ops = []*domain.Opportunity{match}
	}

	return &AnalysisReport{
		Analyses:    s.deps.Analyzer.BatchAnalyze(ops, snap.ByID, s.config.RiskSignals),
		PoolCount:   len(snap.Pools),
		FromCache:   snap.FromCache,
		GeneratedAt: s.nowFunc().UnixMilli(),
	}, nil
}

// detect merges simple enumeration, bounded negative-cycle search, and
// the peg scan. Routes found by more than one detector collapse to the
// first finding.
func (s *Service) detect(snap *Snapshot) []*domain.Opportunity {
	g := graph.Build(snap.Pools)

	var ops []*domain.Opportunity
	bySource := make(map[domain.OpportunitySource]int)

	merge := func(found []*domain.Opportunity) {
		for _, o := range found {
			bySource[o.Source]++
			ops = append(ops, o)
		}
	}

	merge(s.deps.Simple.Detect(g))
	for _, mint := range s.config.StartMints {
		found, err := s.deps.Detector.FindCycles(g, mint)
		if err != nil {
			if errors.Is(err, graph.ErrUnknownToken) {
				continue
			}
			s.logger.Printf("cycle search from %s failed: %v", mint, err)
			continue
		}
		merge(found)
	}
	merge(s.deps.Peg.Scan(snap.Pools))

	ops = dedupeRoutes(ops)
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].ProfitPct > ops[j].ProfitPct
	})

	for source, n := range bySource {
		observability.RecordOpportunities(string(source), n)
	}

	s.remember(ops)
	s.archiveAsync(ops)
	return ops
}

// dedupeRoutes drops opportunities sharing a pool-route key, keeping
// the first occurrence.
func dedupeRoutes(ops []*domain.Opportunity) []*domain.Opportunity {
	seen := make(map[string]bool, len(ops))
	out := ops[:0]
	for _, o := range ops {
		ids := make([]string, len(o.Steps))
		for i, step := range o.Steps {
			ids[i] = step.PoolID
		}
		sort.Strings(ids)
		key := strings.Join(ids, "|")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, o)
	}
	return out
}

// remember indexes opportunities for later outcome recording, bounded
// by RecentOpCap.
func (s *Service) remember(ops []*domain.Opportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range ops {
		if _, exists := s.recentOps[o.ID]; exists {
			continue
		}
		s.recentOps[o.ID] = o
		s.recentOrder = append(s.recentOrder, o.ID)
	}
	for len(s.recentOrder) > s.config.RecentOpCap {
		oldest := s.recentOrder[0]
		s.recentOrder = s.recentOrder[1:]
		delete(s.recentOps, oldest)
	}
}

// archiveAsync appends flattened records in the background. Archive
// failures are logged, never surfaced to the request.
func (s *Service) archiveAsync(ops []*domain.Opportunity) {
	if s.deps.Archive == nil || len(ops) == 0 {
		return
	}

	records := make([]*domain.OpportunityRecord, len(ops))
	for i, o := range ops {
		records[i] = o.Record()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ArchiveTimeout)
		defer cancel()

		if err := s.deps.Archive.InsertBulk(ctx, records); err != nil {
			observability.DefaultMetrics.ArchiveErrors.Inc()
			s.logger.Printf("archive write failed: %v", err)
			return
		}
		observability.DefaultMetrics.ArchiveWrites.Inc()
	}()
}

// Signals runs the full pipeline: detect, risk-score, pattern-match,
// and rank.
func (s *Service) Signals(ctx context.Context) ([]*domain.Signal, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ops := s.detect(snap)

	assessments := s.deps.Analyzer.BatchAnalyze(ops, snap.ByID, s.config.RiskSignals)

	inputs := make([]signal.Input, 0, len(assessments))
	for _, a := range assessments {
		fp := pattern.FingerprintOf(a.Opportunity, snap.ByID)
		estimate, _, err := s.deps.Matcher.SuccessEstimate(ctx, fp)
		if err != nil {
			s.logger.Printf("pattern lookup failed for %s: %v", a.Opportunity.ID, err)
			estimate = 0.5
		}
		predConfidence := 0.0
		if steps := a.Opportunity.Steps; len(steps) > 0 {
			predConfidence = s.deps.Monitor.Predict(steps[0].PoolID).Confidence
		}
		inputs = append(inputs, signal.Input{
			Assessment:           a,
			PatternScore:         estimate,
			PredictionConfidence: predConfidence,
		})
	}

	signals := s.deps.Prioritizer.Prioritize(inputs)

	observability.DefaultMetrics.SignalsEmitted.Add(float64(len(signals)))
	if len(signals) > 0 {
		observability.DefaultMetrics.TopSignalScore.Set(signals[0].CompositeScore)
	}
	return signals, nil
}

// GraphQuery overrides cycle-search parameters for one request.
type GraphQuery struct {
	StartMint    string
	MaxHops      int
	MinProfitPct float64
}

// GraphReport summarizes the current pool graph and the cycles found
// in it.
type GraphReport struct {
	Opportunities []*domain.Opportunity
	Stats         graph.Stats
	Venues        map[domain.Venue]scanner.VenueStatus
	PoolCount     int
	FromCache     bool
	ScannedAt     int64
}

// Graph runs cycle search and the peg scan with per-request overrides
// and returns the combined result plus graph statistics. An unknown
// explicit start token surfaces graph.ErrUnknownToken.
func (s *Service) Graph(ctx context.Context, query GraphQuery) (*GraphReport, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	det := s.deps.Detector
	cfg := det.Config()
	if query.MaxHops > 0 {
		cfg.MaxHops = query.MaxHops
	}
	if query.MinProfitPct > 0 {
		cfg.MinProfitPct = query.MinProfitPct
	}
	if cfg != det.Config() {
		det = det.WithConfig(cfg)
	}

	mints := s.config.StartMints
	if query.StartMint != "" {
		mints = []string{query.StartMint}
	}

	g := graph.Build(snap.Pools)
	var ops []*domain.Opportunity
	for _, mint := range mints {
		found, err := det.FindCycles(g, mint)
		if err != nil {
			if errors.Is(err, graph.ErrUnknownToken) {
				if query.StartMint != "" {
					return nil, err
				}
				continue
			}
			s.logger.Printf("cycle search from %s failed: %v", mint, err)
			continue
		}
		ops = append(ops, found...)
	}
	ops = append(ops, s.deps.Peg.Scan(snap.Pools)...)

	ops = dedupeRoutes(ops)
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].ProfitPct > ops[j].ProfitPct
	})
	s.remember(ops)

	s.mu.RLock()
	statuses := s.lastStatuses
	s.mu.RUnlock()

	return &GraphReport{
		Opportunities: ops,
		Stats:         g.Stats(),
		Venues:        statuses,
		PoolCount:     len(snap.Pools),
		FromCache:     snap.FromCache,
		ScannedAt:     snap.ScannedAt,
	}, nil
}

// MonitorReport combines pool snapshots and anomaly detection with
// cache state.
type MonitorReport struct {
	Pools        []*domain.Pool
	FromCache    bool
	Anomalies    []domain.Anomaly
	TrackedPools []string
	CacheStats   poolcache.Stats
	GeneratedAt  int64
}

// Monitor returns current snapshots for the requested pools, or all
// known pools when ids is empty, plus detected anomalies. An unknown
// requested id surfaces storage.ErrNotFound.
func (s *Service) Monitor(ctx context.Context, poolIDs []string) (*MonitorReport, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	pools := snap.Pools
	if len(poolIDs) > 0 {
		pools = make([]*domain.Pool, 0, len(poolIDs))
		for _, id := range poolIDs {
			p, ok := snap.ByID[id]
			if !ok {
				return nil, fmt.Errorf("%w: pool %s", storage.ErrNotFound, id)
			}
			pools = append(pools, p)
		}
	}

	return &MonitorReport{
		Pools:        pools,
		FromCache:    snap.FromCache,
		Anomalies:    s.deps.Monitor.DetectAnomalies(),
		TrackedPools: s.deps.Monitor.TrackedPools(),
		CacheStats:   s.deps.Cache.Stats(),
		GeneratedAt:  s.nowFunc().UnixMilli(),
	}, nil
}

// PredictReport carries per-pool forecasts plus window anomalies.
type PredictReport struct {
	Predictions []*domain.PricePrediction
	Anomalies   []domain.Anomaly
	GeneratedAt int64
}

// Predict forecasts short-horizon price direction for the requested
// pools, or every tracked pool when ids is empty. An unknown explicit
// pool id surfaces storage.ErrNotFound; a zero horizon uses the
// monitor default. Refreshes the snapshot first so cold starts still
// have one sample.
func (s *Service) Predict(ctx context.Context, poolIDs []string, horizon time.Duration) (*PredictReport, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	explicit := len(poolIDs) > 0
	if !explicit {
		poolIDs = s.deps.Monitor.TrackedPools()
	}

	predictions := make([]*domain.PricePrediction, 0, len(poolIDs))
	for _, id := range poolIDs {
		if explicit {
			if _, ok := snap.ByID[id]; !ok {
				return nil, fmt.Errorf("%w: pool %s", storage.ErrNotFound, id)
			}
		}
		predictions = append(predictions, s.deps.Monitor.PredictHorizon(id, horizon))
	}

	return &PredictReport{
		Predictions: predictions,
		Anomalies:   s.deps.Monitor.DetectAnomalies(),
		GeneratedAt: s.nowFunc().UnixMilli(),
	}, nil
}

// Outcome is a realized execution result for a detected opportunity.
type Outcome struct {
	OpportunityID  string
	Success        bool
	RealizedProfit float64
}

// RecordOutcome stores the realized outcome of a previously detected
// opportunity in the pattern repository.
func (s *Service) RecordOutcome(ctx context.Context, outcome Outcome) (int64, error) {
	s.mu.RLock()
	o := s.recentOps[outcome.OpportunityID]
	pools := s.lastPools
	s.mu.RUnlock()

	if o == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownOpportunity, outcome.OpportunityID)
	}

	fp := pattern.FingerprintOf(o, pools)
	id, err := s.deps.Matcher.Record(ctx, fp, outcome.Success, outcome.RealizedProfit)
	if err != nil {
		return 0, err
	}
	observability.DefaultMetrics.PatternsRecorded.Inc()
	return id, nil
}

// InvalidatePool drops a pool's cache entry so the next request
// re-reads it from chain. Fed by the account-change stream.
func (s *Service) InvalidatePool(poolID string) {
	if s.deps.Cache.Invalidate(poolID) {
		s.logger.Printf("invalidated %s after account change", poolID)
	}
}

// PatternStats aggregates the pattern repository.
func (s *Service) PatternStats(ctx context.Context) (*domain.PatternStats, error) {
	return s.deps.Matcher.Stats(ctx)
}

// Health is the liveness report.
type Health struct {
	Status       string
	LastScanAt   int64
	TrackedPools int
	CacheStats   poolcache.Stats
	Venues       map[domain.Venue]scanner.VenueStatus
}

// Health reports service liveness without touching the chain.
func (s *Service) Health() *Health {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := "ok"
	if s.lastScanAt == 0 {
		status = "starting"
	}
	for _, vs := range s.lastStatuses {
		if !vs.OK {
			status = "degraded"
			break
		}
	}

	return &Health{
		Status:       status,
		LastScanAt:   s.lastScanAt,
		TrackedPools: len(s.knownIDs),
		CacheStats:   s.deps.Cache.Stats(),
		Venues:       s.lastStatuses,
	}
}
