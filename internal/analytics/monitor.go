// Package analytics maintains bounded per-pool history windows and
// derives short-horizon predictions, anomaly flags, and volatility
// estimates from them.
package analytics

import (
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
)

// Config tunes the monitor.
type Config struct {
	WindowSize int           // max samples retained per pool
	ZThreshold float64       // anomaly threshold in standard deviations
	Horizon    time.Duration // prediction horizon
}

// DefaultConfig returns default monitor tuning.
func DefaultConfig() Config {
	return Config{
		WindowSize: 120,
		ZThreshold: 3.0,
		Horizon:    60 * time.Second,
	}
}

// Monitor accumulates history points per pool. Windows are bounded:
// appending past WindowSize evicts the oldest sample. Safe for
// concurrent use.
type Monitor struct {
	mu      sync.RWMutex
	config  Config
	history map[string][]domain.HistoryPoint
	logger  *log.Logger
	nowFunc func() time.Time
}

// NewMonitor creates a pool monitor.
func NewMonitor(config Config, logger *log.Logger) *Monitor {
	if config.WindowSize <= 0 {
		config.WindowSize = DefaultConfig().WindowSize
	}
	if config.ZThreshold <= 0 {
		config.ZThreshold = DefaultConfig().ZThreshold
	}
	if config.Horizon <= 0 {
		config.Horizon = DefaultConfig().Horizon
	}
	return &Monitor{
		config:  config,
		history: make(map[string][]domain.HistoryPoint),
		logger:  logger,
		nowFunc: time.Now,
	}
}

// WithClock replaces the monitor's time source. Intended for tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.nowFunc = now
	return m
}

// Observe records one sample per pool from a scan snapshot.
func (m *Monitor) Observe(pools []*domain.Pool) {
	now := m.nowFunc().UnixMilli()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pools {
		m.appendLocked(p.ID, domain.HistoryPoint{
			Timestamp: now,
			Price:     p.Price,
			Volume:    p.Volume24h,
			Liquidity: p.ReserveA + p.ReserveB*safeInverse(p.Price),
		})
	}
}

func (m *Monitor) appendLocked(poolID string, hp domain.HistoryPoint) {
	w := m.history[poolID]
	if len(w) >= m.config.WindowSize {
		copy(w, w[1:])
		w[len(w)-1] = hp
	} else {
		w = append(w, hp)
	}
	m.history[poolID] = w
}

// History returns a copy of the pool's window, oldest first.
func (m *Monitor) History(poolID string) []domain.HistoryPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w := m.history[poolID]
	out := make([]domain.HistoryPoint, len(w))
	copy(out, w)
	return out
}

// TrackedPools returns the ids of all pools with history, sorted.
func (m *Monitor) TrackedPools() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.history))
	for id := range m.history {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Predict fits a least-squares line through the pool's price window and
// projects it over the configured horizon. Fewer than two samples yield
// a flat, low-confidence forecast rather than an error.
func (m *Monitor) Predict(poolID string) *domain.PricePrediction {
	return m.PredictHorizon(poolID, m.config.Horizon)
}

// PredictHorizon is Predict with a per-call projection horizon.
// Non-positive horizons fall back to the configured default.
func (m *Monitor) PredictHorizon(poolID string, horizon time.Duration) *domain.PricePrediction {
	if horizon <= 0 {
		horizon = m.config.Horizon
	}

	w := m.History(poolID)
	horizonSec := int(horizon / time.Second)
	if len(w) < 2 {
		confidence := 0.1
		if len(w) == 0 {
			confidence = 0
		}
		return &domain.PricePrediction{
			PoolID:         poolID,
			HorizonSeconds: horizonSec,
			Direction:      domain.DirectionFlat,
			Confidence:     confidence,
			SampleCount:    len(w),
		}
	}

	slope, r2 := linearFit(w)
	last := w[len(w)-1].Price

	movePct := 0.0
	if last > 0 {
		movePct = slope * horizon.Seconds() / last * 100
	}

	direction := domain.DirectionFlat
	// Below 0.05% projected movement the fit is noise.
	switch {
	case movePct > 0.05:
		direction = domain.DirectionUp
	case movePct < -0.05:
		direction = domain.DirectionDown
	}

	// Confidence grows with fit quality and window depth.
	sizeFactor := float64(len(w)) / float64(m.config.WindowSize)
	if sizeFactor > 1 {
		sizeFactor = 1
	}
	confidence := r2 * (0.5 + 0.5*sizeFactor)

	return &domain.PricePrediction{
		PoolID:          poolID,
		HorizonSeconds:  horizonSec,
		Direction:       direction,
		Confidence:      clamp01(confidence),
		ExpectedMovePct: movePct,
		SampleCount:     len(w),
	}
}

// DetectAnomalies flags the latest sample of each tracked pool whose
// price, volume, or liquidity deviates from its window mean by more
// than the z-score threshold.
func (m *Monitor) DetectAnomalies() []domain.Anomaly {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.history))
	for id := range m.history {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []domain.Anomaly
	for _, id := range ids {
		w := m.history[id]
		if len(w) < 4 {
			continue
		}
		latest := w[len(w)-1]
		out = append(out, m.checkMetric(id, w, latest, domain.MetricPrice)...)
		out = append(out, m.checkMetric(id, w, latest, domain.MetricVolume)...)
		out = append(out, m.checkMetric(id, w, latest, domain.MetricLiquidity)...)
	}

	if len(out) > 0 {
		m.logger.Printf("detected %d anomalies across %d pools", len(out), len(ids))
	}
	return out
}

func (m *Monitor) checkMetric(poolID string, w []domain.HistoryPoint, latest domain.HistoryPoint, metric domain.AnomalyMetric) []domain.Anomaly {
	value := metricValue(latest, metric)

	// Baseline excludes the sample under test.
	base := w[:len(w)-1]
	mean, std := meanStd(base, metric)
	if std == 0 {
		return nil
	}

	z := (value - mean) / std
	if math.Abs(z) < m.config.ZThreshold {
		return nil
	}

	return []domain.Anomaly{{
		PoolID:    poolID,
		Metric:    metric,
		Value:     value,
		Mean:      mean,
		ZScore:    z,
		Timestamp: latest.Timestamp,
	}}
}

// Volatility estimates per-pool price volatility as the standard
// deviation of simple returns over the window. Returns 0 for unknown
// or thin windows; the cache treats that as "calm".
func (m *Monitor) Volatility(poolID string) float64 {
	w := m.History(poolID)
	if len(w) < 3 {
		return 0
	}

	var returns []float64
	for i := 1; i < len(w); i++ {
		prev := w[i-1].Price
		if prev <= 0 {
			continue
		}
		returns = append(returns, w[i].Price/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance)
}

// linearFit returns the least-squares slope (price per second) and the
// coefficient of determination of the window's price series.
func linearFit(w []domain.HistoryPoint) (slope, r2 float64) {
	n := float64(len(w))
	t0 := w[0].Timestamp

	var sumX, sumY, sumXY, sumXX float64
	for _, hp := range w {
		x := float64(hp.Timestamp-t0) / 1000.0
		sumX += x
		sumY += hp.Price
		sumXY += x * hp.Price
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for _, hp := range w {
		x := float64(hp.Timestamp-t0) / 1000.0
		fit := intercept + slope*x
		ssTot += (hp.Price - meanY) * (hp.Price - meanY)
		ssRes += (hp.Price - fit) * (hp.Price - fit)
	}
	if ssTot == 0 {
		// Perfectly flat series: the zero-slope fit is exact.
		return slope, 1
	}
	return slope, 1 - ssRes/ssTot
}

func metricValue(hp domain.HistoryPoint, metric domain.AnomalyMetric) float64 {
	switch metric {
	case domain.MetricVolume:
		return hp.Volume
	case domain.MetricLiquidity:
		return hp.Liquidity
	default:
		return hp.Price
	}
}

func meanStd(w []domain.HistoryPoint, metric domain.AnomalyMetric) (mean, std float64) {
	if len(w) == 0 {
		return 0, 0
	}
	for _, hp := range w {
		mean += metricValue(hp, metric)
	}
	mean /= float64(len(w))

	var variance float64
	for _, hp := range w {
		d := metricValue(hp, metric) - mean
		variance += d * d
	}
	variance /= float64(len(w))
	return mean, math.Sqrt(variance)
}

func safeInverse(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return 1 / v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
