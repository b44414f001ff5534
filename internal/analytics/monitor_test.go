package analytics

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
)

var testLogger = log.New(io.Discard, "", 0)

func newTestMonitor(cfg Config) (*Monitor, *time.Time) {
	m := NewMonitor(cfg, testLogger)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	m.nowFunc = func() time.Time { return now }
	return m, &now
}

func observePrice(m *Monitor, now *time.Time, poolID string, price, volume float64) {
	*now = now.Add(time.Second)
	m.Observe([]*domain.Pool{{
		ID:        poolID,
		Price:     price,
		Volume24h: volume,
		ReserveA:  1000,
		ReserveB:  1000 * price,
	}})
}

func TestMonitor_WindowIsBounded(t *testing.T) {
	m, now := newTestMonitor(Config{WindowSize: 5})

	for i := 0; i < 20; i++ {
		observePrice(m, now, "p1", 1.0+float64(i), 100)
	}

	w := m.History("p1")
	require.Len(t, w, 5)
	assert.Equal(t, 16.0, w[0].Price, "oldest samples were evicted")
	assert.Equal(t, 20.0, w[4].Price)
}

func TestMonitor_HistoryReturnsCopy(t *testing.T) {
	m, now := newTestMonitor(DefaultConfig())
	observePrice(m, now, "p1", 1.0, 100)

	w := m.History("p1")
	w[0].Price = 999

	assert.Equal(t, 1.0, m.History("p1")[0].Price)
}

func TestPredict_NoHistoryIsFlatZeroConfidence(t *testing.T) {
	m, _ := newTestMonitor(DefaultConfig())

	p := m.Predict("unknown")
	assert.Equal(t, domain.DirectionFlat, p.Direction)
	assert.Zero(t, p.Confidence)
	assert.Zero(t, p.SampleCount)
}

func TestPredict_SingleSampleIsFlatLowConfidence(t *testing.T) {
	m, now := newTestMonitor(DefaultConfig())
	observePrice(m, now, "p1", 1.0, 100)

	p := m.Predict("p1")
	assert.Equal(t, domain.DirectionFlat, p.Direction)
	assert.LessOrEqual(t, p.Confidence, 0.1)
	assert.Equal(t, 1, p.SampleCount)
}

func TestPredict_TrendDirection(t *testing.T) {
	m, now := newTestMonitor(DefaultConfig())
	for i := 0; i < 30; i++ {
		observePrice(m, now, "up", 100+float64(i), 100)
		observePrice(m, now, "down", 100-float64(i), 100)
	}

	up := m.Predict("up")
	assert.Equal(t, domain.DirectionUp, up.Direction)
	assert.Greater(t, up.ExpectedMovePct, 0.0)
	assert.Greater(t, up.Confidence, 0.4, "a clean linear trend fits well")

	down := m.Predict("down")
	assert.Equal(t, domain.DirectionDown, down.Direction)
	assert.Less(t, down.ExpectedMovePct, 0.0)
}

func TestPredict_Deterministic(t *testing.T) {
	m, now := newTestMonitor(DefaultConfig())
	for i := 0; i < 10; i++ {
		observePrice(m, now, "p1", 100+float64(i%3), 100)
	}

	assert.Equal(t, m.Predict("p1"), m.Predict("p1"))
}

func TestDetectAnomalies_FlagsPriceSpike(t *testing.T) {
	m, now := newTestMonitor(Config{WindowSize: 50, ZThreshold: 3})

	for i := 0; i < 20; i++ {
		observePrice(m, now, "p1", 100+0.1*float64(i%2), 1000)
	}
	observePrice(m, now, "p1", 150, 1000) // 50% jump

	anomalies := m.DetectAnomalies()
	require.NotEmpty(t, anomalies)

	var priceAnomaly *domain.Anomaly
	for i := range anomalies {
		if anomalies[i].Metric == domain.MetricPrice {
			priceAnomaly = &anomalies[i]
		}
	}
	require.NotNil(t, priceAnomaly)
	assert.Equal(t, "p1", priceAnomaly.PoolID)
	assert.Equal(t, 150.0, priceAnomaly.Value)
	assert.Greater(t, priceAnomaly.ZScore, 3.0)
}

func TestDetectAnomalies_QuietOnStableSeries(t *testing.T) {
	m, now := newTestMonitor(Config{WindowSize: 50, ZThreshold: 3})
	for i := 0; i < 20; i++ {
		observePrice(m, now, "p1", 100+0.1*float64(i%2), 1000)
	}

	assert.Empty(t, m.DetectAnomalies())
}

func TestVolatility_HigherForNoisySeries(t *testing.T) {
	m, now := newTestMonitor(DefaultConfig())
	for i := 0; i < 20; i++ {
		observePrice(m, now, "calm", 100+0.01*float64(i%2), 100)
		noisy := 100.0
		if i%2 == 0 {
			noisy = 110
		}
		observePrice(m, now, "noisy", noisy, 100)
	}

	assert.Greater(t, m.Volatility("noisy"), m.Volatility("calm"))
	assert.Zero(t, m.Volatility("unknown"))
}
