package signal

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

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestPrioritizer(t *testing.T, cfg Config) *Prioritizer {
	t.Helper()
	p, err := New(cfg, testLogger)
	require.NoError(t, err)
	p.nowFunc = func() time.Time { return testNow }
	return p
}

func mkInput(id string, profitPct, confidence, execProb, riskScore, patternScore float64, expiresIn time.Duration) Input {
	o := &domain.Opportunity{
		ID:          id,
		Source:      domain.SourceGraph,
		Steps:       []domain.Step{{PoolID: "p1", TokenIn: "A", TokenOut: "A"}},
		InputAmount: 1,
		Profit:      profitPct / 100,
		ProfitPct:   profitPct,
		Confidence:  confidence,
		CreatedAt:   testNow.UnixMilli(),
		ExpiresAt:   testNow.Add(expiresIn).UnixMilli(),
	}
	return Input{
		Assessment: &domain.RiskAssessment{
			Opportunity:          o,
			RiskScore:            riskScore,
			ExecutionProbability: execProb,
			CompetitionLevel:     domain.CompetitionLow,
		},
		PatternScore: patternScore,
	}
}

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())

	bad := DefaultWeights()
	bad.Profit = 0.5
	assert.ErrorIs(t, bad.Validate(), ErrBadWeights)

	negative := DefaultWeights()
	negative.Profit = -0.1
	negative.Confidence = 0.5
	assert.ErrorIs(t, negative.Validate(), ErrBadWeights)
}

func TestNew_RejectsBadWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Profit = 0.9

	_, err := New(cfg, testLogger)
	assert.ErrorIs(t, err, ErrBadWeights)
}

func TestPrioritize_OrdersByCompositeScore(t *testing.T) {
	p := newTestPrioritizer(t, DefaultConfig())

	signals := p.Prioritize([]Input{
		mkInput("weak", 0.2, 0.3, 0.2, 0.8, 0.3, time.Minute),
		mkInput("strong", 4.0, 0.9, 0.9, 0.1, 0.9, time.Minute),
		mkInput("middling", 1.0, 0.6, 0.5, 0.4, 0.5, time.Minute),
	})

	require.Len(t, signals, 3)
	assert.Equal(t, "strong", signals[0].Opportunity.ID)
	assert.Equal(t, "weak", signals[2].Opportunity.ID)
	for i, s := range signals {
		assert.Equal(t, i+1, s.Rank)
		assert.GreaterOrEqual(t, s.CompositeScore, 0.0)
		assert.LessOrEqual(t, s.CompositeScore, 1.0)
	}
}

func TestPrioritize_TiesKeepDetectionOrder(t *testing.T) {
	p := newTestPrioritizer(t, DefaultConfig())

	signals := p.Prioritize([]Input{
		mkInput("first", 1.0, 0.5, 0.5, 0.5, 0.5, time.Minute),
		mkInput("second", 1.0, 0.5, 0.5, 0.5, 0.5, time.Minute),
	})

	require.Len(t, signals, 2)
	assert.Equal(t, signals[0].CompositeScore, signals[1].CompositeScore)
	assert.Equal(t, "first", signals[0].Opportunity.ID)
}

func TestPrioritize_PredictionConfidenceRaisesScore(t *testing.T) {
	p := newTestPrioritizer(t, DefaultConfig())

	plain := mkInput("plain", 1.0, 0.5, 0.5, 0.5, 0.5, time.Minute)
	forecast := mkInput("forecast", 1.0, 0.5, 0.5, 0.5, 0.5, time.Minute)
	forecast.PredictionConfidence = 0.8

	signals := p.Prioritize([]Input{plain, forecast})
	require.Len(t, signals, 2)

	assert.Equal(t, "forecast", signals[0].Opportunity.ID)
	delta := signals[0].CompositeScore - signals[1].CompositeScore
	assert.InDelta(t, DefaultWeights().Prediction*0.8, delta, 1e-9)
}

func TestPrioritize_SkipsNilEntries(t *testing.T) {
	p := newTestPrioritizer(t, DefaultConfig())

	signals := p.Prioritize([]Input{
		{Assessment: nil},
		mkInput("ok", 1.0, 0.5, 0.5, 0.5, 0.5, time.Minute),
	})

	require.Len(t, signals, 1)
	assert.Equal(t, "ok", signals[0].Opportunity.ID)
}

func TestTimeSensitivity_Thresholds(t *testing.T) {
	p := newTestPrioritizer(t, DefaultConfig())

	cases := []struct {
		expiresIn time.Duration
		want      domain.TimeSensitivity
	}{
		{5 * time.Second, domain.SensitivityCritical},
		{20 * time.Second, domain.SensitivityHigh},
		{45 * time.Second, domain.SensitivityMedium},
		{2 * time.Minute, domain.SensitivityLow},
	}
	for _, tc := range cases {
		signals := p.Prioritize([]Input{mkInput("x", 1, 0.5, 0.5, 0.5, 0.5, tc.expiresIn)})
		require.Len(t, signals, 1)
		assert.Equal(t, tc.want, signals[0].TimeSensitivity, "expiresIn=%s", tc.expiresIn)
	}
}

func TestRecommendedAction_Matrix(t *testing.T) {
	p := newTestPrioritizer(t, DefaultConfig())

	urgentStrong := p.Prioritize([]Input{mkInput("x", 5, 0.95, 0.95, 0.05, 0.95, 5*time.Second)})
	require.Len(t, urgentStrong, 1)
	assert.Equal(t, domain.ActionExecuteNow, urgentStrong[0].RecommendedAction)

	calmStrong := p.Prioritize([]Input{mkInput("x", 5, 0.95, 0.95, 0.05, 0.95, 2*time.Minute)})
	require.Len(t, calmStrong, 1)
	assert.Equal(t, domain.ActionExecuteSoon, calmStrong[0].RecommendedAction)

	weak := p.Prioritize([]Input{mkInput("x", 0.1, 0.1, 0.1, 0.9, 0.1, 2*time.Minute)})
	require.Len(t, weak, 1)
	assert.Equal(t, domain.ActionSkip, weak[0].RecommendedAction)

	expired := p.Prioritize([]Input{mkInput("x", 5, 0.95, 0.95, 0.05, 0.95, -time.Second)})
	require.Len(t, expired, 1)
	assert.Equal(t, domain.ActionSkip, expired[0].RecommendedAction)
}

func TestReasons_TagHighlights(t *testing.T) {
	p := newTestPrioritizer(t, DefaultConfig())

	signals := p.Prioritize([]Input{mkInput("x", 4.5, 0.9, 0.9, 0.1, 0.9, time.Minute)})
	require.Len(t, signals, 1)

	assert.Contains(t, signals[0].Reasons, "high_profit")
	assert.Contains(t, signals[0].Reasons, "high_confidence")
	assert.Contains(t, signals[0].Reasons, "low_risk")
	assert.Contains(t, signals[0].Reasons, "pattern_support")
}
