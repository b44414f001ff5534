// Package signal turns risk-assessed opportunities into ranked,
// actionable signals.
package signal

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
)

// ErrBadWeights is returned when scoring weights do not form a convex
// combination.
var ErrBadWeights = errors.New("scoring weights must be non-negative and sum to 1")

// Weights combines the scoring components. Must sum to 1.
type Weights struct {
	Profit               float64 // profit magnitude
	ExecutionProbability float64 // risk-derived landing estimate
	RiskInverse          float64 // inverse of combined risk
	Confidence           float64 // detector confidence
	Pattern              float64 // historical pattern support
	Prediction           float64 // price-forecast confidence for the start pool
}

// DefaultWeights returns the default scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Profit:               0.30,
		ExecutionProbability: 0.25,
		RiskInverse:          0.20,
		Confidence:           0.10,
		Pattern:              0.10,
		Prediction:           0.05,
	}
}

// Validate checks the weights form a convex combination.
func (w Weights) Validate() error {
	sum := 0.0
	for _, v := range []float64{w.Profit, w.ExecutionProbability, w.RiskInverse, w.Confidence, w.Pattern, w.Prediction} {
		if v < 0 {
			return ErrBadWeights
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: got %.6f", ErrBadWeights, sum)
	}
	return nil
}

// Config tunes the prioritizer.
type Config struct {
	Weights Weights
	// ProfitScale is the profit percentage at which the profit
	// component saturates.
	ProfitScale float64
	// ExecuteScore and MonitorScore are the action thresholds.
	ExecuteScore float64
	MonitorScore float64
}

// DefaultConfig returns default prioritizer tuning.
func DefaultConfig() Config {
	return Config{
		Weights:      DefaultWeights(),
		ProfitScale:  5.0,
		ExecuteScore: 0.6,
		MonitorScore: 0.4,
	}
}

// Input pairs a risk assessment with the auxiliary scores the pipeline
// derived for it.
type Input struct {
	Assessment           *domain.RiskAssessment
	PatternScore         float64 // similarity-weighted success estimate in [0,1]
	PredictionConfidence float64 // forecast confidence for the route's start pool in [0,1]
}

// Prioritizer scores and ranks signals. Stateless besides
// configuration; safe for concurrent use.
type Prioritizer struct {
	config  Config
	logger  *log.Logger
	nowFunc func() time.Time
}

// New creates a prioritizer. Fails on invalid weights.
func New(config Config, logger *log.Logger) (*Prioritizer, error) {
	if err := config.Weights.Validate(); err != nil {
		return nil, err
	}
	if config.ProfitScale <= 0 {
		config.ProfitScale = DefaultConfig().ProfitScale
	}
	if config.ExecuteScore <= 0 {
		config.ExecuteScore = DefaultConfig().ExecuteScore
	}
	if config.MonitorScore <= 0 {
		config.MonitorScore = DefaultConfig().MonitorScore
	}
	return &Prioritizer{
		config:  config,
		logger:  logger,
		nowFunc: time.Now,
	}, nil
}

// Prioritize scores every input, sorts by composite score descending,
// and assigns 1-based ranks. Ties keep detection order: sorting is
// stable over the input slice.
func (p *Prioritizer) Prioritize(inputs []Input) []*domain.Signal {
	now := p.nowFunc()

	signals := make([]*domain.Signal, 0, len(inputs))
	for _, in := range inputs {
		if in.Assessment == nil || in.Assessment.Opportunity == nil {
			continue
		}
		signals = append(signals, p.score(in, now))
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].CompositeScore > signals[j].CompositeScore
	})
	for i, s := range signals {
		s.Rank = i + 1
	}

	if len(signals) > 0 {
		p.logger.Printf("prioritized %d signals, top score %.3f", len(signals), signals[0].CompositeScore)
	}
	return signals
}

func (p *Prioritizer) score(in Input, now time.Time) *domain.Signal {
	o := in.Assessment.Opportunity
	remaining := time.Duration(o.ExpiresAt-now.UnixMilli()) * time.Millisecond
	sensitivity := sensitivityFor(remaining)

	profitScore := clamp01(o.ProfitPct / p.config.ProfitScale)
	patternScore := clamp01(in.PatternScore)

	w := p.config.Weights
	score := clamp01(w.Profit*profitScore +
		w.ExecutionProbability*clamp01(in.Assessment.ExecutionProbability) +
		w.RiskInverse*clamp01(1-in.Assessment.RiskScore) +
		w.Confidence*clamp01(o.Confidence) +
		w.Pattern*patternScore +
		w.Prediction*clamp01(in.PredictionConfidence))

	return &domain.Signal{
		Opportunity:       o,
		Assessment:        in.Assessment,
		CompositeScore:    score,
		TimeSensitivity:   sensitivity,
		RecommendedAction: p.action(score, sensitivity, remaining),
		Reasons:           reasons(o, in, profitScore, patternScore),
	}
}

// sensitivityFor classes remaining time-to-expiry. Sensitivity drives
// the recommended action, not the composite score.
func sensitivityFor(remaining time.Duration) domain.TimeSensitivity {
	switch {
	case remaining < 10*time.Second:
		return domain.SensitivityCritical
	case remaining < 30*time.Second:
		return domain.SensitivityHigh
	case remaining < 60*time.Second:
		return domain.SensitivityMedium
	default:
		return domain.SensitivityLow
	}
}

// action derives the verdict from score and urgency. Expired signals
// are always skipped.
func (p *Prioritizer) action(score float64, sensitivity domain.TimeSensitivity, remaining time.Duration) domain.RecommendedAction {
	if remaining <= 0 {
		return domain.ActionSkip
	}
	urgent := sensitivity == domain.SensitivityCritical || sensitivity == domain.SensitivityHigh

	switch {
	case score >= p.config.ExecuteScore && urgent:
		return domain.ActionExecuteNow
	case score >= p.config.ExecuteScore:
		return domain.ActionExecuteSoon
	case score >= p.config.MonitorScore:
		return domain.ActionMonitor
	default:
		return domain.ActionSkip
	}
}

// reasons emits human-readable scoring tags.
func reasons(o *domain.Opportunity, in Input, profitScore, patternScore float64) []string {
	var out []string
	if profitScore >= 0.6 {
		out = append(out, "high_profit")
	}
	if o.Confidence >= 0.7 {
		out = append(out, "high_confidence")
	}
	if in.Assessment.RiskScore <= 0.3 {
		out = append(out, "low_risk")
	} else if in.Assessment.RiskScore >= 0.7 {
		out = append(out, "high_risk")
	}
	if patternScore >= 0.7 {
		out = append(out, "pattern_support")
	}
	if in.Assessment.CompetitionLevel == domain.CompetitionHigh {
		out = append(out, "contested_route")
	}
	if o.Source == domain.SourcePeg {
		out = append(out, "peg_deviation")
	}
	return out
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
