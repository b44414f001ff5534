// Package risk scores opportunities for execution risk and
// competition exposure. Scores are heuristics combined by configurable
// weights; nothing here is production-calibrated.
package risk

import (
	"log"
	"time"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
)

// Signals carries the two external inputs the core does not measure
// itself. Both are supplied by the caller in [0,1].
type Signals struct {
	NetworkCongestion  float64 // recent network/leader congestion
	CompetitorActivity float64 // observed searcher competition
}

// Weights combines the risk components. Must sum to 1.
type Weights struct {
	Liquidity   float64 // shallow-pool slippage exposure
	Route       float64 // hop-count failure surface
	Congestion  float64 // external congestion signal
	Competition float64 // external competition signal
}

// DefaultWeights returns the default component weights.
func DefaultWeights() Weights {
	return Weights{
		Liquidity:   0.35,
		Route:       0.25,
		Congestion:  0.20,
		Competition: 0.20,
	}
}

// Config tunes the analyzer.
type Config struct {
	Weights Weights
	// DepthScale divides the reserve/trade-size ratio before the
	// liquidity risk transform: higher values mark pools risky sooner.
	DepthScale float64
	// ProbabilityHorizon is the time-to-expiry at which the time
	// factor of execution probability saturates.
	ProbabilityHorizon time.Duration
}

// DefaultConfig returns default analyzer tuning.
func DefaultConfig() Config {
	return Config{
		Weights:            DefaultWeights(),
		DepthScale:         100,
		ProbabilityHorizon: 30 * time.Second,
	}
}

// Analyzer scores opportunities. Stateless besides configuration; safe
// for concurrent use.
type Analyzer struct {
	config  Config
	logger  *log.Logger
	nowFunc func() time.Time
}

// New creates a risk analyzer.
func New(config Config, logger *log.Logger) *Analyzer {
	if config.DepthScale <= 0 {
		config.DepthScale = DefaultConfig().DepthScale
	}
	if config.ProbabilityHorizon <= 0 {
		config.ProbabilityHorizon = DefaultConfig().ProbabilityHorizon
	}
	return &Analyzer{
		config:  config,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Analyze scores one opportunity against the pool set and external
// signals. A step whose pool is missing or drained is assigned maximal
// liquidity risk instead of failing.
func (a *Analyzer) Analyze(o *domain.Opportunity, pools map[string]*domain.Pool, signals Signals) *domain.RiskAssessment {
	liqRisk := a.liquidityRisk(o, pools)
	routeRisk := routeRisk(o.Hops())

	w := a.config.Weights
	score := clamp01(w.Liquidity*liqRisk +
		w.Route*routeRisk +
		w.Congestion*clamp01(signals.NetworkCongestion) +
		w.Competition*clamp01(signals.CompetitorActivity))

	return &domain.RiskAssessment{
		Opportunity:          o,
		RiskScore:            score,
		ExecutionProbability: a.executionProbability(o, score),
		CompetitionLevel:     competitionLevel(signals.CompetitorActivity, o.ProfitPct),
		LiquidityRisk:        liqRisk,
		RouteRisk:            routeRisk,
	}
}

// BatchAnalyze scores opportunities independently; one bad entry never
// fails the batch.
func (a *Analyzer) BatchAnalyze(ops []*domain.Opportunity, pools map[string]*domain.Pool, signals Signals) []*domain.RiskAssessment {
	out := make([]*domain.RiskAssessment, 0, len(ops))
	for _, o := range ops {
		out = append(out, a.Analyze(o, pools, signals))
	}
	return out
}

// liquidityRisk is driven by the shallowest input-side reserve along
// the route relative to the trade size. Missing pools, drained pools,
// and synthetic redemption legs without pool backing score maximal or
// zero risk respectively.
func (a *Analyzer) liquidityRisk(o *domain.Opportunity, pools map[string]*domain.Pool) float64 {
	if o.InputAmount <= 0 {
		return 1
	}

	worst := 0.0
	for _, step := range o.Steps {
		if step.Venue == domain.VenuePeg {
			// Redemption legs execute at a fixed ratio, no pool depth involved
			continue
		}

		p := pools[step.PoolID]
		if p == nil {
			return 1
		}

		reserveIn := p.ReserveA
		if step.Direction == domain.SwapBToA {
			reserveIn = p.ReserveB
		}
		if reserveIn <= 0 {
			return 1
		}

		depthRatio := reserveIn / o.InputAmount
		risk := 1 / (1 + depthRatio/a.config.DepthScale)
		if risk > worst {
			worst = risk
		}
	}
	return clamp01(worst)
}

// routeRisk grows with hop count: every hop adds failure and latency
// surface.
func routeRisk(hops int) float64 {
	if hops <= 1 {
		return 0
	}
	return clamp01(0.15 * float64(hops-1))
}

// executionProbability decreases with risk and shrinking time budget,
// and increases with profit margin.
func (a *Analyzer) executionProbability(o *domain.Opportunity, riskScore float64) float64 {
	remaining := time.Duration(o.ExpiresAt-a.nowFunc().UnixMilli()) * time.Millisecond
	if remaining <= 0 {
		return 0
	}

	timeFactor := float64(remaining) / float64(a.config.ProbabilityHorizon)
	if timeFactor > 1 {
		timeFactor = 1
	}

	marginFactor := 0.6 + o.ProfitPct/10
	if marginFactor > 1.2 {
		marginFactor = 1.2
	}

	return clamp01((1 - riskScore) * timeFactor * marginFactor)
}

// competitionLevel buckets the external activity signal, nudged up for
// fat margins that attract searchers.
func competitionLevel(activity, profitPct float64) domain.CompetitionLevel {
	score := clamp01(activity) + profitPct/20
	switch {
	case score < 0.33:
		return domain.CompetitionLow
	case score < 0.66:
		return domain.CompetitionMedium
	default:
		return domain.CompetitionHigh
	}
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
