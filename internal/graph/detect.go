package graph

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
)

// Config tunes cycle detection. All thresholds are configuration, not
// calibrated constants.
type Config struct {
	// MaxHops bounds search depth for the graph detector.
	MaxHops int
	// MinProfitPct is the minimum profit percentage to report.
	MinProfitPct float64
	// SlippageBuffer is a per-hop haircut applied on top of fees.
	SlippageBuffer float64
	// InputAmount is the reference input in start-token units.
	InputAmount float64
	// OpportunityTTL is how long a detected opportunity stays actionable.
	OpportunityTTL time.Duration
}

// DefaultConfig returns the default detection parameters.
func DefaultConfig() Config {
	return Config{
		MaxHops:        5,
		MinProfitPct:   0.05,
		SlippageBuffer: 0.001,
		InputAmount:    1.0,
		OpportunityTTL: 30 * time.Second,
	}
}

// normalize fills zero fields with defaults.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxHops <= 0 {
		c.MaxHops = def.MaxHops
	}
	if c.InputAmount <= 0 {
		c.InputAmount = def.InputAmount
	}
	if c.OpportunityTTL <= 0 {
		c.OpportunityTTL = def.OpportunityTTL
	}
	return c
}

// netRate compounds edge rates and applies the per-hop slippage buffer.
func netRate(edges []Edge, slippage float64) float64 {
	rate := 1.0
	for _, e := range edges {
		rate *= e.Rate
	}
	return rate * math.Pow(1-slippage, float64(len(edges)))
}

// cycleKey identifies a cycle by its sorted token-id set so rotations
// and reversals of the same cycle collapse to one key.
func cycleKey(g *Graph, edges []Edge) string {
	mints := make([]string, len(edges))
	for i, e := range edges {
		mints[i] = g.Token(e.From)
	}
	sort.Strings(mints)
	return strings.Join(mints, "|")
}

// buildOpportunity assembles a validated opportunity from a cycle.
// Returns nil when the cycle is not profitable past the configured
// threshold.
func buildOpportunity(g *Graph, edges []Edge, cfg Config, source domain.OpportunitySource, now time.Time) *domain.Opportunity {
	rate := netRate(edges, cfg.SlippageBuffer)
	if !validRate(rate) {
		return nil
	}

	profit := cfg.InputAmount * (rate - 1)
	profitPct := (rate - 1) * 100
	if profitPct < cfg.MinProfitPct || profit <= 0 {
		return nil
	}

	steps := make([]domain.Step, len(edges))
	for i, e := range edges {
		steps[i] = domain.Step{
			PoolID:    e.PoolID,
			Venue:     e.Venue,
			Direction: e.Direction,
			TokenIn:   g.Token(e.From),
			TokenOut:  g.Token(e.To),
			Rate:      e.Rate,
		}
	}

	o := &domain.Opportunity{
		ID:           uuid.NewString(),
		Source:       source,
		Steps:        steps,
		InputAmount:  cfg.InputAmount,
		OutputAmount: cfg.InputAmount * rate,
		Profit:       profit,
		ProfitPct:    profitPct,
		Confidence:   cycleConfidence(profitPct, len(edges)),
		CreatedAt:    now.UnixMilli(),
		ExpiresAt:    now.Add(cfg.OpportunityTTL).UnixMilli(),
	}

	if err := o.Validate(); err != nil {
		return nil
	}
	return o
}

// cycleConfidence is a heuristic in [0,1]: wider margins raise it,
// longer routes lower it.
func cycleConfidence(profitPct float64, hops int) float64 {
	conf := 0.5 + profitPct/10 - 0.08*float64(hops-2)
	if conf < 0.05 {
		conf = 0.05
	}
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// FeeTotal sums pool fee rates along a route, for fingerprinting.
func FeeTotal(g *Graph, o *domain.Opportunity) float64 {
	total := 0.0
	for _, s := range o.Steps {
		if p := g.Pool(s.PoolID); p != nil {
			total += p.FeeRate
		}
	}
	return total
}
