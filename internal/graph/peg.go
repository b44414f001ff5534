package graph

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
)

// PegPair is a token pair expected to trade at a known ratio, e.g. a
// liquid-staking derivative against its underlying asset.
type PegPair struct {
	Label         string  // human-readable pair name, e.g. "mSOL/SOL"
	MintA         string  // derivative mint
	MintB         string  // underlying mint
	ExpectedRatio float64 // tokenB per tokenA at peg
}

// PegConfig supplies the peg-pair list and deviation threshold. Both
// are configuration; the pipeline never infers peg ratios.
type PegConfig struct {
	Pairs              []PegPair
	DeviationThreshold float64 // fraction, e.g. 0.005 for 0.5%
}

// DefaultPegConfig returns the default LSD pairs against wrapped SOL.
// The 1:1 ratios are placeholders: operators should supply the current
// redemption ratios.
func DefaultPegConfig() PegConfig {
	return PegConfig{
		Pairs: []PegPair{
			{Label: "mSOL/SOL", MintA: domain.MintMSOL, MintB: domain.MintWSOL, ExpectedRatio: 1.0},
			{Label: "stSOL/SOL", MintA: domain.MintStSOL, MintB: domain.MintWSOL, ExpectedRatio: 1.0},
			{Label: "jitoSOL/SOL", MintA: domain.MintJitoSOL, MintB: domain.MintWSOL, ExpectedRatio: 1.0},
		},
		DeviationThreshold: 0.005,
	}
}

// PegScanner checks peg pairs for deviation beyond the threshold,
// independent of full cycle search. Peg arbitrage is a degenerate
// 2-hop case with its own risk profile and must not be starved by
// deeper-cycle search budgets.
type PegScanner struct {
	peg    PegConfig
	detect Config
	logger *log.Logger
}

// NewPegScanner creates a peg deviation scanner.
func NewPegScanner(peg PegConfig, detect Config, logger *log.Logger) *PegScanner {
	return &PegScanner{
		peg:    peg,
		detect: detect.normalize(),
		logger: logger,
	}
}

// Scan inspects each configured peg pair across the pool set. When two
// pools host the same pair, profitable two-pool round trips are
// reported; a lone deviating pool is paired with a synthetic
// redemption leg at the expected ratio.
func (s *PegScanner) Scan(pools []*domain.Pool) []*domain.Opportunity {
	now := time.Now()
	var out []*domain.Opportunity

	for _, pair := range s.peg.Pairs {
		pairPools := poolsForPair(pools, pair)
		if len(pairPools) == 0 {
			continue
		}

		// Two-pool round trips reuse the 2-hop enumeration over a
		// graph restricted to this pair's pools.
		if len(pairPools) > 1 {
			out = append(out, s.roundTrips(pairPools, now)...)
		}

		for _, p := range pairPools {
			if o := s.redemptionRoute(p, pair, now); o != nil {
				out = append(out, o)
			}
		}
	}

	if len(out) > 0 {
		s.logger.Printf("peg scan found %d opportunities", len(out))
	}
	return out
}

// poolsForPair selects pools hosting the peg pair in either order.
func poolsForPair(pools []*domain.Pool, pair PegPair) []*domain.Pool {
	var out []*domain.Pool
	for _, p := range pools {
		if !p.HasLiquidity() {
			continue
		}
		a, b := p.TokenA.Mint, p.TokenB.Mint
		if (a == pair.MintA && b == pair.MintB) || (a == pair.MintB && b == pair.MintA) {
			out = append(out, p)
		}
	}
	return out
}

// roundTrips enumerates profitable 2-hop cycles among the pair's pools.
func (s *PegScanner) roundTrips(pairPools []*domain.Pool, now time.Time) []*domain.Opportunity {
	g := Build(pairPools)
	seen := make(map[string]bool)
	var out []*domain.Opportunity

	for u := 0; u < g.NodeCount(); u++ {
		for _, e1 := range g.Edges(u) {
			for _, e2 := range g.Edges(e1.To) {
				if e2.To != u || e2.PoolID == e1.PoolID {
					continue
				}
				// Key on pool ids: the token set is identical for every
				// round trip of the pair.
				key := e1.PoolID + "|" + e2.PoolID
				if e2.PoolID < e1.PoolID {
					key = e2.PoolID + "|" + e1.PoolID
				}
				if seen[key] {
					continue
				}
				if o := buildOpportunity(g, []Edge{e1, e2}, s.detect, domain.SourcePeg, now); o != nil {
					seen[key] = true
					out = append(out, o)
				}
			}
		}
	}
	return out
}

// redemptionRoute emits a pool-swap plus redemption-leg route when a
// single pool's implied ratio deviates from the expected peg beyond
// the threshold.
func (s *PegScanner) redemptionRoute(p *domain.Pool, pair PegPair, now time.Time) *domain.Opportunity {
	if pair.ExpectedRatio <= 0 {
		return nil
	}

	// Orient the observed ratio as tokenB per tokenA of the peg pair.
	ratio := p.SpotPrice()
	direction := domain.SwapAToB
	if p.TokenA.Mint != pair.MintA {
		if ratio == 0 {
			return nil
		}
		ratio = 1 / ratio
		direction = domain.SwapBToA
	}

	deviation := ratio/pair.ExpectedRatio - 1
	if math.Abs(deviation) < s.peg.DeviationThreshold {
		return nil
	}

	redemptionID := fmt.Sprintf("peg:%s", pair.Label)
	var steps []domain.Step
	var rate float64

	if deviation > 0 {
		// Derivative overpriced: sell A into the pool, redeem B back at peg.
		swapRate := ratio * (1 - p.FeeRate)
		redeemRate := 1 / pair.ExpectedRatio
		rate = swapRate * redeemRate
		steps = []domain.Step{
			{PoolID: p.ID, Venue: p.Venue, Direction: direction, TokenIn: pair.MintA, TokenOut: pair.MintB, Rate: swapRate},
			{PoolID: redemptionID, Venue: domain.VenuePeg, Direction: domain.SwapBToA, TokenIn: pair.MintB, TokenOut: pair.MintA, Rate: redeemRate},
		}
	} else {
		// Derivative underpriced: acquire at peg, sell B for A in the pool.
		opposite := domain.SwapBToA
		if direction == domain.SwapBToA {
			opposite = domain.SwapAToB
		}
		swapRate := (1 / ratio) * (1 - p.FeeRate)
		rate = pair.ExpectedRatio * swapRate
		steps = []domain.Step{
			{PoolID: redemptionID, Venue: domain.VenuePeg, Direction: domain.SwapAToB, TokenIn: pair.MintA, TokenOut: pair.MintB, Rate: pair.ExpectedRatio},
			{PoolID: p.ID, Venue: p.Venue, Direction: opposite, TokenIn: pair.MintB, TokenOut: pair.MintA, Rate: swapRate},
		}
	}

	rate *= math.Pow(1-s.detect.SlippageBuffer, 2)
	if rate <= 1 {
		return nil
	}

	profit := s.detect.InputAmount * (rate - 1)
	profitPct := (rate - 1) * 100
	if profitPct < s.detect.MinProfitPct {
		return nil
	}

	o := &domain.Opportunity{
		ID:           uuid.NewString(),
		Source:       domain.SourcePeg,
		Steps:        steps,
		InputAmount:  s.detect.InputAmount,
		OutputAmount: s.detect.InputAmount * rate,
		Profit:       profit,
		ProfitPct:    profitPct,
		Confidence:   math.Min(0.9, 0.6+math.Abs(deviation)*10), // short route anchored to a known ratio
		CreatedAt:    now.UnixMilli(),
		ExpiresAt:    now.Add(s.detect.OpportunityTTL).UnixMilli(),
	}
	if err := o.Validate(); err != nil {
		return nil
	}
	return o
}
