package domain

import "errors"

// SwapDirection selects which side of a pool a step consumes.
type SwapDirection string

// Swap directions.
const (
	SwapAToB SwapDirection = "a_to_b"
	SwapBToA SwapDirection = "b_to_a"
)

// OpportunitySource identifies which detector produced an opportunity.
type OpportunitySource string

// Opportunity sources.
const (
	SourceSimple OpportunitySource = "simple"
	SourceGraph  OpportunitySource = "graph"
	SourcePeg    OpportunitySource = "peg"
)

// Step is one swap in an arbitrage route.
type Step struct {
	PoolID    string        // pool the swap executes against
	Venue     Venue         // hosting DEX, denormalized for reporting
	Direction SwapDirection // which pair side is consumed
	TokenIn   string        // mint consumed
	TokenOut  string        // mint produced
	Rate      float64       // effective exchange rate after fees
}

// Opportunity is a candidate arbitrage cycle.
type Opportunity struct {
	ID           string            // unique opportunity id
	Source       OpportunitySource // producing detector
	Steps        []Step            // ordered swaps forming a closed loop
	InputAmount  float64           // input in start-token units
	OutputAmount float64           // computed output, fee-inclusive
	Profit       float64           // OutputAmount - InputAmount
	ProfitPct    float64           // Profit / InputAmount * 100
	Confidence   float64           // detector confidence in [0,1]
	CreatedAt    int64             // detection time, Unix milliseconds
	ExpiresAt    int64             // estimated validity horizon, Unix milliseconds
}

// Validation errors.
var (
	ErrOpenCycle       = errors.New("opportunity route does not close")
	ErrNonPositive     = errors.New("opportunity profit is not positive")
	ErrExpiryBeforeNow = errors.New("opportunity expiry precedes creation")
	ErrNoSteps         = errors.New("opportunity has no steps")
)

// Validate checks the opportunity invariants: the route must form a
// closed cycle, profit must be strictly positive, and expiry must be
// later than creation.
func (o *Opportunity) Validate() error {
	if len(o.Steps) == 0 {
		return ErrNoSteps
	}
	if o.Steps[0].TokenIn != o.Steps[len(o.Steps)-1].TokenOut {
		return ErrOpenCycle
	}
	for i := 1; i < len(o.Steps); i++ {
		if o.Steps[i].TokenIn != o.Steps[i-1].TokenOut {
			return ErrOpenCycle
		}
	}
	if o.Profit <= 0 {
		return ErrNonPositive
	}
	if o.ExpiresAt <= o.CreatedAt {
		return ErrExpiryBeforeNow
	}
	return nil
}

// StartToken returns the mint consumed by the first step, which for a
// valid opportunity equals the mint produced by the last step.
func (o *Opportunity) StartToken() string {
	if len(o.Steps) == 0 {
		return ""
	}
	return o.Steps[0].TokenIn
}

// Hops returns the route length in swaps.
func (o *Opportunity) Hops() int {
	return len(o.Steps)
}

// OpportunityRecord is the flattened archive row of a detected
// opportunity. Routes are collapsed to their start token and hop count;
// the archive serves offline analysis, not replay.
type OpportunityRecord struct {
	ID          string            // opportunity id
	Source      OpportunitySource // producing detector
	StartToken  string            // start mint of the cycle
	Hops        int               // route length in swaps
	InputAmount float64           // input in start-token units
	Profit      float64           // estimated profit in start-token units
	ProfitPct   float64           // estimated profit percentage
	Confidence  float64           // detector confidence in [0,1]
	CreatedAt   int64             // detection time, Unix milliseconds
}

// Record flattens the opportunity for archival.
func (o *Opportunity) Record() *OpportunityRecord {
	return &OpportunityRecord{
		ID:          o.ID,
		Source:      o.Source,
		StartToken:  o.StartToken(),
		Hops:        o.Hops(),
		InputAmount: o.InputAmount,
		Profit:      o.Profit,
		ProfitPct:   o.ProfitPct,
		Confidence:  o.Confidence,
		CreatedAt:   o.CreatedAt,
	}
}
