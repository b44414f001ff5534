package domain

import "fmt"

// Venue identifies a DEX protocol hosting liquidity pools.
type Venue string

// Supported venues.
const (
	VenueRaydium Venue = "raydium"
	VenueOrca    Venue = "orca"
	VenueMeteora Venue = "meteora"

	// VenuePeg tags synthetic redemption legs in peg-deviation routes;
	// no fetcher exists for it.
	VenuePeg Venue = "peg"
)

// MaxRecentTrades bounds the per-pool trade ring buffer.
const MaxRecentTrades = 32

// Trade is a single observed swap against a pool.
type Trade struct {
	Price     float64 // execution price (tokenB per tokenA)
	Size      float64 // trade size in tokenA units
	Timestamp int64   // Unix timestamp in milliseconds
}

// Pool is a snapshot of an on-chain liquidity pool.
// Created/replaced wholesale on each scan; owned by the scanner and
// cache, read-only to detectors.
type Pool struct {
	ID           string  // "<venue>:<address>"
	Venue        Venue   // hosting DEX
	Address      string  // pool account address (base58)
	TokenA       Token   // first token of the pair
	TokenB       Token   // second token of the pair
	ReserveA     float64 // tokenA reserve in UI units
	ReserveB     float64 // tokenB reserve in UI units
	FeeRate      float64 // swap fee as a fraction, e.g. 0.0025
	Price        float64 // spot price: tokenB per tokenA, derived from reserves
	Volume24h    float64 // 24h volume in tokenB units
	RecentTrades []Trade // bounded ring of recent trades, newest last
	UpdatedAt    int64   // last update, Unix milliseconds
}

// PoolID builds the canonical pool identifier.
func PoolID(venue Venue, address string) string {
	return fmt.Sprintf("%s:%s", venue, address)
}

// SpotPrice returns reserveB/reserveA, or 0 for an empty pool.
func (p *Pool) SpotPrice() float64 {
	if p.ReserveA <= 0 {
		return 0
	}
	return p.ReserveB / p.ReserveA
}

// HasLiquidity reports whether both reserves are strictly positive.
// Pools failing this check are excluded from graph construction.
func (p *Pool) HasLiquidity() bool {
	return p.ReserveA > 0 && p.ReserveB > 0
}

// RecordTrade appends a trade to the ring buffer, evicting the oldest
// entry when full.
func (p *Pool) RecordTrade(t Trade) {
	if len(p.RecentTrades) >= MaxRecentTrades {
		copy(p.RecentTrades, p.RecentTrades[1:])
		p.RecentTrades[len(p.RecentTrades)-1] = t
		return
	}
	p.RecentTrades = append(p.RecentTrades, t)
}

// Clone returns a deep copy. Stores hand out clones so callers can
// never mutate shared snapshots.
func (p *Pool) Clone() *Pool {
	cp := *p
	cp.RecentTrades = make([]Trade, len(p.RecentTrades))
	copy(cp.RecentTrades, p.RecentTrades)
	return &cp
}
