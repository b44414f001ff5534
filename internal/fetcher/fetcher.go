// Package fetcher normalizes venue-specific pool account data into the
// uniform domain.Pool representation. One Fetcher per DEX venue,
// dispatched through a Registry.
package fetcher

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/solana"
)

// Errors returned by fetchers.
var (
	// ErrInvalidPool marks pool account data that failed validation.
	// The offending pool is dropped; the fetch proceeds.
	ErrInvalidPool = errors.New("invalid pool account data")
	// ErrUnknownVenue is returned for lookups of unregistered venues.
	ErrUnknownVenue = errors.New("unknown venue")
)

// Fetcher fetches and normalizes all configured pools for one venue.
type Fetcher interface {
	// Venue returns the venue this fetcher serves.
	Venue() domain.Venue

	// FetchPools reads the venue's configured pool accounts and
	// returns normalized snapshots. Pools failing validation are
	// skipped, not fatal.
	FetchPools(ctx context.Context) ([]*domain.Pool, error)
}

// PoolConfig describes one watched pool. Pool watchlists are
// configuration: the pipeline does not discover pools on its own.
type PoolConfig struct {
	Address string       // pool account address (base58)
	TokenA  domain.Token // first token of the pair
	TokenB  domain.Token // second token of the pair
	FeeRate float64      // swap fee fraction; 0 means use the venue default

	// VaultA/VaultB are reserve token accounts for venues whose pool
	// state does not embed vault addresses directly (Meteora).
	VaultA string
	VaultB string
}

// Validate checks the configured account addresses. Vault accounts are
// program-derived and must be off-curve; an on-curve vault is a wallet
// address pasted where a vault belongs.
func (c PoolConfig) Validate() error {
	if err := solana.ValidateAddress(c.Address); err != nil {
		return fmt.Errorf("pool %q: %w", c.Address, err)
	}
	for _, vault := range []string{c.VaultA, c.VaultB} {
		if vault == "" {
			continue
		}
		if err := solana.ValidateAddress(vault); err != nil {
			return fmt.Errorf("pool %q vault: %w", c.Address, err)
		}
		if solana.IsOnCurve(vault) {
			return fmt.Errorf("pool %q vault %q: %w: on-curve address is not a program-derived vault",
				c.Address, vault, solana.ErrInvalidAddress)
		}
	}
	return nil
}

// Registry dispatches fetchers by venue.
type Registry struct {
	fetchers map[domain.Venue]Fetcher
	order    []domain.Venue
}

// NewRegistry creates an empty fetcher registry.
func NewRegistry() *Registry {
	return &Registry{
		fetchers: make(map[domain.Venue]Fetcher),
	}
}

// Register adds a fetcher, replacing any previous one for the venue.
func (r *Registry) Register(f Fetcher) {
	if _, exists := r.fetchers[f.Venue()]; !exists {
		r.order = append(r.order, f.Venue())
	}
	r.fetchers[f.Venue()] = f
}

// Get returns the fetcher for a venue.
func (r *Registry) Get(venue domain.Venue) (Fetcher, error) {
	f, ok := r.fetchers[venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, venue)
	}
	return f, nil
}

// All returns registered fetchers in registration order.
func (r *Registry) All() []Fetcher {
	out := make([]Fetcher, 0, len(r.fetchers))
	for _, v := range r.order {
		out = append(out, r.fetchers[v])
	}
	return out
}

// SPL token account layout: mint [0:32], owner [32:64], amount [64:72]
// little-endian u64.
const (
	splTokenAccountLen = 165
	splAmountOffset    = 64
)

// parseTokenAmount extracts the raw token amount from an SPL token
// account and scales it to UI units by the mint's decimals.
func parseTokenAmount(data []byte, decimals int) (float64, error) {
	if len(data) < splTokenAccountLen {
		return 0, fmt.Errorf("%w: token account %d bytes, want %d", ErrInvalidPool, len(data), splTokenAccountLen)
	}
	raw := binary.LittleEndian.Uint64(data[splAmountOffset : splAmountOffset+8])
	return float64(raw) / math.Pow10(decimals), nil
}

// readPubkey extracts a base58-agnostic 32-byte pubkey slice at offset.
func readPubkey(data []byte, offset int) ([]byte, error) {
	if len(data) < offset+32 {
		return nil, fmt.Errorf("%w: truncated pubkey at offset %d", ErrInvalidPool, offset)
	}
	return data[offset : offset+32], nil
}

// buildPool assembles a normalized Pool from decoded reserves, deriving
// the spot price. Returns ErrInvalidPool for non-positive reserves so
// empty pools never reach graph construction.
func buildPool(venue domain.Venue, cfg PoolConfig, reserveA, reserveB, feeRate float64, now int64) (*domain.Pool, error) {
	if reserveA <= 0 || reserveB <= 0 {
		return nil, fmt.Errorf("%w: %s reserves %.9f/%.9f", ErrInvalidPool, cfg.Address, reserveA, reserveB)
	}

	p := &domain.Pool{
		ID:        domain.PoolID(venue, cfg.Address),
		Venue:     venue,
		Address:   cfg.Address,
		TokenA:    cfg.TokenA,
		TokenB:    cfg.TokenB,
		ReserveA:  reserveA,
		ReserveB:  reserveB,
		FeeRate:   feeRate,
		UpdatedAt: now,
	}
	p.Price = p.SpotPrice()
	return p, nil
}
