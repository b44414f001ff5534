package fetcher

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mr-tron/base58"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/solana"
)

// RaydiumAMMV4 is the Raydium AMM v4 program ID.
const RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

// DefaultRaydiumFee is the standard Raydium AMM v4 swap fee (0.25%).
const DefaultRaydiumFee = 0.0025

// Raydium AMM v4 liquidity state layout offsets (752-byte account).
// Only the vault pubkeys are decoded; everything else the pipeline
// needs comes from the vault token accounts.
const (
	raydiumStateLen         = 752
	raydiumBaseVaultOffset  = 336
	raydiumQuoteVaultOffset = 368
)

// RaydiumFetcher normalizes Raydium AMM v4 pools.
type RaydiumFetcher struct {
	reader solana.Reader
	pools  []PoolConfig
	logger *log.Logger
}

// NewRaydiumFetcher creates a fetcher for the configured Raydium pools.
func NewRaydiumFetcher(reader solana.Reader, pools []PoolConfig, logger *log.Logger) *RaydiumFetcher {
	return &RaydiumFetcher{
		reader: reader,
		pools:  pools,
		logger: logger,
	}
}

// Venue returns domain.VenueRaydium.
func (f *RaydiumFetcher) Venue() domain.Venue {
	return domain.VenueRaydium
}

// FetchPools reads every configured pool's state account, resolves its
// vault token accounts, and normalizes reserves. Pools with malformed
// state or empty reserves are logged and skipped.
func (f *RaydiumFetcher) FetchPools(ctx context.Context) ([]*domain.Pool, error) {
	if len(f.pools) == 0 {
		return nil, nil
	}

	addresses := make([]string, len(f.pools))
	for i, cfg := range f.pools {
		addresses[i] = cfg.Address
	}

	states, err := f.reader.GetAccounts(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("raydium pool states: %w", err)
	}

	// Resolve vault addresses from each pool state
	type vaultPair struct {
		cfg    PoolConfig
		vaultA string
		vaultB string
	}
	var resolved []vaultPair
	var vaultAddrs []string

	for _, cfg := range f.pools {
		state, ok := states[cfg.Address]
		if !ok {
			f.logger.Printf("raydium pool %s: account not found, skipping", cfg.Address)
			continue
		}
		if len(state.Data) < raydiumStateLen {
			f.logger.Printf("raydium pool %s: state %d bytes, want %d, skipping", cfg.Address, len(state.Data), raydiumStateLen)
			continue
		}

		baseVault, err := readPubkey(state.Data, raydiumBaseVaultOffset)
		if err != nil {
			f.logger.Printf("raydium pool %s: %v, skipping", cfg.Address, err)
			continue
		}
		quoteVault, err := readPubkey(state.Data, raydiumQuoteVaultOffset)
		if err != nil {
			f.logger.Printf("raydium pool %s: %v, skipping", cfg.Address, err)
			continue
		}

		vp := vaultPair{
			cfg:    cfg,
			vaultA: base58.Encode(baseVault),
			vaultB: base58.Encode(quoteVault),
		}
		resolved = append(resolved, vp)
		vaultAddrs = append(vaultAddrs, vp.vaultA, vp.vaultB)
	}

	if len(resolved) == 0 {
		return nil, nil
	}

	vaults, err := f.reader.GetAccounts(ctx, vaultAddrs)
	if err != nil {
		return nil, fmt.Errorf("raydium vaults: %w", err)
	}

	now := time.Now().UnixMilli()
	var out []*domain.Pool

	for _, vp := range resolved {
		pool, err := f.normalize(vp.cfg, vaults[vp.vaultA], vaults[vp.vaultB], now)
		if err != nil {
			f.logger.Printf("raydium pool %s: %v, skipping", vp.cfg.Address, err)
			continue
		}
		out = append(out, pool)
	}

	return out, nil
}

func (f *RaydiumFetcher) normalize(cfg PoolConfig, vaultA, vaultB *solana.AccountInfo, now int64) (*domain.Pool, error) {
	if vaultA == nil || vaultB == nil {
		return nil, fmt.Errorf("%w: vault account missing", ErrInvalidPool)
	}

	reserveA, err := parseTokenAmount(vaultA.Data, cfg.TokenA.Decimals)
	if err != nil {
		return nil, err
	}
	reserveB, err := parseTokenAmount(vaultB.Data, cfg.TokenB.Decimals)
	if err != nil {
		return nil, err
	}

	fee := cfg.FeeRate
	if fee == 0 {
		fee = DefaultRaydiumFee
	}

	return buildPool(domain.VenueRaydium, cfg, reserveA, reserveB, fee, now)
}
