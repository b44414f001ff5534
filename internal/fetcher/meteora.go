package fetcher

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/solana"
)

// MeteoraDynamicAMM is the Meteora dynamic AMM program ID.
const MeteoraDynamicAMM = "Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB"

// DefaultMeteoraFee is the fallback swap fee for Meteora pools.
const DefaultMeteoraFee = 0.003

// MeteoraFetcher normalizes Meteora dynamic AMM pools. Meteora pool
// state nests its reserves behind vault program accounts, so vault
// token accounts are supplied in configuration rather than decoded
// from the pool state.
type MeteoraFetcher struct {
	reader solana.Reader
	pools  []PoolConfig
	logger *log.Logger
}

// NewMeteoraFetcher creates a fetcher for the configured Meteora pools.
func NewMeteoraFetcher(reader solana.Reader, pools []PoolConfig, logger *log.Logger) *MeteoraFetcher {
	return &MeteoraFetcher{
		reader: reader,
		pools:  pools,
		logger: logger,
	}
}

// Venue returns domain.VenueMeteora.
func (f *MeteoraFetcher) Venue() domain.Venue {
	return domain.VenueMeteora
}

// FetchPools reads the configured vault token accounts for each pool
// and normalizes their balances into reserves. Pools without vault
// configuration or with empty reserves are logged and skipped.
func (f *MeteoraFetcher) FetchPools(ctx context.Context) ([]*domain.Pool, error) {
	if len(f.pools) == 0 {
		return nil, nil
	}

	var vaultAddrs []string
	var usable []PoolConfig
	for _, cfg := range f.pools {
		if cfg.VaultA == "" || cfg.VaultB == "" {
			f.logger.Printf("meteora pool %s: vault addresses not configured, skipping", cfg.Address)
			continue
		}
		usable = append(usable, cfg)
		vaultAddrs = append(vaultAddrs, cfg.VaultA, cfg.VaultB)
	}

	if len(usable) == 0 {
		return nil, nil
	}

	vaults, err := f.reader.GetAccounts(ctx, vaultAddrs)
	if err != nil {
		return nil, fmt.Errorf("meteora vaults: %w", err)
	}

	now := time.Now().UnixMilli()
	var out []*domain.Pool

	for _, cfg := range usable {
		vaultA := vaults[cfg.VaultA]
		vaultB := vaults[cfg.VaultB]
		if vaultA == nil || vaultB == nil {
			f.logger.Printf("meteora pool %s: vault account missing, skipping", cfg.Address)
			continue
		}

		reserveA, err := parseTokenAmount(vaultA.Data, cfg.TokenA.Decimals)
		if err != nil {
			f.logger.Printf("meteora pool %s: %v, skipping", cfg.Address, err)
			continue
		}
		reserveB, err := parseTokenAmount(vaultB.Data, cfg.TokenB.Decimals)
		if err != nil {
			f.logger.Printf("meteora pool %s: %v, skipping", cfg.Address, err)
			continue
		}

		fee := cfg.FeeRate
		if fee == 0 {
			fee = DefaultMeteoraFee
		}

		pool, err := buildPool(domain.VenueMeteora, cfg, reserveA, reserveB, fee, now)
		if err != nil {
			f.logger.Printf("meteora pool %s: %v, skipping", cfg.Address, err)
			continue
		}
		out = append(out, pool)
	}

	return out, nil
}
