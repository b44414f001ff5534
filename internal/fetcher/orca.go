package fetcher

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"github.com/mr-tron/base58"

	"github.com/krewdev/SealevelStudio4-sub007/internal/domain"
	"github.com/krewdev/SealevelStudio4-sub007/internal/solana"
)

// OrcaWhirlpool is the Orca Whirlpool program ID.
const OrcaWhirlpool = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"

// DefaultOrcaFee is the fallback fee when the on-chain rate is unset.
const DefaultOrcaFee = 0.003

// Orca Whirlpool account layout offsets (653-byte account).
// fee_rate is hundredths of a basis point (u16); vault pubkeys follow
// the per-side mint fields.
const (
	orcaStateLen       = 653
	orcaFeeRateOffset  = 45
	orcaVaultAOffset   = 133
	orcaVaultBOffset   = 213
	orcaFeeRateDivisor = 1_000_000
)

// OrcaFetcher normalizes Orca Whirlpool pools.
type OrcaFetcher struct {
	reader solana.Reader
	pools  []PoolConfig
	logger *log.Logger
}

// NewOrcaFetcher creates a fetcher for the configured Whirlpool pools.
func NewOrcaFetcher(reader solana.Reader, pools []PoolConfig, logger *log.Logger) *OrcaFetcher {
	return &OrcaFetcher{
		reader: reader,
		pools:  pools,
		logger: logger,
	}
}

// Venue returns domain.VenueOrca.
func (f *OrcaFetcher) Venue() domain.Venue {
	return domain.VenueOrca
}

// FetchPools reads whirlpool state accounts, extracts the on-chain fee
// rate and vault addresses, and normalizes vault balances into
// reserves. Malformed or empty pools are logged and skipped.
func (f *OrcaFetcher) FetchPools(ctx context.Context) ([]*domain.Pool, error) {
	if len(f.pools) == 0 {
		return nil, nil
	}

	addresses := make([]string, len(f.pools))
	for i, cfg := range f.pools {
		addresses[i] = cfg.Address
	}

	states, err := f.reader.GetAccounts(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("orca pool states: %w", err)
	}

	type vaultPair struct {
		cfg    PoolConfig
		vaultA string
		vaultB string
		fee    float64
	}
	var resolved []vaultPair
	var vaultAddrs []string

	for _, cfg := range f.pools {
		state, ok := states[cfg.Address]
		if !ok {
			f.logger.Printf("orca pool %s: account not found, skipping", cfg.Address)
			continue
		}
		if len(state.Data) < orcaStateLen {
			f.logger.Printf("orca pool %s: state %d bytes, want %d, skipping", cfg.Address, len(state.Data), orcaStateLen)
			continue
		}

		vaultA, err := readPubkey(state.Data, orcaVaultAOffset)
		if err != nil {
			f.logger.Printf("orca pool %s: %v, skipping", cfg.Address, err)
			continue
		}
		vaultB, err := readPubkey(state.Data, orcaVaultBOffset)
		if err != nil {
			f.logger.Printf("orca pool %s: %v, skipping", cfg.Address, err)
			continue
		}

		fee := cfg.FeeRate
		if fee == 0 {
			feeRate := binary.LittleEndian.Uint16(state.Data[orcaFeeRateOffset : orcaFeeRateOffset+2])
			fee = float64(feeRate) / orcaFeeRateDivisor
		}
		if fee == 0 {
			fee = DefaultOrcaFee
		}

		vp := vaultPair{
			cfg:    cfg,
			vaultA: base58.Encode(vaultA),
			vaultB: base58.Encode(vaultB),
			fee:    fee,
		}
		resolved = append(resolved, vp)
		vaultAddrs = append(vaultAddrs, vp.vaultA, vp.vaultB)
	}

	if len(resolved) == 0 {
		return nil, nil
	}

	vaults, err := f.reader.GetAccounts(ctx, vaultAddrs)
	if err != nil {
		return nil, fmt.Errorf("orca vaults: %w", err)
	}

	now := time.Now().UnixMilli()
	var out []*domain.Pool

	for _, vp := range resolved {
		vaultA := vaults[vp.vaultA]
		vaultB := vaults[vp.vaultB]
		if vaultA == nil || vaultB == nil {
			f.logger.Printf("orca pool %s: vault account missing, skipping", vp.cfg.Address)
			continue
		}

		reserveA, err := parseTokenAmount(vaultA.Data, vp.cfg.TokenA.Decimals)
		if err != nil {
			f.logger.Printf("orca pool %s: %v, skipping", vp.cfg.Address, err)
			continue
		}
		reserveB, err := parseTokenAmount(vaultB.Data, vp.cfg.TokenB.Decimals)
		if err != nil {
			f.logger.Printf("orca pool %s: %v, skipping", vp.cfg.Address, err)
			continue
		}

		pool, err := buildPool(domain.VenueOrca, vp.cfg, reserveA, reserveB, vp.fee, now)
		if err != nil {
			f.logger.Printf("orca pool %s: %v, skipping", vp.cfg.Address, err)
			continue
		}
		out = append(out, pool)
	}

	return out, nil
}
