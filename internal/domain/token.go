package domain

// Token represents an SPL token observed in a liquidity pool.
// Immutable once observed.
type Token struct {
	Mint     string // token mint address (base58)
	Symbol   string // human-readable symbol
	Decimals int    // decimal precision
}

// TokenCategory classifies a token for pattern fingerprinting.
type TokenCategory string

// Token category constants.
const (
	CategoryNative TokenCategory = "native" // SOL / wrapped SOL
	CategoryStable TokenCategory = "stable" // USDC, USDT
	CategoryLSD    TokenCategory = "lsd"    // liquid staking derivatives
	CategoryMajor  TokenCategory = "major"  // established large-cap tokens
	CategoryOther  TokenCategory = "other"  // everything else
)

// Well-known mint addresses on Solana mainnet.
const (
	MintWSOL    = "So11111111111111111111111111111111111111112"
	MintUSDC    = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT    = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	MintMSOL    = "mSoLzYCxHdYgdzU16g5QM7fGV9qFZyLkgmQwb2xnoLh"
	MintStSOL   = "7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj"
	MintJitoSOL = "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn"
)

var categoryByMint = map[string]TokenCategory{
	MintWSOL:    CategoryNative,
	MintUSDC:    CategoryStable,
	MintUSDT:    CategoryStable,
	MintMSOL:    CategoryLSD,
	MintStSOL:   CategoryLSD,
	MintJitoSOL: CategoryLSD,
}

// Categorize returns the category for a mint address.
// Unknown mints are CategoryOther.
func Categorize(mint string) TokenCategory {
	if c, ok := categoryByMint[mint]; ok {
		return c
	}
	return CategoryOther
}
