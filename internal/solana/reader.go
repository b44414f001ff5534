package solana

import (
	"context"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Reader defines the chain read interface the pipeline consumes.
// It is strictly read-only; the pipeline never writes to the chain.
type Reader interface {
	// GetAccount retrieves a single account's state.
	// Returns (nil, nil) if the account does not exist.
	GetAccount(ctx context.Context, address string) (*AccountInfo, error)

	// GetAccounts retrieves multiple accounts in one call, keyed by
	// address. Missing accounts are absent from the result map.
	GetAccounts(ctx context.Context, addresses []string) (map[string]*AccountInfo, error)
}

// AccountInfo is raw account state returned by the RPC node.
type AccountInfo struct {
	Address    string // account address (base58)
	Lamports   uint64 // balance in lamports
	Owner      string // owning program id (base58)
	Data       []byte // raw account data
	Executable bool   // whether the account holds a program
	Slot       int64  // slot the state was observed at
}

// ErrInvalidAddress is returned for addresses that are not valid
// 32-byte base58 public keys.
var ErrInvalidAddress = errors.New("invalid account address")

// ValidateAddress checks that an address decodes to 32 bytes.
func ValidateAddress(address string) error {
	decoded, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("%w: %s decodes to %d bytes", ErrInvalidAddress, address, len(decoded))
	}
	return nil
}

// IsOnCurve reports whether the address is a valid ed25519 point.
// Program-derived addresses (pool vaults, AMM authorities) are
// intentionally off-curve; wallet addresses are on-curve.
func IsOnCurve(address string) bool {
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}
