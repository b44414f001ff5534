// Package stub provides in-memory fakes of the solana interfaces for
// tests and offline runs.
package stub

import (
	"context"
	"sync"

	"github.com/krewdev/SealevelStudio4-sub007/internal/solana"
)

// Reader implements solana.Reader backed by an in-memory account map.
type Reader struct {
	mu       sync.RWMutex
	accounts map[string]*solana.AccountInfo

	// Err, when set, is returned by every read.
	Err error
}

// NewReader creates an empty stub reader.
func NewReader() *Reader {
	return &Reader{
		accounts: make(map[string]*solana.AccountInfo),
	}
}

// SetAccount installs or replaces an account.
func (r *Reader) SetAccount(info *solana.AccountInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[info.Address] = info
}

// GetAccount returns the stored account, or (nil, nil) if absent.
func (r *Reader) GetAccount(_ context.Context, address string) (*solana.AccountInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	info, ok := r.accounts[address]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

// GetAccounts returns all stored accounts among the requested addresses.
func (r *Reader) GetAccounts(_ context.Context, addresses []string) (map[string]*solana.AccountInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	out := make(map[string]*solana.AccountInfo, len(addresses))
	for _, addr := range addresses {
		if info, ok := r.accounts[addr]; ok {
			cp := *info
			out[addr] = &cp
		}
	}
	return out, nil
}
