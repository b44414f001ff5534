package solana

import "context"

// AccountStream defines the Solana WebSocket account-subscription interface.
type AccountStream interface {
	// SubscribeAccount subscribes to state changes of a single account.
	SubscribeAccount(ctx context.Context, address string) (<-chan AccountNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// AccountNotification is an account change pushed by the node.
type AccountNotification struct {
	Address  string // subscribed account address
	Slot     int64  // slot the change landed in
	Lamports uint64 // balance after the change
	Owner    string // owning program id
	Data     []byte // raw account data after the change
}
