package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout is how long to wait for subscription confirmation.
	SubscribeTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// WSClientImpl implements AccountStream using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to notification channel
	subs   map[int64]chan AccountNotification
	subsMu sync.RWMutex

	// activeAccounts stores addresses for resubscription after reconnect
	activeAccounts   map[int64]string
	activeAccountsMu sync.RWMutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClientImpl{
		endpoint:       endpoint,
		config:         cfg,
		subs:           make(map[int64]chan AccountNotification),
		activeAccounts: make(map[int64]string),
		pendingSubs:    make(map[uint64]chan int64),
		done:           make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// wsRequest is a JSON-RPC request over the socket.
type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// wsResponse is either a subscription confirmation or a notification.
type wsResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// accountNotificationParams is the payload of accountNotification.
type accountNotificationParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Context rpcContext  `json:"context"`
		Value   *rawAccount `json:"value"`
	} `json:"result"`
}

// SubscribeAccount subscribes to state changes of a single account.
func (c *WSClientImpl) SubscribeAccount(ctx context.Context, address string) (<-chan AccountNotification, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}

	subID, err := c.subscribeAccountInternal(ctx, address)
	if err != nil {
		return nil, err
	}

	// Buffered channel absorbs notification bursts between reads
	ch := make(chan AccountNotification, 1024)
	c.subsMu.Lock()
	c.subs[subID] = ch
	c.subsMu.Unlock()

	// Store address for resubscription after reconnect
	c.activeAccountsMu.Lock()
	c.activeAccounts[subID] = address
	c.activeAccountsMu.Unlock()

	return ch, nil
}

// subscribeAccountInternal sends accountSubscribe and waits for the
// subscription ID, without registering channels.
func (c *WSClientImpl) subscribeAccountInternal(ctx context.Context, address string) (int64, error) {
	reqID := c.requestID.Add(1)

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "accountSubscribe",
		Params: []interface{}{
			address,
			map[string]string{
				"encoding":   "base64",
				"commitment": "confirmed",
			},
		},
	}

	confirmCh := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	cleanup := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		cleanup()
		return 0, fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		cleanup()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(c.config.SubscribeTimeout):
		cleanup()
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		cleanup()
		return 0, ctx.Err()
	}
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	// Close all subscription channels
	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	// Close pending subscription channels
	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			// Connection error - attempt reconnect with exponential backoff
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// handleMessage dispatches one socket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	var resp wsResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return
	}

	// Subscription confirmation: result carries the subscription ID
	if resp.ID != 0 && resp.Result != nil {
		var subID int64
		if err := json.Unmarshal(resp.Result, &subID); err != nil {
			return
		}
		c.pendingSubsMu.Lock()
		if ch, ok := c.pendingSubs[resp.ID]; ok {
			ch <- subID
			delete(c.pendingSubs, resp.ID)
		}
		c.pendingSubsMu.Unlock()
		return
	}

	if resp.Method != "accountNotification" || resp.Params == nil {
		return
	}

	var params accountNotificationParams
	if err := json.Unmarshal(resp.Params, &params); err != nil {
		return
	}
	if params.Result.Value == nil {
		return
	}

	c.activeAccountsMu.RLock()
	address := c.activeAccounts[params.Subscription]
	c.activeAccountsMu.RUnlock()

	notif := AccountNotification{
		Address:  address,
		Slot:     params.Result.Context.Slot,
		Lamports: params.Result.Value.Lamports,
		Owner:    params.Result.Value.Owner,
	}
	if len(params.Result.Value.Data) >= 1 {
		if data, err := base64.StdEncoding.DecodeString(params.Result.Value.Data[0]); err == nil {
			notif.Data = data
		}
	}

	c.subsMu.RLock()
	ch := c.subs[params.Subscription]
	c.subsMu.RUnlock()

	if ch != nil {
		select {
		case ch <- notif:
		default:
			// Drop when the subscriber is not keeping up
		}
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *WSClientImpl) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	c.resubscribeAll()
}

// resubscribeAll resubscribes all active accounts after reconnect,
// remapping existing channels onto the new subscription IDs.
func (c *WSClientImpl) resubscribeAll() {
	c.activeAccountsMu.RLock()
	accounts := make(map[int64]string, len(c.activeAccounts))
	for id, addr := range c.activeAccounts {
		accounts[id] = addr
	}
	c.activeAccountsMu.RUnlock()

	c.subsMu.RLock()
	channels := make(map[int64]chan AccountNotification, len(c.subs))
	for id, ch := range c.subs {
		channels[id] = ch
	}
	c.subsMu.RUnlock()

	for oldSubID, address := range accounts {
		ch := channels[oldSubID]
		if ch == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newSubID, err := c.subscribeAccountInternal(ctx, address)
		cancel()

		if err != nil {
			// Failed to resubscribe, keep old mapping
			continue
		}

		c.subsMu.Lock()
		delete(c.subs, oldSubID)
		c.subs[newSubID] = ch
		c.subsMu.Unlock()

		c.activeAccountsMu.Lock()
		delete(c.activeAccounts, oldSubID)
		c.activeAccounts[newSubID] = address
		c.activeAccountsMu.Unlock()
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}
