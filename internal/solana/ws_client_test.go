package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestWSClient_Connect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		// Keep connection open
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClient_SubscribeAccount(t *testing.T) {
	payload := []byte{9, 9, 9}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer c.Close()

		// Read subscribe request
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "accountSubscribe" {
			t.Errorf("expected accountSubscribe, got %s", req.Method)
		}

		// Send subscription confirmation
		confirm := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  int64(555),
		}
		if err := c.WriteJSON(confirm); err != nil {
			t.Errorf("write confirmation: %v", err)
			return
		}

		// Send an account notification
		time.Sleep(50 * time.Millisecond)
		notif := map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "accountNotification",
			"params": map[string]interface{}{
				"subscription": int64(555),
				"result": map[string]interface{}{
					"context": map[string]interface{}{"slot": int64(200)},
					"value": map[string]interface{}{
						"lamports":   uint64(5000),
						"owner":      testAddr2,
						"data":       []string{base64.StdEncoding.EncodeToString(payload), "base64"},
						"executable": false,
					},
				},
			},
		}
		if err := c.WriteJSON(notif); err != nil {
			t.Errorf("write notification: %v", err)
			return
		}

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeAccount(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("SubscribeAccount: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Address != testAddr {
			t.Errorf("expected address %s, got %s", testAddr, notif.Address)
		}
		if notif.Slot != 200 {
			t.Errorf("expected slot 200, got %d", notif.Slot)
		}
		if notif.Lamports != 5000 {
			t.Errorf("expected lamports 5000, got %d", notif.Lamports)
		}
		if len(notif.Data) != len(payload) {
			t.Errorf("expected %d data bytes, got %d", len(payload), len(notif.Data))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for account notification")
	}
}

func TestWSClient_SubscribeAccount_InvalidAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if _, err := client.SubscribeAccount(context.Background(), "not-an-address"); err == nil {
		t.Error("expected error for invalid address")
	}
}

func TestWSClient_CloseIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
