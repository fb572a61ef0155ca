package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonyonah/hedwig/internal/events"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// newPushFixture upgrades one client connection and registers it for u1.
func newPushFixture(t *testing.T) (*PushService, *websocket.Conn) {
	t.Helper()
	push := NewPushService()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		push.Register("u1", conn)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for push.ConnectionCount() == 0 {
		require.True(t, time.Now().Before(deadline), "connection never registered")
		time.Sleep(5 * time.Millisecond)
	}
	return push, client
}

func TestPushTransactionDelivers(t *testing.T) {
	push, client := newPushFixture(t)

	push.PushTransaction("u1", events.TransactionEvent{
		TransactionID: "t1",
		UserID:        "u1",
		TxHash:        "0xabc",
		Status:        "confirmed",
	})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := client.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string                  `json:"type"`
		Data events.TransactionEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(frame, &msg))
	assert.Equal(t, "transaction", msg.Type)
	assert.Equal(t, "0xabc", msg.Data.TxHash)
	assert.Equal(t, "confirmed", msg.Data.Status)
}

func TestPushTransactionSerializesConcurrentPushers(t *testing.T) {
	push, client := newPushFixture(t)

	// Hammer the same connection from many goroutines, the way an HTTP
	// handler and the reconciler overlap in production. Every frame must
	// arrive intact; the socket tolerates only one writer at a time.
	const pushers = 32
	const perPusher = 4

	var wg sync.WaitGroup
	for i := 0; i < pushers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPusher; j++ {
				push.PushTransaction("u1", events.TransactionEvent{
					TransactionID: "t1",
					UserID:        "u1",
					Status:        "pending",
				})
			}
		}()
	}
	wg.Wait()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	for i := 0; i < pushers*perPusher; i++ {
		_, frame, err := client.ReadMessage()
		require.NoError(t, err, "frame %d", i)
		var msg struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(frame, &msg))
		assert.Equal(t, "transaction", msg.Type)
	}
	assert.Equal(t, 1, push.ConnectionCount())
}

func TestUnregisterIsIdempotent(t *testing.T) {
	push := NewPushService()
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		push.Register("u1", conn)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	conn := <-serverConns
	require.Equal(t, 1, push.ConnectionCount())

	push.Unregister("u1", conn)
	assert.Equal(t, 0, push.ConnectionCount())

	// A second unregister, as when a write error and a reader disconnect
	// race, is harmless.
	push.Unregister("u1", conn)
	assert.Equal(t, 0, push.ConnectionCount())

	// Pushing to a user with no connections is a no-op.
	push.PushTransaction("u1", events.TransactionEvent{TransactionID: "t1"})
}
