package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/kvcache/internal/cache"
)

func dial(t *testing.T, hub *Hub, streams ...string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve("tester", streams, w, r)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubPublishesCacheEvents(t *testing.T) {
	hub := NewHub()
	conn := dial(t, hub, StreamCacheEvents, "unknown.stream")

	require.Eventually(t, func() bool { return hub.Subscribers(StreamCacheEvents) == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, 0, hub.Subscribers("unknown.stream"))
	require.Equal(t, int64(1), hub.ActiveConnections())

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hub.Publish(cache.Event{Type: cache.EventEvicted, Key: "c", Victim: "a", Count: 1, At: at})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Stream string      `json:"stream"`
		Event  string      `json:"event"`
		Data   cache.Event `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, StreamCacheEvents, msg.Stream)
	require.Equal(t, "evicted", msg.Event)
	require.Equal(t, "c", msg.Data.Key)
	require.Equal(t, "a", msg.Data.Victim)
	require.True(t, msg.Data.At.Equal(at))
}

func TestHubControlMessages(t *testing.T) {
	hub := NewHub()
	conn := dial(t, hub)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "subscribe", "streams": []string{" Cache.Events "}}))
	require.Eventually(t, func() bool { return hub.Subscribers(StreamCacheEvents) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var pong Message
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, "pong", pong.Event)
	require.Equal(t, StreamSystem, pong.Stream)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "unsubscribe", "streams": []string{StreamCacheEvents}}))
	require.Eventually(t, func() bool { return hub.Subscribers(StreamCacheEvents) == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub := NewHub()
	conn := dial(t, hub, StreamCacheEvents)

	require.Eventually(t, func() bool { return hub.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return hub.ActiveConnections() == 0 && hub.Subscribers(StreamCacheEvents) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	hub.Publish(cache.Event{Type: cache.EventCreated, Key: "a"})

	var nilHub *Hub
	nilHub.Publish(cache.Event{Type: cache.EventCreated})
	require.Zero(t, nilHub.ActiveConnections())
}

func TestOriginCheck(t *testing.T) {
	hub := NewHub()

	req := httptest.NewRequest(http.MethodGet, "http://cache.example.com/ws/cache", nil)
	req.Host = "cache.example.com:3000"
	require.True(t, hub.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://cache.example.com")
	require.True(t, hub.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "http://localhost:5173")
	require.True(t, hub.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example.org")
	require.False(t, hub.upgrader.CheckOrigin(req))
}

func TestNormalizeStreams(t *testing.T) {
	require.Equal(t, []string{"cache.events", "system"}, NormalizeStreams([]string{"Cache.Events", " ", "system", "cache.events"}))
}
