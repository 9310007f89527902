package realtime

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/kvcache/internal/cache"
	"github.com/charlesng35/kvcache/internal/monitoring"
	"github.com/charlesng35/kvcache/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	defaultBufferSize = 64
)

// Message represents a JSON payload delivered to realtime subscribers.
type Message struct {
	Stream string         `json:"stream"`
	Event  string         `json:"event"`
	Data   any            `json:"data,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

type controlMessage struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// Hub fans messages out to websocket subscribers grouped by stream. It
// implements cache.Publisher so the cache service can stream lifecycle events.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string]map[*connection]struct{}
	upgrader      websocket.Upgrader
	log           *zap.Logger
	active        atomic.Int64
}

var _ cache.Publisher = (*Hub)(nil)

// NewHub constructs a realtime hub.
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[string]map[*connection]struct{}),
		log:           logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Serve upgrades the HTTP connection and subscribes the client to streams.
// It blocks until the connection closes.
func (h *Hub) Serve(subject string, streams []string, w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		monitoring.RecordRealtimeFailure("", "upgrade", err.Error())
		return
	}

	client := newConnection(h, socket, subject)
	h.active.Add(1)
	monitoring.RecordRealtimeConnection(1)
	h.log.Debug("client connected", zap.String("subject", subject))

	h.subscribe(client, streams)

	go client.writeLoop()
	client.readLoop()
}

// ActiveConnections reports the number of open websocket connections.
func (h *Hub) ActiveConnections() int64 {
	if h == nil {
		return 0
	}
	return h.active.Load()
}

// Subscribers reports how many connections listen on stream.
func (h *Hub) Subscribers(stream string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[normalizeStream(stream)])
}

// Publish broadcasts a cache lifecycle event on StreamCacheEvents.
func (h *Hub) Publish(evt cache.Event) {
	if h == nil {
		return
	}
	h.BroadcastStream(StreamCacheEvents, Message{Event: string(evt.Type), Data: evt})
}

// BroadcastStream delivers a message to every subscriber listening on stream.
func (h *Hub) BroadcastStream(stream string, message Message) {
	stream = normalizeStream(stream)
	if stream == "" {
		return
	}

	h.mu.RLock()
	targets := make([]*connection, 0, len(h.subscriptions[stream]))
	for client := range h.subscriptions[stream] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	message.Stream = stream
	for _, client := range targets {
		h.enqueue(client, message)
	}
	monitoring.RecordRealtimeBroadcast(stream)
}

func (h *Hub) subscribe(client *connection, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range NormalizeStreams(streams) {
		if _, known := KnownStreams[stream]; !known {
			h.log.Debug("ignoring unknown stream", zap.String("stream", stream), zap.String("subject", client.subject))
			continue
		}
		if _, exists := client.streams[stream]; exists {
			continue
		}
		if h.subscriptions[stream] == nil {
			h.subscriptions[stream] = make(map[*connection]struct{})
		}
		client.streams[stream] = struct{}{}
		h.subscriptions[stream][client] = struct{}{}
		monitoring.RecordRealtimeSubscription(stream, "subscribe")
	}
}

func (h *Hub) unsubscribe(client *connection, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range NormalizeStreams(streams) {
		if h.removeSubscriptionLocked(client, stream) {
			monitoring.RecordRealtimeSubscription(stream, "unsubscribe")
		}
	}
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	for stream := range client.streams {
		h.removeSubscriptionLocked(client, stream)
	}
	h.mu.Unlock()

	h.active.Add(-1)
	monitoring.RecordRealtimeConnection(-1)
	h.log.Debug("client disconnected", zap.String("subject", client.subject))
}

func (h *Hub) removeSubscriptionLocked(client *connection, stream string) bool {
	clients, ok := h.subscriptions[stream]
	if !ok {
		return false
	}
	if _, ok := clients[client]; !ok {
		return false
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.subscriptions, stream)
	}
	delete(client.streams, stream)
	return true
}

// enqueue never blocks: a client whose buffer is full is disconnected.
func (h *Hub) enqueue(client *connection, message Message) {
	select {
	case <-client.done:
	case client.send <- message:
	default:
		h.log.Warn("dropping slow client", zap.String("subject", client.subject), zap.String("stream", message.Stream))
		monitoring.RecordRealtimeFailure(message.Stream, "backpressure", "client buffer full")
		go client.close()
	}
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}

// NormalizeStreams lowercases and trims stream names, dropping blanks and
// duplicates while keeping first-seen order.
func NormalizeStreams(streams []string) []string {
	seen := make(map[string]struct{}, len(streams))
	var result []string
	for _, stream := range streams {
		if stream = normalizeStream(stream); stream == "" {
			continue
		}
		if _, ok := seen[stream]; ok {
			continue
		}
		seen[stream] = struct{}{}
		result = append(result, stream)
	}
	return result
}
