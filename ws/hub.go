// Package ws pushes queue snapshots to connected screens.
//
// Hub bertanggung jawab untuk:
//   - menyimpan koneksi client per topic,
//   - menyimpan snapshot terakhir tiap topic agar client baru langsung dapat data,
//   - broadcast snapshot ke semua client yang subscribe ke topic tersebut.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FrameQueueSnapshot is the only frame type the server sends.
const FrameQueueSnapshot = "queue_snapshot"

const defaultSendBuffer = 8

// Frame is the envelope of every message written to a socket.
type Frame struct {
	Type   string          `json:"type"`
	Topic  string          `json:"topic"`
	Data   json.RawMessage `json:"data"`
	SentAt time.Time       `json:"sent_at"`
}

// Client mewakili satu koneksi WebSocket yang subscribe ke satu topic.
// Its queue is bounded: when the socket falls behind, the oldest pending
// frame is dropped, since only the newest snapshot matters.
type Client struct {
	ID    string
	Topic string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// Send is drained by the connection's write pump. It is closed on Unregister.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// enqueue never blocks. It reports whether an older frame was discarded.
func (c *Client) enqueue(msg []byte) (dropped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	for {
		select {
		case c.send <- msg:
			return dropped
		default:
		}
		select {
		case <-c.send:
			dropped = true
		default:
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub mengelola semua koneksi client. Safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	latest  map[string][]byte

	bufSize int
	origins []string
	logger  zerolog.Logger
	now     func() time.Time
}

type HubOption func(*Hub)

// WithSendBuffer sets how many frames a slow client may have pending.
func WithSendBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufSize = n
		}
	}
}

func WithLogger(l zerolog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// WithAllowedOrigins sets the browser origins allowed to open a socket.
// "*" admits any origin.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) { h.origins = origins }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[string]map[*Client]struct{}),
		latest:  make(map[string][]byte),
		bufSize: defaultSendBuffer,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewClient allocates a client for topic. It is not subscribed until Register.
func (h *Hub) NewClient(topic string) *Client {
	return &Client{
		ID:    uuid.New().String(),
		Topic: topic,
		send:  make(chan []byte, h.bufSize),
	}
}

// Register subscribes the client and queues the topic's latest frame, so the
// first thing a new screen receives is the current state.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.Topic] == nil {
		h.clients[c.Topic] = make(map[*Client]struct{})
	}
	h.clients[c.Topic][c] = struct{}{}
	if msg, ok := h.latest[c.Topic]; ok {
		c.enqueue(msg)
	}
	h.logger.Debug().Str("client_id", c.ID).Str("topic", c.Topic).Msg("client registered")
}

// Unregister removes the client and closes its Send channel. Calling it more
// than once is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.clients[c.Topic]
	if !ok {
		return
	}
	if _, ok := subscribers[c]; !ok {
		return
	}
	delete(subscribers, c)
	if len(subscribers) == 0 {
		delete(h.clients, c.Topic)
	}
	c.close()
	h.logger.Debug().Str("client_id", c.ID).Str("topic", c.Topic).Msg("client unregistered")
}

// Publish wraps payload in a queue_snapshot frame, remembers it as the
// topic's latest and fans it out. It never blocks on slow clients.
func (h *Hub) Publish(topic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("marshal snapshot")
		return
	}
	msg, err := json.Marshal(Frame{
		Type:   FrameQueueSnapshot,
		Topic:  topic,
		Data:   data,
		SentAt: h.now().UTC(),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("marshal frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest[topic] = msg
	for c := range h.clients[topic] {
		if c.enqueue(msg) {
			h.logger.Debug().Str("client_id", c.ID).Str("topic", topic).Msg("slow client, dropped stale frame")
		}
	}
}

// Latest returns the last frame published on topic.
func (h *Hub) Latest(topic string) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, ok := h.latest[topic]
	return msg, ok
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subscribers := range h.clients {
		n += len(subscribers)
	}
	return n
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}
