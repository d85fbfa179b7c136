package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

// MessageType tags frames sent to websocket clients.
type MessageType string

const (
	MessageHello  MessageType = "hello"
	MessageChange MessageType = "change"
)

// Message is the websocket frame.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Change    *Change     `json:"change,omitempty"`
}

const writeTimeout = 5 * time.Second

// Hub broadcasts changes to connected websocket clients.
type Hub struct {
	clients   map[*websocket.Conn]struct{}
	clientsMu sync.RWMutex

	broadcast chan Change

	ctx    context.Context
	cancel context.CancelFunc

	originPatterns []string
}

// NewHub creates a hub. originPatterns is passed to websocket.Accept; empty
// means same-origin only.
func NewHub(originPatterns []string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:        make(map[*websocket.Conn]struct{}),
		broadcast:      make(chan Change, 100),
		ctx:            ctx,
		cancel:         cancel,
		originPatterns: originPatterns,
	}
}

// Publish queues c for broadcast. Drops c when the queue is full.
func (h *Hub) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- c:
	case <-h.ctx.Done():
	default:
		log.Warn().Str("key", c.Key).Msg("broadcast queue full, dropping change")
	}
}

// Run delivers queued changes until ctx is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-h.broadcast:
			h.send(Message{Type: MessageChange, Timestamp: time.Now().UTC(), Change: &c})
		}
	}
}

func (h *Hub) shutdown() {
	h.cancel()
	h.clientsMu.Lock()
	for conn := range h.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.clients, conn)
	}
	h.clientsMu.Unlock()
}

func (h *Hub) send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal change message")
		return
	}

	h.clientsMu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clientsMu.RUnlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			log.Debug().Err(err).Msg("dropping websocket client after failed write")
			h.remove(conn)
		}
	}
}

// ServeHTTP upgrades the request and holds the connection until the client
// goes away or the hub stops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	if h.ctx.Err() != nil {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.clientsMu.Unlock()
	log.Ctx(r.Context()).Info().Int("clients", count).Msg("events client connected")

	hello, _ := json.Marshal(Message{Type: MessageHello, Timestamp: time.Now().UTC()})
	ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
	err = conn.Write(ctx, websocket.MessageText, hello)
	cancel()
	if err != nil {
		h.remove(conn)
		return
	}

	h.readLoop(conn)
}

// readLoop discards client frames; it returns once the connection closes.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.clientsMu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.clientsMu.Unlock()
	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}
