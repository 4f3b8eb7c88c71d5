package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	errSlowClient   = errors.New("hub client send buffer full")
	errClientClosed = errors.New("hub client closed")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub pushes the latest state produced by source to every websocket client.
// Each Notify re-reads source, so the last push is never stale.
type Hub struct {
	source     func() any
	pingPeriod time.Duration

	mu      sync.Mutex
	clients map[*hubConn]struct{}
}

func NewHub(source func() any, pingPeriod time.Duration) *Hub {
	return &Hub{
		source:     source,
		pingPeriod: pingPeriod,
		clients:    make(map[*hubConn]struct{}),
	}
}

type hubConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *hubConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- b:
	default:
		return errSlowClient
	}
	return nil
}

func (c *hubConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// Notify marshals the current state once and fans it out. Slow clients are
// dropped.
func (h *Hub) Notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}
	data, err := json.Marshal(h.source())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("hub marshal")
		return
	}
	for c := range h.clients {
		if err := c.TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("dropping hub client")
			delete(h.clients, c)
			c.Close()
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request, sends the current state and keeps the
// client registered until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	c := &hubConn{conn: ws, send: make(chan []byte, 16)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	data, err := json.Marshal(h.source())
	if err == nil {
		_ = c.TrySend(data)
	}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *hubConn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.Close()
}

func (h *Hub) writePump(c *hubConn) {
	var tick <-chan time.Time
	if h.pingPeriod > 0 {
		ticker := time.NewTicker(h.pingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-tick:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				h.remove(c)
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				h.remove(c)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "adapters.http").Msg("hub write error")
				h.remove(c)
				return
			}
		}
	}
}

// readPump only watches for the client going away.
func (h *Hub) readPump(c *hubConn) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
