// Package signal is the client side of the transport's websocket signaling
// channel: dialing, a JSON envelope, and the read/write pumps.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type Options struct {
	// PingPeriod between keepalive pings. Zero disables them.
	PingPeriod time.Duration
	ReadLimit  int64
}

// Handler receives every decoded inbound message from the read pump.
type Handler func(Message)

type Conn struct {
	conn *websocket.Conn
	send chan []byte
	opts Options

	mu     sync.RWMutex
	closed bool

	done     chan struct{}
	doneOnce sync.Once
}

// Dial connects to endpoint, passing token as the access_token query
// parameter.
func Dial(ctx context.Context, endpoint, token string, opts Options) (*Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	if opts.ReadLimit > 0 {
		ws.SetReadLimit(opts.ReadLimit)
	}
	return &Conn{
		conn: ws,
		send: make(chan []byte, 32),
		opts: opts,
		done: make(chan struct{}),
	}, nil
}

// Run starts both pumps. handler is called from the read pump only, so
// messages reach it in arrival order.
func (c *Conn) Run(ctx context.Context, handler Handler) {
	go c.writePump(ctx)
	go c.readPump(ctx, handler)
}

// Done is closed once the read pump has exited.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) Send(m Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", m.Type, err)
	}
	return c.trySend(b)
}

func (c *Conn) trySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
