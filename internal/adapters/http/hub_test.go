package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubPushesLatestState(t *testing.T) {
	var version atomic.Int64
	hub := NewHub(func() any { return map[string]int64{"version": version.Load()} }, 0)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	read := func() string {
		t.Helper()
		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	if got := read(); got != `{"version":0}` {
		t.Fatalf("initial push %s", got)
	}
	if hub.Clients() != 1 {
		t.Fatalf("clients %d", hub.Clients())
	}

	version.Store(7)
	hub.Notify()
	if got := read(); got != `{"version":7}` {
		t.Fatalf("notify push %s", got)
	}
}

func TestHubNotifyWithoutClients(t *testing.T) {
	called := false
	hub := NewHub(func() any { called = true; return nil }, 0)
	hub.Notify()
	if called {
		t.Fatal("source read with no clients")
	}
}

func TestHubConnTrySend(t *testing.T) {
	c := &hubConn{send: make(chan []byte, 1)}
	if err := c.TrySend([]byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := c.TrySend([]byte("b")); !errors.Is(err, errSlowClient) {
		t.Fatalf("err %v, want errSlowClient", err)
	}
	c.closed = true
	if err := c.TrySend([]byte("c")); !errors.Is(err, errClientClosed) {
		t.Fatalf("err %v, want errClientClosed", err)
	}
}
