package rtc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Reception/internal/adapters/signal"
	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/core/coretest"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// fakeRoom plays the room server's side of the signaling socket.
type fakeRoom struct {
	t   *testing.T
	srv *httptest.Server

	tokens   chan string
	received chan signal.Message

	onConnect func(*fakeRoom)
	onMessage func(*fakeRoom, signal.Message)

	mu sync.Mutex
	ws *websocket.Conn
	pc *webrtc.PeerConnection
}

func newFakeRoom(t *testing.T, onConnect func(*fakeRoom), onMessage func(*fakeRoom, signal.Message)) *fakeRoom {
	t.Helper()
	r := &fakeRoom{
		t:         t,
		tokens:    make(chan string, 1),
		received:  make(chan signal.Message, 256),
		onConnect: onConnect,
		onMessage: onMessage,
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.tokens <- req.URL.Query().Get("access_token")
		r.mu.Lock()
		r.ws = ws
		r.mu.Unlock()
		go r.readLoop(ws)
		if r.onConnect != nil {
			r.onConnect(r)
		}
	}))
	t.Cleanup(func() {
		r.mu.Lock()
		if r.ws != nil {
			_ = r.ws.Close()
		}
		if r.pc != nil {
			_ = r.pc.Close()
		}
		r.mu.Unlock()
		r.srv.Close()
	})
	return r
}

func (r *fakeRoom) endpoint() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http") + "/rtc"
}

func (r *fakeRoom) send(m signal.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ws.WriteJSON(m); err != nil {
		r.t.Logf("room send %s: %v", m.Type, err)
	}
}

func (r *fakeRoom) hangUp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.ws.Close()
}

func (r *fakeRoom) readLoop(ws *websocket.Conn) {
	for {
		var m signal.Message
		if err := ws.ReadJSON(&m); err != nil {
			return
		}
		select {
		case r.received <- m:
		default:
		}
		if r.onMessage != nil {
			r.onMessage(r, m)
		}
	}
}

// answerOffers answers every offer the client sends from one server-side
// PeerConnection.
func answerOffers(r *fakeRoom, m signal.Message) {
	if m.Type != signal.TypeOffer {
		return
	}
	r.mu.Lock()
	if r.pc == nil {
		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
		if err != nil {
			r.mu.Unlock()
			r.t.Errorf("room peer connection: %v", err)
			return
		}
		r.pc = pc
	}
	pc := r.pc
	r.mu.Unlock()

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: m.SDP}); err != nil {
		r.t.Errorf("room apply offer: %v", err)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		r.t.Errorf("room create answer: %v", err)
		return
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		r.t.Errorf("room set answer: %v", err)
		return
	}
	<-gathered
	r.send(signal.Message{Type: signal.TypeAnswer, SDP: pc.LocalDescription().SDP})
}

func joinWith(participants ...signal.ParticipantJSON) func(*fakeRoom) {
	return func(r *fakeRoom) {
		r.send(signal.Message{Type: signal.TypeJoined, Participants: participants})
	}
}

func newTestTransport() *Transport {
	return NewTransport(webrtc.Configuration{}, signal.Options{})
}

func connect(t *testing.T, room *fakeRoom) core.Connection {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := newTestTransport().Connect(ctx, room.endpoint(), "t1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func nextEvent(t *testing.T, events <-chan core.Event) core.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("events closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
	return core.Event{}
}

func TestConnectJoins(t *testing.T) {
	room := newFakeRoom(t, joinWith(signal.ParticipantJSON{
		Identity: "receptionist",
		Tracks:   []signal.TrackJSON{{SID: "TR_v", Kind: "video"}},
	}), nil)

	conn := connect(t, room)

	if tok := <-room.tokens; tok != "t1" {
		t.Fatalf("access token %q", tok)
	}
	snap := conn.Participants()
	if len(snap) != 1 || snap[0].Participant.Identity != "receptionist" {
		t.Fatalf("participants %+v", snap)
	}
	if tr := snap[0].Tracks; len(tr) != 1 || tr[0].SID != "TR_v" || tr[0].Subscribed {
		t.Fatalf("tracks %+v", tr)
	}

	room.send(signal.Message{Type: signal.TypeTrackPublished, Identity: "receptionist-2", SID: "TR_a", Kind: "audio"})
	if ev := nextEvent(t, conn.Events()); ev.Type != core.EventParticipantJoined || ev.Participant.Identity != "receptionist-2" {
		t.Fatalf("event %+v", ev)
	}
	if ev := nextEvent(t, conn.Events()); ev.Type != core.EventTrackPublished || ev.Track.Kind != domain.KindAudio {
		t.Fatalf("event %+v", ev)
	}
}

func TestConnectRefused(t *testing.T) {
	room := newFakeRoom(t, func(r *fakeRoom) {
		r.send(signal.Message{Type: signal.TypeError, Error: "invalid token"})
	}, nil)

	_, err := newTestTransport().Connect(context.Background(), room.endpoint(), "bad")
	if err == nil || !strings.Contains(err.Error(), "invalid token") {
		t.Fatalf("err %v", err)
	}
}

func TestConnectSignalingClosedBeforeJoin(t *testing.T) {
	room := newFakeRoom(t, func(r *fakeRoom) { r.hangUp() }, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := newTestTransport().Connect(ctx, room.endpoint(), "t1")
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err %v, want signaling closed", err)
	}
}

func TestConnectHonorsContext(t *testing.T) {
	room := newFakeRoom(t, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := newTestTransport().Connect(ctx, room.endpoint(), "t1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err %v", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	room := newFakeRoom(t, nil, nil)
	endpoint := room.endpoint()
	room.srv.Close()

	if _, err := newTestTransport().Connect(context.Background(), endpoint, "t1"); err == nil {
		t.Fatal("connected to a closed server")
	}
}

func TestPublishRoundTrip(t *testing.T) {
	room := newFakeRoom(t, joinWith(), answerOffers)
	conn := connect(t, room)

	track, err := NewDevices("guest-lobby").Acquire(context.Background(), domain.KindVideo)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Publish(ctx, track); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestPublishRejectsForeignTrack(t *testing.T) {
	room := newFakeRoom(t, joinWith(), nil)
	conn := connect(t, room)

	err := conn.Publish(context.Background(), coretest.NewLocalTrack("x", domain.KindVideo))
	if !errors.Is(err, ErrUnsupportedTrack) {
		t.Fatalf("err %v", err)
	}
}

func TestCloseClosesEventsWithPendingEmit(t *testing.T) {
	room := newFakeRoom(t, joinWith(), nil)
	conn := connect(t, room)

	// Nobody reads Events, so the read pump ends up blocked in emit.
	const burst = 100
	for i := 0; i < burst; i++ {
		room.send(signal.Message{Type: signal.TypeParticipantJoin, Identity: fmt.Sprintf("receptionist-%d", i)})
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(conn.Events()) < cap(conn.Events()) {
		if time.Now().After(deadline) {
			t.Fatalf("events buffered %d, want full", len(conn.Events()))
		}
		time.Sleep(5 * time.Millisecond)
	}

	closed := make(chan error, 1)
	go func() { closed <- conn.Close() }()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("close blocked behind a pending emit")
	}

	n := 0
	for range conn.Events() {
		n++
	}
	if n > burst {
		t.Fatalf("drained %d events, more than sent", n)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
