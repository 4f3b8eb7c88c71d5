// Package coretest provides in-process fakes of the core collaborators so the
// orchestration packages can be tested without a token service or a live
// transport.
package coretest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
)

// Compile-time interface checks.
var (
	_ core.CredentialFetcher = (*Fetcher)(nil)
	_ core.Transport         = (*Transport)(nil)
	_ core.Connection        = (*Conn)(nil)
	_ core.Devices           = (*Devices)(nil)
	_ core.LocalTrack        = (*LocalTrack)(nil)
	_ core.RemoteTrack       = (*RemoteTrack)(nil)
	_ core.SinkFactory       = (*Sinks)(nil)
)

// FetchResult is the canned answer for one room.
type FetchResult struct {
	Endpoint string
	Token    string
	Err      error
}

// Fetcher answers from Results. Unknown rooms get a token named after the
// room. When Gate is set, Fetch waits for it to be closed first.
type Fetcher struct {
	Gate chan struct{}

	mu      sync.Mutex
	Results map[domain.RoomID]FetchResult
	Calls   []string
}

func NewFetcher() *Fetcher {
	return &Fetcher{Results: make(map[domain.RoomID]FetchResult)}
}

func (f *Fetcher) Fetch(ctx context.Context, identity string, room domain.RoomID) (domain.Credential, error) {
	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return domain.Credential{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, identity+"@"+string(room))
	res, ok := f.Results[room]
	if !ok {
		res = FetchResult{Token: "token-" + string(room)}
	}
	if res.Err != nil {
		return domain.Credential{}, res.Err
	}
	return domain.Credential{Endpoint: res.Endpoint, Token: res.Token, Identity: identity, Room: room}, nil
}

func (f *Fetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// Dial records one Connect call.
type Dial struct {
	Endpoint string
	Token    string
}

// Transport hands out Conns. Snapshot seeds every new Conn's participants.
type Transport struct {
	Err        error
	PublishErr error
	Snapshot   []core.ParticipantSnapshot
	// OnPublish runs inside every Publish of every Conn, before it returns.
	OnPublish func(*Conn)

	mu    sync.Mutex
	Dials []Dial
	Conns []*Conn
}

func (t *Transport) Connect(_ context.Context, endpoint, token string) (core.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Dials = append(t.Dials, Dial{Endpoint: endpoint, Token: token})
	if t.Err != nil {
		return nil, t.Err
	}
	c := NewConn(t.Snapshot)
	c.PublishErr = t.PublishErr
	c.OnPublish = t.OnPublish
	t.Conns = append(t.Conns, c)
	return c, nil
}

func (t *Transport) DialsSnapshot() []Dial {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Dial(nil), t.Dials...)
}

// LastConn returns the most recent Conn, or nil.
func (t *Transport) LastConn() *Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.Conns) == 0 {
		return nil
	}
	return t.Conns[len(t.Conns)-1]
}

type Conn struct {
	PublishErr error
	OnPublish  func(*Conn)

	mu        sync.Mutex
	snapshot  []core.ParticipantSnapshot
	published []core.LocalTrack
	events    chan core.Event
	closed    bool
}

func NewConn(snapshot []core.ParticipantSnapshot) *Conn {
	return &Conn{snapshot: snapshot, events: make(chan core.Event, 64)}
}

func (c *Conn) Publish(_ context.Context, track core.LocalTrack) error {
	if c.OnPublish != nil {
		c.OnPublish(c)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PublishErr != nil {
		return c.PublishErr
	}
	c.published = append(c.published, track)
	return nil
}

func (c *Conn) Published() []core.LocalTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.LocalTrack(nil), c.published...)
}

func (c *Conn) Participants() []core.ParticipantSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

func (c *Conn) Events() <-chan core.Event { return c.events }

// Push delivers ev on the event stream. Dropped once closed.
func (c *Conn) Push(ev core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- ev
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Devices hands out LocalTracks with sequential ids. Errs fails a kind.
type Devices struct {
	Errs map[domain.TrackKind]error

	mu       sync.Mutex
	n        int
	Acquired []*LocalTrack
}

func (d *Devices) Acquire(_ context.Context, kind domain.TrackKind) (core.LocalTrack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.Errs[kind]; err != nil {
		return nil, err
	}
	d.n++
	t := NewLocalTrack(fmt.Sprintf("%s-%d", kind, d.n), kind)
	d.Acquired = append(d.Acquired, t)
	return t, nil
}

type LocalTrack struct {
	id   string
	kind domain.TrackKind

	mu       sync.Mutex
	disabled bool
	stopped  bool
}

func NewLocalTrack(id string, kind domain.TrackKind) *LocalTrack {
	return &LocalTrack{id: id, kind: kind}
}

func (t *LocalTrack) ID() string             { return t.id }
func (t *LocalTrack) Kind() domain.TrackKind { return t.kind }

func (t *LocalTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.disabled
}

func (t *LocalTrack) SetEnabled(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = !on
}

func (t *LocalTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *LocalTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type RemoteTrack struct {
	sid  string
	kind domain.TrackKind
}

func NewRemoteTrack(sid string, kind domain.TrackKind) *RemoteTrack {
	return &RemoteTrack{sid: sid, kind: kind}
}

func (t *RemoteTrack) SID() string            { return t.sid }
func (t *RemoteTrack) Kind() domain.TrackKind { return t.kind }

// Sinks records every sink it opens, keyed by track sid.
type Sinks struct {
	mu     sync.Mutex
	Opened map[string]*Sink
}

func (s *Sinks) OpenSink(_ domain.RoomID, track core.RemoteTrack) core.Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Opened == nil {
		s.Opened = make(map[string]*Sink)
	}
	sink := &Sink{}
	s.Opened[track.SID()] = sink
	return sink
}

func (s *Sinks) Get(sid string) *Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Opened[sid]
}

type Sink struct {
	mu     sync.Mutex
	muted  bool
	closed bool
}

func (s *Sink) SetMuted(m bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = m
}

func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Sink) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Subscribed builds a TrackSubscribed event.
func Subscribed(identity, sid string, kind domain.TrackKind) core.Event {
	return core.Event{
		Type:        core.EventTrackSubscribed,
		Participant: domain.NewParticipant(identity),
		Track:       core.TrackInfo{SID: sid, Kind: kind, Subscribed: true, Remote: NewRemoteTrack(sid, kind)},
	}
}

// Unsubscribed builds a TrackUnsubscribed event.
func Unsubscribed(identity, sid string, kind domain.TrackKind) core.Event {
	return core.Event{
		Type:        core.EventTrackUnsubscribed,
		Participant: domain.NewParticipant(identity),
		Track:       core.TrackInfo{SID: sid, Kind: kind},
	}
}
