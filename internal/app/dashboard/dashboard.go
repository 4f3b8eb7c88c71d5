// Package dashboard fans a receptionist out over a fixed list of rooms: one
// Session, Router and playback flag per room, aggregated into FeedStates.
package dashboard

import (
	"context"
	"sync"

	"github.com/dkeye/Reception/internal/app/mute"
	"github.com/dkeye/Reception/internal/app/session"
	"github.com/dkeye/Reception/internal/app/tracks"
	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/dkeye/Reception/internal/metrics"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Rooms           []domain.RoomID
	Identity        string
	DefaultEndpoint string
	Eligible        tracks.Eligible
	Features        core.Features

	Credentials core.CredentialFetcher
	Transport   core.Transport
	Devices     core.Devices
	Sinks       core.SinkFactory

	// OnChange receives every tile after any of them changed. It may be
	// called from several goroutines at once.
	OnChange func([]FeedState)
}

// FeedState is what one tile renders from.
type FeedState struct {
	Room             domain.RoomID  `json:"room"`
	Label            string         `json:"label"`
	Session          session.State  `json:"session"`
	RemoteVideoBound bool           `json:"remote_video_bound"`
	Video            tracks.Binding `json:"video"`
	AudioMuted       bool           `json:"audio_muted"`
	Fullscreen       bool           `json:"fullscreen"`
	Features         core.Features  `json:"features"`
}

type tile struct {
	room     domain.RoomID
	session  *session.Session
	router   *tracks.Router
	playback *mute.Playback
}

type Dashboard struct {
	opts  Options
	tiles []*tile
	rooms map[domain.RoomID]*tile
	wg    sync.WaitGroup

	mu         sync.Mutex
	fullscreen domain.RoomID
	started    bool
}

func New(opts Options) *Dashboard {
	d := &Dashboard{
		opts:  opts,
		rooms: make(map[domain.RoomID]*tile, len(opts.Rooms)),
	}
	for _, room := range opts.Rooms {
		if _, dup := d.rooms[room]; dup {
			log.Warn().Str("module", "dashboard").Str("room", string(room)).Msg("duplicate room ignored")
			continue
		}
		t := &tile{room: room}
		t.router = tracks.New(room, tracks.Options{
			Eligible: opts.Eligible,
			Sinks:    opts.Sinks,
			OnChange: func(tracks.View) { d.changed() },
		})
		t.session = session.New(session.Options{
			Room:            room,
			Identity:        opts.Identity,
			DefaultEndpoint: opts.DefaultEndpoint,
			PublishLocal:    opts.Features.PublishLocal,
			Credentials:     opts.Credentials,
			Transport:       opts.Transport,
			Devices:         opts.Devices,
			Router:          t.router,
			OnChange:        func(session.State) { d.changed() },
		})
		t.playback = mute.NewPlayback(t.router)
		d.tiles = append(d.tiles, t)
		d.rooms[room] = t
	}
	return d
}

// Start launches every Session independently. It does not wait for them.
func (d *Dashboard) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	for _, t := range d.tiles {
		d.wg.Add(1)
		go func(t *tile) {
			defer d.wg.Done()
			t.session.Start(ctx)
		}(t)
	}
	log.Info().Str("module", "dashboard").Int("rooms", len(d.tiles)).Msg("dashboard started")
}

// Wait blocks until every Session's start routine has returned.
func (d *Dashboard) Wait() {
	d.wg.Wait()
}

func (d *Dashboard) Rooms() []domain.RoomID {
	out := make([]domain.RoomID, 0, len(d.tiles))
	for _, t := range d.tiles {
		out = append(out, t.room)
	}
	return out
}

func (d *Dashboard) Feeds() []FeedState {
	d.mu.Lock()
	fullscreen := d.fullscreen
	d.mu.Unlock()

	out := make([]FeedState, 0, len(d.tiles))
	for _, t := range d.tiles {
		out = append(out, d.feed(t, fullscreen))
	}
	return out
}

func (d *Dashboard) Feed(room domain.RoomID) (FeedState, bool) {
	t, ok := d.rooms[room]
	if !ok {
		return FeedState{}, false
	}
	d.mu.Lock()
	fullscreen := d.fullscreen
	d.mu.Unlock()
	return d.feed(t, fullscreen), true
}

func (d *Dashboard) feed(t *tile, fullscreen domain.RoomID) FeedState {
	view := t.router.View()
	return FeedState{
		Room:             t.room,
		Label:            string(t.room),
		Session:          t.session.State(),
		RemoteVideoBound: view.VideoBound,
		Video:            view.Video,
		AudioMuted:       t.playback.Muted(),
		Fullscreen:       fullscreen != "" && fullscreen == t.room,
		Features:         d.opts.Features,
	}
}

// EnterFullscreen makes room the only fullscreen tile, implicitly leaving
// any other one.
func (d *Dashboard) EnterFullscreen(room domain.RoomID) bool {
	if !d.opts.Features.Fullscreen {
		return false
	}
	if _, ok := d.rooms[room]; !ok {
		return false
	}
	d.mu.Lock()
	prev := d.fullscreen
	d.fullscreen = room
	d.mu.Unlock()

	if prev != room {
		metrics.FullscreenChanges.Inc()
		log.Info().Str("module", "dashboard").Str("room", string(room)).Str("previous", string(prev)).Msg("fullscreen")
		d.changed()
	}
	return true
}

func (d *Dashboard) ExitFullscreen() {
	d.mu.Lock()
	prev := d.fullscreen
	d.fullscreen = ""
	d.mu.Unlock()

	if prev != "" {
		metrics.FullscreenChanges.Inc()
		d.changed()
	}
}

// Fullscreen returns the fullscreen room, if any.
func (d *Dashboard) Fullscreen() (domain.RoomID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fullscreen, d.fullscreen != ""
}

// ToggleRemotePlayback flips room's playback-mute and returns the new value.
// ok is false for unknown rooms.
func (d *Dashboard) ToggleRemotePlayback(room domain.RoomID) (muted, ok bool) {
	t, ok := d.rooms[room]
	if !ok {
		return false, false
	}
	if !d.opts.Features.Mute {
		return t.playback.Muted(), true
	}
	return t.playback.Toggle(), true
}

// ToggleLocal flips the receptionist's own microphone in room, when the
// dashboard publishes.
func (d *Dashboard) ToggleLocal(room domain.RoomID) (muted, ok bool) {
	t, ok := d.rooms[room]
	if !ok {
		return false, false
	}
	if !d.opts.Features.Mute {
		return mute.LocalMuted(t.session), true
	}
	muted = mute.ToggleLocal(t.session)
	t.session.Changed()
	return muted, true
}

// Close disposes every Session.
func (d *Dashboard) Close() {
	for _, t := range d.tiles {
		t.session.Dispose()
	}
}

func (d *Dashboard) changed() {
	if d.opts.OnChange != nil {
		d.opts.OnChange(d.Feeds())
	}
}
