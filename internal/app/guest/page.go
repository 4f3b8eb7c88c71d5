// Package guest is the publishing side: one Session in the guest's own room,
// previewing the local camera and watching eligible remote participants.
package guest

import (
	"context"

	"github.com/dkeye/Reception/internal/app/mute"
	"github.com/dkeye/Reception/internal/app/session"
	"github.com/dkeye/Reception/internal/app/tracks"
	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
)

type Options struct {
	Room            domain.RoomID
	IdentityPrefix  string
	DefaultEndpoint string
	Eligible        tracks.Eligible
	Features        core.Features

	Credentials core.CredentialFetcher
	Transport   core.Transport
	Devices     core.Devices
	Sinks       core.SinkFactory

	OnChange func(State)
}

type State struct {
	Room       domain.RoomID `json:"room"`
	Session    session.State `json:"session"`
	Remote     tracks.View   `json:"remote"`
	LocalMuted bool          `json:"local_muted"`
	Features   core.Features `json:"features"`
}

type Page struct {
	opts    Options
	session *session.Session
	router  *tracks.Router
}

func New(opts Options) *Page {
	p := &Page{opts: opts}
	p.router = tracks.New(opts.Room, tracks.Options{
		Eligible: opts.Eligible,
		Sinks:    opts.Sinks,
		OnChange: func(tracks.View) { p.changed() },
	})
	p.session = session.New(session.Options{
		Room:            opts.Room,
		Identity:        domain.GuestIdentity(opts.IdentityPrefix, opts.Room),
		DefaultEndpoint: opts.DefaultEndpoint,
		PublishLocal:    opts.Features.PublishLocal,
		Credentials:     opts.Credentials,
		Transport:       opts.Transport,
		Devices:         opts.Devices,
		Router:          p.router,
		OnChange:        func(session.State) { p.changed() },
	})
	return p
}

func (p *Page) Room() domain.RoomID { return p.opts.Room }

// Start blocks until the Session is Connected or Error.
func (p *Page) Start(ctx context.Context) {
	p.session.Start(ctx)
}

func (p *Page) State() State {
	return State{
		Room:       p.opts.Room,
		Session:    p.session.State(),
		Remote:     p.router.View(),
		LocalMuted: mute.LocalMuted(p.session),
		Features:   p.opts.Features,
	}
}

// ToggleLocalMute flips the outbound microphone and reports whether it is
// now muted.
func (p *Page) ToggleLocalMute() bool {
	if !p.opts.Features.Mute {
		return mute.LocalMuted(p.session)
	}
	muted := mute.ToggleLocal(p.session)
	p.session.Changed()
	return muted
}

func (p *Page) Dispose() {
	p.session.Dispose()
}

func (p *Page) changed() {
	if p.opts.OnChange != nil {
		p.opts.OnChange(p.State())
	}
}
