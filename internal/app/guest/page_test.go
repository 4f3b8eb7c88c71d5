package guest

import (
	"context"
	"testing"

	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/core/coretest"
	"github.com/dkeye/Reception/internal/domain"
)

func newTestPage(t *testing.T, features core.Features) (*Page, *coretest.Fetcher) {
	t.Helper()
	fetcher := coretest.NewFetcher()
	p := New(Options{
		Room:            "property-101",
		DefaultEndpoint: "wss://sfu.example",
		Features:        features,
		Credentials:     fetcher,
		Transport:       &coretest.Transport{},
		Devices:         &coretest.Devices{},
		Sinks:           &coretest.Sinks{},
	})
	t.Cleanup(p.Dispose)
	return p, fetcher
}

func TestGuestIdentityAndPreview(t *testing.T) {
	p, fetcher := newTestPage(t, core.Features{Mute: true, PublishLocal: true, Fallback: true})
	p.Start(context.Background())

	st := p.State()
	if st.Session.Status != domain.StatusConnected {
		t.Fatalf("status %v: %s", st.Session.Status, st.Session.ErrorDetail)
	}
	if st.Session.Identity != "guest-property-101" {
		t.Fatalf("identity %q", st.Session.Identity)
	}
	if len(fetcher.Calls) != 1 || fetcher.Calls[0] != "guest-property-101@property-101" {
		t.Fatalf("fetch calls %v", fetcher.Calls)
	}
	if st.Session.Preview.TrackID == "" {
		t.Fatal("local preview not bound")
	}
	if st.Remote.VideoBound {
		t.Fatal("no remote should be bound yet")
	}
}

func TestToggleLocalMute(t *testing.T) {
	p, _ := newTestPage(t, core.Features{Mute: true, PublishLocal: true})
	p.Start(context.Background())

	if !p.ToggleLocalMute() || !p.State().LocalMuted {
		t.Fatal("expected muted")
	}
	if p.ToggleLocalMute() || p.State().LocalMuted {
		t.Fatal("expected unmuted")
	}
}

func TestToggleLocalMuteDisabled(t *testing.T) {
	p, _ := newTestPage(t, core.Features{PublishLocal: true})
	p.Start(context.Background())
	if p.ToggleLocalMute() {
		t.Fatal("mute feature off must be a no-op")
	}
}

func TestOnChangeFires(t *testing.T) {
	var states []State
	p := New(Options{
		Room:            "r",
		DefaultEndpoint: "wss://sfu.example",
		Credentials:     coretest.NewFetcher(),
		Transport:       &coretest.Transport{},
		Devices:         &coretest.Devices{},
		OnChange:        func(s State) { states = append(states, s) },
	})
	defer p.Dispose()
	p.Start(context.Background())

	if len(states) < 2 || states[len(states)-1].Session.Status != domain.StatusConnected {
		t.Fatalf("states %+v", states)
	}
}
