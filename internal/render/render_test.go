package render

import (
	"testing"

	"github.com/dkeye/Reception/internal/app/dashboard"
	"github.com/dkeye/Reception/internal/app/guest"
	"github.com/dkeye/Reception/internal/app/session"
	"github.com/dkeye/Reception/internal/app/tracks"
	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
)

func connected() session.State {
	return session.State{Status: domain.StatusConnected, HasCredential: true}
}

func TestRender(t *testing.T) {
	bound := tracks.Binding{Participant: domain.NewParticipant("receptionist"), TrackSID: "TR_v", Kind: domain.KindVideo}
	cases := []struct {
		name string
		feed dashboard.FeedState
		want Kind
	}{
		{
			name: "no credential",
			feed: dashboard.FeedState{Session: session.State{Status: domain.StatusConnecting}},
			want: KindNone,
		},
		{
			name: "error wins over credential",
			feed: dashboard.FeedState{Session: session.State{Status: domain.StatusError, HasCredential: true, ErrorDetail: "x"}},
			want: KindError,
		},
		{
			name: "bound video",
			feed: dashboard.FeedState{Session: connected(), RemoteVideoBound: true, Video: bound},
			want: KindVideo,
		},
		{
			name: "fallback placeholder",
			feed: dashboard.FeedState{Session: connected(), Features: core.Features{Fallback: true}},
			want: KindPlaceholder,
		},
		{
			name: "fallback off",
			feed: dashboard.FeedState{Session: connected()},
			want: KindEmpty,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.feed).Kind; got != tc.want {
				t.Fatalf("kind %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRenderPlaceholderText(t *testing.T) {
	s := Render(dashboard.FeedState{Session: connected(), Features: core.Features{Fallback: true}})
	if s.Video.Placeholder != PlaceholderText {
		t.Fatalf("placeholder %q", s.Video.Placeholder)
	}
}

func TestRenderErrorDetail(t *testing.T) {
	s := Render(dashboard.FeedState{Session: session.State{Status: domain.StatusError, ErrorDetail: "credential error: 503"}})
	if s.Error != "credential error: 503" || s.Status != "error" {
		t.Fatalf("surface %+v", s)
	}
}

func TestRenderFullscreenNeedsFeature(t *testing.T) {
	s := Render(dashboard.FeedState{Session: connected(), Fullscreen: true})
	if s.Fullscreen || s.ShowFullscreen {
		t.Fatalf("fullscreen shown with feature off: %+v", s)
	}
}

func TestRenderIsPure(t *testing.T) {
	f := dashboard.FeedState{Room: "a", Session: connected(), Features: core.Features{Fallback: true, Mute: true}, AudioMuted: true}
	if Render(f) != Render(f) {
		t.Fatal("render not deterministic")
	}
}

func TestRenderAllKeepsOrder(t *testing.T) {
	out := RenderAll([]dashboard.FeedState{{Room: "b"}, {Room: "a"}})
	if len(out) != 2 || out[0].Room != "b" || out[1].Room != "a" {
		t.Fatalf("order %+v", out)
	}
}

func TestRenderGuest(t *testing.T) {
	g := guest.State{
		Room:     "property-101",
		Session:  session.State{Status: domain.StatusConnected, HasCredential: true, HasLocalAudio: true, Preview: session.Preview{TrackID: "cam", Revision: 1}},
		Features: core.Features{Fallback: true, Mute: true},
	}
	s := RenderGuest(g)
	if s.Title != "Guest Stream: property-101" {
		t.Fatalf("title %q", s.Title)
	}
	if s.Preview != "cam" || s.Remote.Kind != KindPlaceholder || !s.ShowMute {
		t.Fatalf("surface %+v", s)
	}

	g.Session.Status = domain.StatusConnecting
	if s := RenderGuest(g); s.Preview != "" || s.Remote.Kind != "" {
		t.Fatalf("connecting guest rendered media: %+v", s)
	}
}
