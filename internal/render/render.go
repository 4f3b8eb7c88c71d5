// Package render turns page state into surface descriptions. It is pure: the
// same state always yields the same surface, and nothing here touches media.
package render

import (
	"github.com/dkeye/Reception/internal/app/dashboard"
	"github.com/dkeye/Reception/internal/app/guest"
	"github.com/dkeye/Reception/internal/app/tracks"
	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
)

const PlaceholderText = "No video feed"

type Kind string

const (
	// KindNone renders nothing: no credential has been obtained yet.
	KindNone        Kind = "none"
	KindError       Kind = "error"
	KindVideo       Kind = "video"
	KindPlaceholder Kind = "placeholder"
	// KindEmpty is an unbound surface with the placeholder feature off.
	KindEmpty Kind = "empty"
)

// Video is the remote video part of a surface.
type Video struct {
	Kind        Kind   `json:"kind"`
	TrackSID    string `json:"track_sid,omitempty"`
	Participant string `json:"participant,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

type Surface struct {
	Room           domain.RoomID `json:"room"`
	Label          string        `json:"label"`
	Kind           Kind          `json:"kind"`
	Status         string        `json:"status"`
	Error          string        `json:"error,omitempty"`
	Video          Video         `json:"video"`
	AudioMuted     bool          `json:"audio_muted"`
	ShowMute       bool          `json:"show_mute"`
	Fullscreen     bool          `json:"fullscreen"`
	ShowFullscreen bool          `json:"show_fullscreen"`
}

func remoteVideo(bound bool, b tracks.Binding, f core.Features) Video {
	switch {
	case bound:
		return Video{Kind: KindVideo, TrackSID: b.TrackSID, Participant: b.Participant.Identity}
	case f.Fallback:
		return Video{Kind: KindPlaceholder, Placeholder: PlaceholderText}
	}
	return Video{Kind: KindEmpty}
}

// Render describes one dashboard tile.
func Render(f dashboard.FeedState) Surface {
	s := Surface{
		Room:   f.Room,
		Label:  f.Label,
		Status: f.Session.Status.String(),
	}
	switch {
	case f.Session.Status == domain.StatusError:
		s.Kind = KindError
		s.Error = f.Session.ErrorDetail
		return s
	case !f.Session.HasCredential:
		s.Kind = KindNone
		return s
	}
	s.Video = remoteVideo(f.RemoteVideoBound, f.Video, f.Features)
	s.Kind = s.Video.Kind
	s.AudioMuted = f.AudioMuted
	s.ShowMute = f.Features.Mute
	s.Fullscreen = f.Fullscreen && f.Features.Fullscreen
	s.ShowFullscreen = f.Features.Fullscreen
	return s
}

// RenderAll keeps the tile order of feeds.
func RenderAll(feeds []dashboard.FeedState) []Surface {
	out := make([]Surface, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, Render(f))
	}
	return out
}

type GuestSurface struct {
	Room       domain.RoomID `json:"room"`
	Title      string        `json:"title"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Preview    string        `json:"preview_track,omitempty"`
	Remote     Video         `json:"remote"`
	LocalMuted bool          `json:"local_muted"`
	ShowMute   bool          `json:"show_mute"`
}

// RenderGuest describes the guest page.
func RenderGuest(g guest.State) GuestSurface {
	s := GuestSurface{
		Room:   g.Room,
		Title:  "Guest Stream: " + string(g.Room),
		Status: g.Session.Status.String(),
		Error:  g.Session.ErrorDetail,
	}
	if g.Session.Status != domain.StatusConnected {
		return s
	}
	s.Preview = g.Session.Preview.TrackID
	s.Remote = remoteVideo(g.Remote.VideoBound, g.Remote.Video, g.Features)
	s.LocalMuted = g.LocalMuted
	s.ShowMute = g.Features.Mute && g.Session.HasLocalAudio
	return s
}
