// Package tracks reduces a Session's remote event stream into the bindings a
// page renders: at most one visible remote video and any number of hidden
// audio sinks, all owned by eligible participants.
package tracks

import (
	"sort"
	"strings"
	"sync"

	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/dkeye/Reception/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Eligible decides whether a participant's tracks may be rendered.
type Eligible func(identity string) bool

// PrefixMatcher matches identities carrying prefix. An empty prefix matches
// everyone.
func PrefixMatcher(prefix string) Eligible {
	return func(identity string) bool {
		return strings.HasPrefix(identity, prefix)
	}
}

// Binding names a remote track by owner and sid. It never owns the media.
type Binding struct {
	Participant domain.Participant `json:"participant"`
	TrackSID    string             `json:"track_sid"`
	Kind        domain.TrackKind   `json:"kind"`
}

// View is an immutable snapshot of a Router.
type View struct {
	Room          domain.RoomID `json:"room"`
	VideoBound    bool          `json:"video_bound"`
	Video         Binding       `json:"video"`
	Audio         []Binding     `json:"audio"`
	PlaybackMuted bool          `json:"playback_muted"`
}

type Options struct {
	Eligible Eligible
	// Sinks plays bound audio. Nil means audio is tracked but not played.
	Sinks    core.SinkFactory
	OnChange func(View)
}

type audioBinding struct {
	Binding
	sink core.Sink
}

type Router struct {
	room     domain.RoomID
	eligible Eligible
	sinks    core.SinkFactory
	onChange func(View)
	logger   zerolog.Logger

	mu sync.Mutex
	// videos holds every live eligible video subscription, oldest first.
	// The last one is bound.
	videos   []Binding
	audio    map[string]*audioBinding
	muted    bool
	detached bool
}

func New(room domain.RoomID, opts Options) *Router {
	eligible := opts.Eligible
	if eligible == nil {
		eligible = PrefixMatcher(domain.ReceptionistPrefix)
	}
	return &Router{
		room:     room,
		eligible: eligible,
		sinks:    opts.Sinks,
		onChange: opts.OnChange,
		logger:   log.With().Str("module", "tracks").Str("room", string(room)).Logger(),
		audio:    make(map[string]*audioBinding),
	}
}

func bindingKey(identity, sid string) string {
	return identity + "/" + sid
}

// Attach replays tracks that were already subscribed before the Router
// existed, as if their TrackSubscribed events had just arrived.
func (r *Router) Attach(snaps []core.ParticipantSnapshot) {
	for _, snap := range snaps {
		for _, t := range snap.Tracks {
			if !t.Subscribed {
				continue
			}
			r.Handle(core.Event{Type: core.EventTrackSubscribed, Participant: snap.Participant, Track: t})
		}
	}
}

// Handle applies one transport event.
func (r *Router) Handle(ev core.Event) {
	if !r.eligible(ev.Participant.Identity) {
		return
	}

	r.mu.Lock()
	if r.detached {
		r.mu.Unlock()
		return
	}
	var changed bool
	switch ev.Type {
	case core.EventTrackSubscribed:
		changed = r.subscribed(ev.Participant, ev.Track)
	case core.EventTrackUnsubscribed:
		changed = r.unsubscribed(ev.Participant, ev.Track)
	case core.EventParticipantLeft:
		changed = r.left(ev.Participant)
	case core.EventParticipantJoined, core.EventTrackPublished:
		r.logger.Debug().Str("event", ev.Type.String()).Str("identity", ev.Participant.Identity).Msg("remote event")
	}
	view := r.viewLocked()
	r.mu.Unlock()

	if changed && r.onChange != nil {
		r.onChange(view)
	}
}

func (r *Router) subscribed(p domain.Participant, t core.TrackInfo) bool {
	b := Binding{Participant: p, TrackSID: t.SID, Kind: t.Kind}
	switch t.Kind {
	case domain.KindVideo:
		if r.videoIndex(p.Identity, t.SID) >= 0 {
			return false
		}
		if prev, ok := r.bound(); ok {
			r.logger.Info().
				Str("superseded", prev.Participant.Identity).
				Str("identity", p.Identity).
				Msg("video binding superseded")
		}
		r.videos = append(r.videos, b)
		metrics.VideoBinds.WithLabelValues(string(r.room)).Inc()
		r.logger.Info().Str("identity", p.Identity).Str("track", t.SID).Msg("video bound")
		return true
	case domain.KindAudio:
		key := bindingKey(p.Identity, t.SID)
		if _, ok := r.audio[key]; ok {
			return false
		}
		ab := &audioBinding{Binding: b}
		if r.sinks != nil && t.Remote != nil {
			ab.sink = r.sinks.OpenSink(r.room, t.Remote)
			ab.sink.SetMuted(r.muted)
		}
		r.audio[key] = ab
		r.logger.Info().Str("identity", p.Identity).Str("track", t.SID).Msg("audio sink bound")
		return true
	}
	return false
}

func (r *Router) unsubscribed(p domain.Participant, t core.TrackInfo) bool {
	switch t.Kind {
	case domain.KindVideo:
		i := r.videoIndex(p.Identity, t.SID)
		if i < 0 {
			return false
		}
		wasBound := i == len(r.videos)-1
		r.videos = append(r.videos[:i], r.videos[i+1:]...)
		if !wasBound {
			return false
		}
		r.logRebind(p.Identity, t.SID)
		return true
	case domain.KindAudio:
		return r.releaseAudio(bindingKey(p.Identity, t.SID))
	}
	return false
}

func (r *Router) left(p domain.Participant) bool {
	changed := false
	prev, hadVideo := r.bound()
	kept := r.videos[:0]
	for _, b := range r.videos {
		if b.Participant.Identity != p.Identity {
			kept = append(kept, b)
		}
	}
	r.videos = kept
	if hadVideo && prev.Participant.Identity == p.Identity {
		r.logRebind(p.Identity, prev.TrackSID)
		changed = true
	}
	for key, ab := range r.audio {
		if ab.Participant.Identity == p.Identity {
			changed = r.releaseAudio(key) || changed
		}
	}
	return changed
}

func (r *Router) videoIndex(identity, sid string) int {
	for i, b := range r.videos {
		if b.Participant.Identity == identity && b.TrackSID == sid {
			return i
		}
	}
	return -1
}

func (r *Router) bound() (Binding, bool) {
	if len(r.videos) == 0 {
		return Binding{}, false
	}
	return r.videos[len(r.videos)-1], true
}

func (r *Router) logRebind(identity, sid string) {
	next, ok := r.bound()
	if !ok {
		r.logger.Info().Str("identity", identity).Str("track", sid).Msg("video unbound, fallback")
		return
	}
	r.logger.Info().
		Str("identity", identity).
		Str("track", sid).
		Str("rebound", next.Participant.Identity).
		Str("rebound_track", next.TrackSID).
		Msg("video unbound, rebound to earlier subscription")
}

func (r *Router) releaseAudio(key string) bool {
	ab, ok := r.audio[key]
	if !ok {
		return false
	}
	if ab.sink != nil {
		ab.sink.Close()
	}
	delete(r.audio, key)
	return true
}

// SetPlaybackMuted mutes every current and future audio sink. Subscriptions
// are left alone.
func (r *Router) SetPlaybackMuted(muted bool) {
	r.mu.Lock()
	if r.muted == muted {
		r.mu.Unlock()
		return
	}
	r.muted = muted
	for _, ab := range r.audio {
		if ab.sink != nil {
			ab.sink.SetMuted(muted)
		}
	}
	view := r.viewLocked()
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange(view)
	}
}

// Detach releases every binding. Events arriving afterwards are dropped.
func (r *Router) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.detached {
		return
	}
	r.detached = true
	r.videos = nil
	for key := range r.audio {
		r.releaseAudio(key)
	}
}

func (r *Router) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked()
}

func (r *Router) viewLocked() View {
	v := View{Room: r.room, PlaybackMuted: r.muted}
	if b, ok := r.bound(); ok {
		v.VideoBound = true
		v.Video = b
	}
	v.Audio = make([]Binding, 0, len(r.audio))
	for _, ab := range r.audio {
		v.Audio = append(v.Audio, ab.Binding)
	}
	sort.Slice(v.Audio, func(i, j int) bool {
		return bindingKey(v.Audio[i].Participant.Identity, v.Audio[i].TrackSID) <
			bindingKey(v.Audio[j].Participant.Identity, v.Audio[j].TrackSID)
	})
	return v
}
