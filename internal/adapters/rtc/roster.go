package rtc

import (
	"sort"

	"github.com/dkeye/Reception/internal/adapters/signal"
	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/rs/zerolog/log"
)

type rosterEntry struct {
	participant domain.Participant
	tracks      map[string]*core.TrackInfo
}

// roster mirrors the remote side of one room and turns signaling messages
// and arriving tracks into core events. Not safe for concurrent use.
type roster struct {
	entries map[string]*rosterEntry
}

func newRoster() *roster {
	return &roster{entries: make(map[string]*rosterEntry)}
}

func (r *roster) entry(identity string) (*rosterEntry, bool) {
	e, ok := r.entries[identity]
	if !ok {
		e = &rosterEntry{
			participant: domain.NewParticipant(identity),
			tracks:      make(map[string]*core.TrackInfo),
		}
		r.entries[identity] = e
	}
	return e, !ok
}

// apply handles the roster-related message types and returns the events they
// imply, in order.
func (r *roster) apply(m signal.Message) []core.Event {
	switch m.Type {
	case signal.TypeJoined:
		for _, p := range m.Participants {
			e, _ := r.entry(p.Identity)
			for _, t := range p.Tracks {
				kind, ok := domain.ParseTrackKind(t.Kind)
				if !ok {
					continue
				}
				if _, known := e.tracks[t.SID]; !known {
					e.tracks[t.SID] = &core.TrackInfo{SID: t.SID, Kind: kind}
				}
			}
		}
		return nil

	case signal.TypeParticipantJoin:
		e, created := r.entry(m.Identity)
		if !created {
			return nil
		}
		return []core.Event{{Type: core.EventParticipantJoined, Participant: e.participant}}

	case signal.TypeParticipantLeft:
		e, ok := r.entries[m.Identity]
		if !ok {
			return nil
		}
		delete(r.entries, m.Identity)
		return []core.Event{{Type: core.EventParticipantLeft, Participant: e.participant}}

	case signal.TypeTrackPublished:
		kind, ok := domain.ParseTrackKind(m.Kind)
		if !ok {
			log.Warn().Str("module", "rtc").Str("kind", m.Kind).Msg("unknown track kind")
			return nil
		}
		return r.published(m.Identity, m.SID, kind)

	case signal.TypeTrackUnpublished:
		e, ok := r.entries[m.Identity]
		if !ok {
			return nil
		}
		t, ok := e.tracks[m.SID]
		if !ok {
			return nil
		}
		delete(e.tracks, m.SID)
		if !t.Subscribed {
			return nil
		}
		info := *t
		info.Subscribed = false
		return []core.Event{{Type: core.EventTrackUnsubscribed, Participant: e.participant, Track: info}}
	}
	return nil
}

func (r *roster) published(identity, sid string, kind domain.TrackKind) []core.Event {
	var out []core.Event
	e, created := r.entry(identity)
	if created {
		out = append(out, core.Event{Type: core.EventParticipantJoined, Participant: e.participant})
	}
	if _, ok := e.tracks[sid]; ok {
		return out
	}
	info := &core.TrackInfo{SID: sid, Kind: kind}
	e.tracks[sid] = info
	return append(out, core.Event{Type: core.EventTrackPublished, Participant: e.participant, Track: *info})
}

// subscribed records an arriving remote track. A track the roster never saw
// published gets a TrackPublished first so subscribe never precedes publish.
func (r *roster) subscribed(identity string, remote core.RemoteTrack) []core.Event {
	out := r.published(identity, remote.SID(), remote.Kind())
	e := r.entries[identity]
	t := e.tracks[remote.SID()]
	if t.Subscribed {
		return out
	}
	t.Subscribed = true
	t.Remote = remote
	return append(out, core.Event{Type: core.EventTrackSubscribed, Participant: e.participant, Track: *t})
}

func (r *roster) snapshot() []core.ParticipantSnapshot {
	out := make([]core.ParticipantSnapshot, 0, len(r.entries))
	for _, e := range r.entries {
		snap := core.ParticipantSnapshot{Participant: e.participant}
		for _, t := range e.tracks {
			snap.Tracks = append(snap.Tracks, *t)
		}
		sort.Slice(snap.Tracks, func(i, j int) bool { return snap.Tracks[i].SID < snap.Tracks[j].SID })
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Participant.Identity < out[j].Participant.Identity })
	return out
}
