package core

import "github.com/dkeye/Reception/internal/domain"

type EventType int

const (
	EventParticipantJoined EventType = iota + 1
	EventParticipantLeft
	EventTrackPublished
	EventTrackSubscribed
	EventTrackUnsubscribed
)

func (t EventType) String() string {
	switch t {
	case EventParticipantJoined:
		return "participant_joined"
	case EventParticipantLeft:
		return "participant_left"
	case EventTrackPublished:
		return "track_published"
	case EventTrackSubscribed:
		return "track_subscribed"
	case EventTrackUnsubscribed:
		return "track_unsubscribed"
	}
	return "unknown"
}

// TrackInfo describes one remote track publication. Remote is set once the
// track is subscribed.
type TrackInfo struct {
	SID        string
	Kind       domain.TrackKind
	Subscribed bool
	Remote     RemoteTrack
}

// Event is one transport notification. Events of one participant arrive in
// order; events across participants do not.
type Event struct {
	Type        EventType
	Participant domain.Participant
	Track       TrackInfo
}
