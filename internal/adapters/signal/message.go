package signal

// Message types exchanged with the transport's signaling endpoint.
const (
	TypeJoined           = "joined"
	TypeParticipantJoin  = "participant_joined"
	TypeParticipantLeft  = "participant_left"
	TypeTrackPublished   = "track_published"
	TypeTrackUnpublished = "track_unpublished"
	TypeOffer            = "offer"
	TypeAnswer           = "answer"
	TypeCandidate        = "candidate"
	TypeError            = "error"
	TypeLeave            = "leave"
	TypePing             = "ping"
	TypePong             = "pong"
)

type TrackJSON struct {
	SID        string `json:"sid"`
	Kind       string `json:"kind"`
	Subscribed bool   `json:"subscribed,omitempty"`
}

type ParticipantJSON struct {
	Identity string      `json:"identity"`
	Tracks   []TrackJSON `json:"tracks,omitempty"`
}

// Message is the single envelope for every signaling frame. Only the fields
// relevant to Type are set.
type Message struct {
	Type string `json:"type"`

	SDP string `json:"sdp,omitempty"`

	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`

	Identity string `json:"identity,omitempty"`
	SID      string `json:"sid,omitempty"`
	Kind     string `json:"kind,omitempty"`

	Participants []ParticipantJSON `json:"participants,omitempty"`

	Error string `json:"error,omitempty"`
}
