// Package domain contains entity without logic, just meta-data
package domain

import "strings"

const (
	GuestPrefix        = "guest-"
	ReceptionistPrefix = "receptionist"
)

type Role int

const (
	RoleOther Role = iota
	RoleGuest
	RoleReceptionist
)

func (r Role) String() string {
	switch r {
	case RoleGuest:
		return "guest"
	case RoleReceptionist:
		return "receptionist"
	}
	return "other"
}

// Participant is a remote endpoint as reported by the transport.
// Role is derived from the identity prefix and is advisory only.
type Participant struct {
	Identity string `json:"identity"`
	Role     Role   `json:"-"`
}

func NewParticipant(identity string) Participant {
	return Participant{Identity: identity, Role: RoleOf(identity)}
}

func RoleOf(identity string) Role {
	switch {
	case strings.HasPrefix(identity, ReceptionistPrefix):
		return RoleReceptionist
	case strings.HasPrefix(identity, GuestPrefix):
		return RoleGuest
	}
	return RoleOther
}

// GuestIdentity is the identity a guest page uses in its own room.
func GuestIdentity(prefix string, room RoomID) string {
	if prefix == "" {
		prefix = GuestPrefix
	}
	return prefix + string(room)
}

type TrackKind int

const (
	KindVideo TrackKind = iota
	KindAudio
)

func (k TrackKind) String() string {
	if k == KindAudio {
		return "audio"
	}
	return "video"
}

// ParseTrackKind accepts the names produced by String.
func ParseTrackKind(s string) (TrackKind, bool) {
	switch s {
	case "video":
		return KindVideo, true
	case "audio":
		return KindAudio, true
	}
	return KindVideo, false
}

func (k TrackKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
