package domain

// RoomID identifies a monitored room. Opaque to this module.
type RoomID string

// Credential is what the token service hands out for one identity in one room.
// It is never reused across rooms.
type Credential struct {
	Endpoint string
	Token    string
	Identity string
	Room     RoomID
}

// Status of a Session.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// MarshalText lets statuses render as their names in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
