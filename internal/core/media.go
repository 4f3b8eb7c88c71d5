package core

import (
	"context"

	"github.com/dkeye/Reception/internal/domain"
)

// LocalTrack is a device-backed track owned by a Session.
type LocalTrack interface {
	ID() string
	Kind() domain.TrackKind
	Enabled() bool
	// SetEnabled stops or resumes outbound media without unpublishing.
	SetEnabled(bool)
	Stop()
}

// Devices acquires local capture tracks.
type Devices interface {
	Acquire(ctx context.Context, kind domain.TrackKind) (LocalTrack, error)
}

// RemoteTrack is a handle to a media resource owned by the transport.
type RemoteTrack interface {
	SID() string
	Kind() domain.TrackKind
}

// Sink plays a remote audio track out of sight of the user.
type Sink interface {
	SetMuted(bool)
	Close()
}

type SinkFactory interface {
	OpenSink(room domain.RoomID, track RemoteTrack) Sink
}
