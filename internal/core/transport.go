package core

import (
	"context"

	"github.com/dkeye/Reception/internal/domain"
)

// CredentialFetcher resolves identity+room to a credential. Endpoint may be
// empty when the token service does not name one.
type CredentialFetcher interface {
	Fetch(ctx context.Context, identity string, room domain.RoomID) (domain.Credential, error)
}

// Transport opens connections to rooms. Owned by the adapter.
type Transport interface {
	Connect(ctx context.Context, endpoint, token string) (Connection, error)
}

// Connection is one joined room as seen by a Session.
type Connection interface {
	// Publish makes a local track available to the room.
	Publish(ctx context.Context, track LocalTrack) error
	// Participants returns the remote participants known right now together
	// with their tracks, for late attachers.
	Participants() []ParticipantSnapshot
	// Events is closed when the connection closes.
	Events() <-chan Event
	Close() error
}

// ParticipantSnapshot is one remote participant at the time of the call.
type ParticipantSnapshot struct {
	Participant domain.Participant
	Tracks      []TrackInfo
}
