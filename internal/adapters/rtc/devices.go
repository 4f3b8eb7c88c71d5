package rtc

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

var (
	_ core.Devices    = (*Devices)(nil)
	_ core.LocalTrack = (*LocalTrack)(nil)
)

// Devices hands out sample-fed local tracks. Whatever captures media writes
// into them with WriteSample.
type Devices struct {
	StreamID string
}

func NewDevices(streamID string) *Devices {
	return &Devices{StreamID: streamID}
}

func (d *Devices) Acquire(_ context.Context, kind domain.TrackKind) (core.LocalTrack, error) {
	mime := webrtc.MimeTypeVP8
	if kind == domain.KindAudio {
		mime = webrtc.MimeTypeOpus
	}
	streamID := d.StreamID
	if streamID == "" {
		streamID = uuid.NewString()
	}
	t, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, uuid.NewString(), streamID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s track: %w", core.ErrDevice, kind, err)
	}
	return &LocalTrack{track: t, kind: kind}, nil
}

type LocalTrack struct {
	track    *webrtc.TrackLocalStaticSample
	kind     domain.TrackKind
	disabled atomic.Bool
	stopped  atomic.Bool
}

func (t *LocalTrack) ID() string             { return t.track.ID() }
func (t *LocalTrack) Kind() domain.TrackKind { return t.kind }
func (t *LocalTrack) Enabled() bool          { return !t.disabled.Load() }
func (t *LocalTrack) SetEnabled(on bool)     { t.disabled.Store(!on) }
func (t *LocalTrack) Stop()                  { t.stopped.Store(true) }

// WriteSample forwards a captured sample unless the track is disabled or
// stopped, in which case the sample is dropped.
func (t *LocalTrack) WriteSample(s media.Sample) error {
	if t.stopped.Load() || t.disabled.Load() {
		return nil
	}
	return t.track.WriteSample(s)
}
