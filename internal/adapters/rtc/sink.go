package rtc

import (
	"sync/atomic"

	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/dkeye/Reception/internal/metrics"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	_ core.SinkFactory = (*SinkFactory)(nil)
	_ core.Sink        = (*Sink)(nil)
)

type SinkState int32

const (
	SinkPlaying SinkState = iota
	SinkMuted
	SinkClosed
)

// PacketWriter is the playback device behind a sink.
type PacketWriter interface {
	WriteRTP(*rtp.Packet) error
}

type discardWriter struct{}

func (discardWriter) WriteRTP(*rtp.Packet) error { return nil }

// SinkFactory opens sinks for remote audio. NewWriter may be nil, in which
// case packets are drained and discarded.
type SinkFactory struct {
	NewWriter func(room domain.RoomID, sid string) PacketWriter
}

func (f *SinkFactory) OpenSink(room domain.RoomID, track core.RemoteTrack) core.Sink {
	var out PacketWriter = discardWriter{}
	if f.NewWriter != nil {
		out = f.NewWriter(room, track.SID())
	}
	s := &Sink{room: room, out: out}
	logger := log.With().Str("module", "rtc").Str("room", string(room)).Str("track_id", track.SID()).Logger()
	if rt, ok := track.(*RemoteTrack); ok {
		go s.loop(rt, &logger)
	}
	return s
}

// Sink keeps reading a remote track so the transport never backs up, and
// hands packets to its writer only while playing.
type Sink struct {
	room  domain.RoomID
	out   PacketWriter
	state atomic.Int32
}

func (s *Sink) State() SinkState { return SinkState(s.state.Load()) }

func (s *Sink) SetMuted(muted bool) {
	if muted {
		s.state.CompareAndSwap(int32(SinkPlaying), int32(SinkMuted))
		return
	}
	s.state.CompareAndSwap(int32(SinkMuted), int32(SinkPlaying))
}

func (s *Sink) Close() {
	s.state.Store(int32(SinkClosed))
}

func (s *Sink) loop(src *RemoteTrack, logger *zerolog.Logger) {
	room := string(s.room)
	for {
		if s.State() == SinkClosed {
			logger.Debug().Msg("sink closed")
			return
		}
		pkt, _, err := src.track.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("sink read RTP stopped")
			return
		}
		s.forward(pkt, room, logger)
	}
}

func (s *Sink) forward(pkt *rtp.Packet, room string, logger *zerolog.Logger) {
	switch s.State() {
	case SinkClosed:
	case SinkMuted:
		metrics.SinkPackets.WithLabelValues(room, "muted").Inc()
	case SinkPlaying:
		if err := s.out.WriteRTP(pkt); err != nil {
			logger.Error().Err(err).Msg("sink write RTP error, closing")
			s.Close()
			metrics.SinkPackets.WithLabelValues(room, "error").Inc()
			return
		}
		metrics.SinkPackets.WithLabelValues(room, "played").Inc()
	}
}
