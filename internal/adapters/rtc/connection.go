// Package rtc implements core.Transport on pion/webrtc with websocket
// signaling, plus local sample tracks and hidden audio playback sinks.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Reception/internal/adapters/signal"
	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	_ core.Transport  = (*Transport)(nil)
	_ core.Connection = (*Connection)(nil)
)

var ErrUnsupportedTrack = errors.New("track was not acquired from rtc.Devices")

func DefaultWebRTCConfig(iceServers []string) webrtc.Configuration {
	if len(iceServers) == 0 {
		iceServers = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	}
}

type Transport struct {
	Config webrtc.Configuration
	Signal signal.Options
}

func NewTransport(cfg webrtc.Configuration, sig signal.Options) *Transport {
	return &Transport{Config: cfg, Signal: sig}
}

// Connect dials the signaling endpoint, creates the PeerConnection and
// waits for the room's joined message.
func (t *Transport) Connect(ctx context.Context, endpoint, token string) (core.Connection, error) {
	sc, err := signal.Dial(ctx, endpoint, token, t.Signal)
	if err != nil {
		return nil, err
	}
	pc, err := webrtc.NewPeerConnection(t.Config)
	if err != nil {
		sc.Close()
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		pc:      pc,
		sig:     sc,
		cancel:  cancel,
		logger:  log.With().Str("module", "rtc").Str("endpoint", endpoint).Logger(),
		roster:  newRoster(),
		events:  make(chan core.Event, 64),
		answers: make(chan webrtc.SessionDescription, 1),
		joined:  make(chan struct{}),
		closing: make(chan struct{}),
	}
	c.bindPeerHandlers()
	sc.Run(runCtx, c.handle)

	select {
	case <-c.joined:
	case <-sc.Done():
		_ = c.Close()
		return nil, errors.New("signaling closed before join")
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	}
	if c.joinErr != nil {
		_ = c.Close()
		return nil, c.joinErr
	}
	return c, nil
}

type Connection struct {
	pc     *webrtc.PeerConnection
	sig    *signal.Conn
	cancel context.CancelFunc
	logger zerolog.Logger

	// negotiate serializes offer/answer exchanges in both directions.
	negotiate sync.Mutex
	answers   chan webrtc.SessionDescription

	joined   chan struct{}
	joinOnce sync.Once
	joinErr  error

	mu       sync.Mutex
	roster   *roster
	closed   bool
	closing  chan struct{}
	emitters sync.WaitGroup
	events   chan core.Event
}

func (c *Connection) bindPeerHandlers() {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		ci := cand.ToJSON()
		if err := c.sig.Send(signal.Message{
			Type:          signal.TypeCandidate,
			Candidate:     ci.Candidate,
			SDPMid:        ci.SDPMid,
			SDPMLineIndex: ci.SDPMLineIndex,
		}); err != nil {
			c.logger.Warn().Err(err).Msg("send candidate")
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		remote := &RemoteTrack{track: track}
		c.mu.Lock()
		evs := c.roster.subscribed(track.StreamID(), remote)
		c.mu.Unlock()
		c.emit(evs...)
	})
}

func (c *Connection) handle(m signal.Message) {
	switch m.Type {
	case signal.TypeJoined:
		c.mu.Lock()
		c.roster.apply(m)
		c.mu.Unlock()
		c.joinOnce.Do(func() { close(c.joined) })
	case signal.TypeError:
		c.logger.Error().Str("error", m.Error).Msg("signaling error")
		c.joinOnce.Do(func() {
			c.joinErr = fmt.Errorf("join refused: %s", m.Error)
			close(c.joined)
		})
	case signal.TypeOffer:
		go c.answerOffer(m.SDP)
	case signal.TypeAnswer:
		select {
		case c.answers <- webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: m.SDP}:
		default:
			c.logger.Warn().Msg("unexpected answer dropped")
		}
	case signal.TypeCandidate:
		ci := webrtc.ICECandidateInit{
			Candidate:     m.Candidate,
			SDPMid:        m.SDPMid,
			SDPMLineIndex: m.SDPMLineIndex,
		}
		if err := c.pc.AddICECandidate(ci); err != nil {
			c.logger.Error().Err(err).Msg("add ice candidate")
		}
	default:
		c.mu.Lock()
		evs := c.roster.apply(m)
		c.mu.Unlock()
		c.emit(evs...)
	}
}

func (c *Connection) answerOffer(sdp string) {
	c.negotiate.Lock()
	defer c.negotiate.Unlock()

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		c.logger.Error().Err(err).Msg("apply remote offer")
		return
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		c.logger.Error().Err(err).Msg("create answer")
		return
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		c.logger.Error().Err(err).Msg("set local answer")
		return
	}
	select {
	case <-gatherComplete:
	case <-c.closing:
		return
	}
	if err := c.sig.Send(signal.Message{Type: signal.TypeAnswer, SDP: c.pc.LocalDescription().SDP}); err != nil {
		c.logger.Error().Err(err).Msg("send answer")
	}
}

// Publish adds track to the PeerConnection and renegotiates.
func (c *Connection) Publish(ctx context.Context, track core.LocalTrack) error {
	lt, ok := track.(*LocalTrack)
	if !ok {
		return ErrUnsupportedTrack
	}

	c.negotiate.Lock()
	defer c.negotiate.Unlock()

	sender, err := c.pc.AddTrack(lt.track)
	if err != nil {
		return fmt.Errorf("add %s track: %w", lt.Kind(), err)
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.sig.Send(signal.Message{Type: signal.TypeOffer, SDP: c.pc.LocalDescription().SDP}); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}

	select {
	case answer := <-c.answers:
		if err := c.pc.SetRemoteDescription(answer); err != nil {
			return fmt.Errorf("apply answer: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-c.sig.Done():
		return signal.ErrClosed
	}
	c.logger.Info().Str("kind", lt.Kind().String()).Str("track_id", lt.ID()).Msg("published")
	return nil
}

func (c *Connection) Participants() []core.ParticipantSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roster.snapshot()
}

func (c *Connection) Events() <-chan core.Event {
	return c.events
}

func (c *Connection) emit(evs ...core.Event) {
	if len(evs) == 0 {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.emitters.Add(1)
	c.mu.Unlock()
	defer c.emitters.Done()

	for _, ev := range evs {
		select {
		case c.events <- ev:
		case <-c.closing:
			return
		}
	}
}

// Close leaves the room and releases the PeerConnection. Events is closed
// once in-flight emits have returned.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closing)
	c.mu.Unlock()

	_ = c.sig.Send(signal.Message{Type: signal.TypeLeave})
	c.sig.Close()
	c.cancel()
	err := c.pc.Close()
	if err != nil {
		c.logger.Error().Err(err).Msg("close error")
	} else {
		c.logger.Info().Msg("closed")
	}

	c.emitters.Wait()
	close(c.events)
	return err
}

// RemoteTrack wraps a pion remote track. The transport owns the media.
type RemoteTrack struct {
	track *webrtc.TrackRemote
}

func (t *RemoteTrack) SID() string { return t.track.ID() }

func (t *RemoteTrack) Kind() domain.TrackKind {
	if t.track.Kind() == webrtc.RTPCodecTypeAudio {
		return domain.KindAudio
	}
	return domain.KindVideo
}
