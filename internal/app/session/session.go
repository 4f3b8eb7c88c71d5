// Package session owns one connection to one room: credential, transport
// connect, local publish and preview, and the hand-off of remote events to a
// tracks.Router.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Reception/internal/app/tracks"
	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/dkeye/Reception/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// errDisposed aborts a start whose Session went away mid-flight.
var errDisposed = errors.New("session disposed")

type Options struct {
	Room     domain.RoomID
	Identity string
	// DefaultEndpoint is used when the credential does not name one.
	DefaultEndpoint string
	// PublishLocal acquires, publishes and previews local video and audio.
	PublishLocal bool

	Credentials core.CredentialFetcher
	Transport   core.Transport
	Devices     core.Devices
	// Router receives remote events once connected. Optional.
	Router   *tracks.Router
	OnChange func(State)
}

// Preview is the local video surface. Revision only moves when the bound
// track changes.
type Preview struct {
	TrackID  string `json:"track_id,omitempty"`
	Revision uint64 `json:"revision"`
}

// State is an immutable snapshot of a Session.
type State struct {
	Room          domain.RoomID `json:"room"`
	Identity      string        `json:"identity"`
	Status        domain.Status `json:"status"`
	HasCredential bool          `json:"has_credential"`
	Endpoint      string        `json:"endpoint,omitempty"`
	ErrorDetail   string        `json:"error,omitempty"`
	Preview       Preview       `json:"preview"`
	HasLocalAudio bool          `json:"has_local_audio"`
	AudioEnabled  bool          `json:"audio_enabled"`
}

type Session struct {
	opts   Options
	logger zerolog.Logger

	mu        sync.Mutex
	status    domain.Status
	cred      *domain.Credential
	conn      core.Connection
	video     core.LocalTrack
	audio     core.LocalTrack
	preview   Preview
	errDetail string
	disposed  bool
	cancel    context.CancelFunc
}

func New(opts Options) *Session {
	return &Session{
		opts:   opts,
		logger: log.With().Str("module", "session").Str("room", string(opts.Room)).Logger(),
	}
}

func (s *Session) Room() domain.RoomID { return s.opts.Room }

// Start runs Idle -> Connecting -> Connected|Error. It is a no-op unless the
// Session is Idle. Failures never escape; they end up in State.ErrorDetail.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.status != domain.StatusIdle || s.disposed {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.setStatusLocked(domain.StatusConnecting)
	state := s.stateLocked()
	s.mu.Unlock()
	s.notify(state)

	err := s.connect(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errDisposed):
		s.logger.Info().Msg("start finished after dispose, result discarded")
	default:
		s.fail(err)
	}
}

func kind(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

func (s *Session) connect(ctx context.Context) error {
	cred, err := s.opts.Credentials.Fetch(ctx, s.opts.Identity, s.opts.Room)
	if err != nil {
		return kind(core.ErrCredential, err)
	}
	if cred.Endpoint == "" {
		cred.Endpoint = s.opts.DefaultEndpoint
	}
	cred.Identity = s.opts.Identity
	cred.Room = s.opts.Room
	if err := s.adopt(func() { s.cred = &cred }); err != nil {
		return err
	}
	if cred.Endpoint == "" {
		return core.ErrNoEndpoint
	}

	conn, err := s.opts.Transport.Connect(ctx, cred.Endpoint, cred.Token)
	if err != nil {
		return kind(core.ErrConnect, err)
	}
	if err := s.adopt(func() { s.conn = conn }); err != nil {
		_ = conn.Close()
		return err
	}
	s.logger.Info().Str("endpoint", cred.Endpoint).Msg("connected to transport")

	// Drain remote events before publishing so a busy room cannot stall the
	// signaling that publish waits on.
	if r := s.opts.Router; r != nil {
		r.Attach(conn.Participants())
		go s.pump(ctx, conn, r)
	}

	if s.opts.PublishLocal {
		if err := s.publishLocal(ctx, conn); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return errDisposed
	}
	s.setStatusLocked(domain.StatusConnected)
	state := s.stateLocked()
	s.mu.Unlock()
	s.notify(state)
	return nil
}

func (s *Session) publishLocal(ctx context.Context, conn core.Connection) error {
	video, err := s.opts.Devices.Acquire(ctx, domain.KindVideo)
	if err != nil {
		return kind(core.ErrDevice, err)
	}
	if err := s.adopt(func() { s.video = video }); err != nil {
		video.Stop()
		return err
	}
	audio, err := s.opts.Devices.Acquire(ctx, domain.KindAudio)
	if err != nil {
		return kind(core.ErrDevice, err)
	}
	if err := s.adopt(func() { s.audio = audio }); err != nil {
		audio.Stop()
		return err
	}

	if err := conn.Publish(ctx, video); err != nil {
		return kind(core.ErrPublish, err)
	}
	if err := conn.Publish(ctx, audio); err != nil {
		return kind(core.ErrPublish, err)
	}
	s.BindPreview(video)
	return nil
}

// adopt records a freshly acquired resource unless the Session was disposed
// in the meantime.
func (s *Session) adopt(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return errDisposed
	}
	fn()
	return nil
}

func (s *Session) pump(ctx context.Context, conn core.Connection, r *tracks.Router) {
	events := conn.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.logger.Info().Msg("event stream closed")
				return
			}
			r.Handle(ev)
		}
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.errDetail = err.Error()
	s.setStatusLocked(domain.StatusError)
	state := s.stateLocked()
	s.mu.Unlock()

	s.logger.Error().Err(err).Msg("session failed")
	s.notify(state)
}

func (s *Session) setStatusLocked(st domain.Status) {
	s.status = st
	metrics.SessionTransitions.WithLabelValues(string(s.opts.Room), st.String()).Inc()
}

// BindPreview shows track on the local preview surface, replacing whatever
// was there. Binding the same track again changes nothing.
func (s *Session) BindPreview(track core.LocalTrack) {
	if track == nil {
		return
	}
	s.mu.Lock()
	if s.disposed || s.preview.TrackID == track.ID() {
		s.mu.Unlock()
		return
	}
	s.preview = Preview{TrackID: track.ID(), Revision: s.preview.Revision + 1}
	state := s.stateLocked()
	s.mu.Unlock()
	s.notify(state)
}

// LocalAudio returns the published local audio track, or nil.
func (s *Session) LocalAudio() core.LocalTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	st := State{
		Room:        s.opts.Room,
		Identity:    s.opts.Identity,
		Status:      s.status,
		ErrorDetail: s.errDetail,
		Preview:     s.preview,
	}
	if s.cred != nil {
		st.HasCredential = true
		st.Endpoint = s.cred.Endpoint
	}
	if s.audio != nil {
		st.HasLocalAudio = true
		st.AudioEnabled = s.audio.Enabled()
	}
	return st
}

// Changed re-publishes the current state, for collaborators that mutate
// owned tracks directly.
func (s *Session) Changed() {
	s.notify(s.State())
}

func (s *Session) notify(st State) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(st)
	}
}

// Dispose releases the connection and local tracks. Safe to call at any
// time, including while Start is in flight.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	if s.cancel != nil {
		s.cancel()
	}
	conn, video, audio := s.conn, s.video, s.audio
	s.mu.Unlock()

	if s.opts.Router != nil {
		s.opts.Router.Detach()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Error().Err(err).Msg("close connection")
		}
	}
	for _, t := range []core.LocalTrack{video, audio} {
		if t != nil {
			t.Stop()
		}
	}
	s.logger.Info().Msg("disposed")
}
