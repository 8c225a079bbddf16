package player

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/shared"
)

const (
	DefaultVolume         = 0.8
	DefaultCleanupTimeout = 10 * time.Second

	labelPlay  = "play"
	labelPause = "pause"
)

// SessionOpts configures [NewSession].
type SessionOpts struct {
	ID       string
	Tracks   models.TrackSet
	Opener   Opener
	Cleaner  Cleaner
	StopMode StopMode

	// Volume is the starting level of every track. Zero selects [DefaultVolume].
	Volume float64

	// Reference is the kind whose position drives the shared playhead. When it is not
	// open the first open kind is used.
	Reference models.Kind

	CleanupTimeout time.Duration
	Logger         *log.Logger
}

// Session plays the stems of one separation job together.
type Session struct {
	mu        sync.Mutex
	id        string
	tracks    models.TrackSet
	order     []models.Kind
	handles   map[models.Kind]Handle
	volumes   map[models.Kind]float64
	reference models.Kind
	stopMode  StopMode

	state       State
	playhead    time.Duration
	highlighted bool
	completed   map[models.Kind]struct{}
	released    bool
	deleted     bool

	cleaner        Cleaner
	cleanupTimeout time.Duration
	done           chan struct{}
	logger         *log.Logger
}

// NewSession opens one handle per present track. Kinds without a URL are skipped and a kind whose
// open fails is logged and left out. It fails with [ErrNoTracks] when nothing could be opened.
func NewSession(ctx context.Context, opts SessionOpts) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(os.Stderr)
	}

	volume := opts.Volume
	if volume == 0 {
		volume = DefaultVolume
	}
	volume = clamp(volume)

	timeout := opts.CleanupTimeout
	if timeout <= 0 {
		timeout = DefaultCleanupTimeout
	}

	s := &Session{
		id:             opts.ID,
		tracks:         models.TrackSet{},
		handles:        make(map[models.Kind]Handle),
		volumes:        make(map[models.Kind]float64),
		completed:      make(map[models.Kind]struct{}),
		stopMode:       opts.StopMode,
		cleaner:        opts.Cleaner,
		cleanupTimeout: timeout,
		done:           make(chan struct{}),
		logger:         shared.WithLogger(logger, "session", opts.ID),
	}

	for _, kind := range opts.Tracks.Kinds() {
		url := opts.Tracks[kind]
		h, err := opts.Opener.Open(ctx, kind, url, s.endedFunc(kind))
		if err != nil {
			s.logger.Warn("skipping track", "kind", kind, "url", url, "error", err)
			continue
		}
		if err := h.SetVolume(volume); err != nil {
			s.logger.Warn("failed to set initial volume", "kind", kind, "error", err)
		}

		s.handles[kind] = h
		s.volumes[kind] = volume
		s.tracks[kind] = url
		s.order = append(s.order, kind)
	}

	if len(s.order) == 0 {
		close(s.done)
		return nil, ErrNoTracks
	}

	s.reference = s.order[0]
	if _, ok := s.handles[opts.Reference]; ok {
		s.reference = opts.Reference
	}

	s.logger.Debug("session ready", "tracks", len(s.order), "reference", s.reference)
	return s, nil
}

// ID returns the backend session identifier, which may be empty.
func (s *Session) ID() string { return s.id }

// Done is closed once the session has released its handles.
func (s *Session) Done() <-chan struct{} { return s.done }

// Kinds returns the open kinds in display order.
func (s *Session) Kinds() []models.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Kind(nil), s.order...)
}

// URLs returns the source URLs of the open tracks in display order.
func (s *Session) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks.URLs()
}

// DownloadURL returns the backend-relative ZIP download path for the open tracks.
func (s *Session) DownloadURL() (string, error) {
	return services.DownloadPath(s.URLs())
}

// Play starts every track from the shared playhead. It is a no-op while already playing.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrSessionClosed
	}
	if s.state == Playing {
		return nil
	}

	for _, kind := range s.order {
		if err := s.handles[kind].Seek(s.playhead); err != nil {
			s.logger.Warn("failed to seek track", "kind", kind, "position", s.playhead, "error", err)
		}
	}

	clear(s.completed)
	for _, kind := range s.order {
		if err := s.handles[kind].Play(); err != nil {
			s.logger.Error("failed to start track", "kind", kind, "error", err)
		}
	}

	s.state = Playing
	s.highlighted = true
	s.logger.Debug("playing", "position", s.playhead)
	return nil
}

// Pause stops every track and remembers the reference position.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrSessionClosed
	}
	s.pauseLocked()
	return nil
}

// Toggle plays when not playing and pauses otherwise.
func (s *Session) Toggle() error {
	s.mu.Lock()
	playing := s.state == Playing
	s.mu.Unlock()

	if playing {
		return s.Pause()
	}
	return s.Play()
}

// Stop pauses and, in [StopReset] mode, rewinds every track to the beginning.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrSessionClosed
	}
	s.pauseLocked()

	if s.stopMode == StopReset {
		for _, kind := range s.order {
			if err := s.handles[kind].Seek(0); err != nil {
				s.logger.Warn("failed to rewind track", "kind", kind, "error", err)
			}
		}
		s.playhead = 0
	}
	return nil
}

func (s *Session) pauseLocked() {
	if s.state != Playing {
		return
	}

	s.playhead = s.handles[s.reference].Position()
	for _, kind := range s.order {
		if err := s.handles[kind].Pause(); err != nil {
			s.logger.Warn("failed to pause track", "kind", kind, "error", err)
		}
	}

	s.state = Paused
	s.highlighted = false
	s.logger.Debug("paused", "position", s.playhead)
}

// SetVolume changes the level of one track only.
func (s *Session) SetVolume(kind models.Kind, level float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[kind]
	if !ok {
		return ErrTrackNotFound
	}

	level = clamp(level)
	if err := h.SetVolume(level); err != nil {
		return err
	}
	s.volumes[kind] = level
	return nil
}

// Volume returns the level of one track.
func (s *Session) Volume(kind models.Kind) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.volumes[kind]
	if !ok {
		return 0, ErrTrackNotFound
	}
	return v, nil
}

// State returns the transport state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot reports the current state, refreshing the playhead from the reference track while playing.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Playing {
		s.playhead = s.handles[s.reference].Position()
	}

	snap := Snapshot{
		ID:        s.id,
		State:     s.state,
		Playhead:  s.playhead,
		Transport: labelPlay,
		Closed:    s.released,
		Tracks:    make([]models.Track, 0, len(s.order)),
	}
	if s.state == Playing {
		snap.Transport = labelPause
	}

	for _, kind := range s.order {
		t := models.Track{
			Kind:        kind,
			URL:         s.tracks[kind],
			Volume:      s.volumes[kind],
			Highlighted: s.highlighted,
			Position:    s.playhead.Seconds(),
		}
		if !s.released {
			t.Position = s.handles[kind].Position().Seconds()
		}
		snap.Tracks = append(snap.Tracks, t)
	}
	return snap
}

func (s *Session) endedFunc(kind models.Kind) func() {
	return func() { s.trackEnded(kind) }
}

// trackEnded records a natural end. The last open track to end finishes the session.
func (s *Session) trackEnded(kind models.Kind) {
	s.mu.Lock()
	if s.released || s.state != Playing {
		s.mu.Unlock()
		return
	}
	if _, ok := s.handles[kind]; !ok {
		s.mu.Unlock()
		return
	}

	s.completed[kind] = struct{}{}
	s.logger.Debug("track ended", "kind", kind, "completed", len(s.completed), "tracks", len(s.handles))
	if len(s.completed) < len(s.handles) {
		s.mu.Unlock()
		return
	}

	s.state = Finished
	s.highlighted = false
	handles, remove := s.releaseLocked()
	s.mu.Unlock()

	s.logger.Info("playback finished")
	s.teardown(handles, remove)
}

// Close releases every handle and requests deletion of the server-side files unless that
// already happened. It is safe to call more than once and from any state.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.highlighted = false
	if s.state == Playing {
		s.playhead = s.handles[s.reference].Position()
		s.state = Paused
	}
	handles, remove := s.releaseLocked()
	s.mu.Unlock()

	s.teardown(handles, remove)
	return nil
}

func (s *Session) releaseLocked() ([]Handle, bool) {
	s.released = true
	handles := make([]Handle, 0, len(s.order))
	for _, kind := range s.order {
		handles = append(handles, s.handles[kind])
	}

	remove := !s.deleted
	s.deleted = true
	return handles, remove
}

func (s *Session) teardown(handles []Handle, remove bool) {
	for _, h := range handles {
		if err := h.Close(); err != nil {
			s.logger.Warn("failed to release track", "error", err)
		}
	}
	close(s.done)

	if remove {
		s.deleteRemote()
	}
}

func (s *Session) deleteRemote() {
	if s.id == "" {
		s.logger.Warn("no session identifier, skipping server cleanup")
		return
	}
	if s.cleaner == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
	defer cancel()

	if err := s.cleaner.Delete(ctx, s.id); err != nil {
		s.logger.Error("failed to delete session files", "error", err)
		return
	}
	s.logger.Info("deleted session files")
}
