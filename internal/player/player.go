package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/stemx/internal/models"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrTrackNotFound = errors.New("track not in session")
	ErrNoTracks      = errors.New("no playable tracks")
)

// State is the transport state of a [Session].
type State int

const (
	Idle State = iota
	Playing
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StopMode selects what Stop does to the playhead.
type StopMode int

const (
	StopReset StopMode = iota // rewind every stem to zero
	StopHold                  // keep the position, like Pause
)

// ParseStopMode accepts "reset" or "hold".
func ParseStopMode(s string) (StopMode, error) {
	switch s {
	case "", "reset":
		return StopReset, nil
	case "hold":
		return StopHold, nil
	default:
		return 0, fmt.Errorf("unknown stop mode %q", s)
	}
}

func (m StopMode) String() string {
	if m == StopHold {
		return "hold"
	}
	return "reset"
}

// Handle controls playback of a single stem.
type Handle interface {
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	Position() time.Duration
	SetVolume(level float64) error
	Volume() float64
	Close() error
}

// Opener creates a [Handle] for the stem at url. onEnd must be called once each time
// playback reaches the natural end of the stream, and never while the session's methods
// are running on the same goroutine.
type Opener interface {
	Open(ctx context.Context, kind models.Kind, url string, onEnd func()) (Handle, error)
}

// OpenerFunc adapts a function to [Opener].
type OpenerFunc func(ctx context.Context, kind models.Kind, url string, onEnd func()) (Handle, error)

func (f OpenerFunc) Open(ctx context.Context, kind models.Kind, url string, onEnd func()) (Handle, error) {
	return f(ctx, kind, url, onEnd)
}

// Cleaner deletes the server-side files of a session.
type Cleaner interface {
	Delete(ctx context.Context, sessionID string) error
}

// Snapshot is a point-in-time view of a session for rendering.
type Snapshot struct {
	ID        string
	State     State
	Playhead  time.Duration
	Transport string // label of the play/pause control
	Tracks    []models.Track
	Closed    bool
}

func clamp(level float64) float64 {
	switch {
	case level < 0:
		return 0
	case level > 1:
		return 1
	default:
		return level
	}
}
