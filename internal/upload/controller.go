// Package upload submits audio to the separation backend and hands the resulting stems to the player.
package upload

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/player"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/shared"
)

// Status classifies the message shown to the user.
type Status int

const (
	StatusProcessing Status = iota
	StatusReady
	StatusFailed // backend answered success: false
	StatusError  // transport error, unreadable file or malformed response
)

const (
	MsgProcessing  = "Processing... ⏳ (this can take a few minutes)"
	MsgReady       = "✅ Tracks ready!"
	MsgFailed      = "❌ Error during processing."
	MsgServerError = "❌ Server error or invalid file."
)

func (s Status) String() string {
	switch s {
	case StatusProcessing:
		return "processing"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Submission is one form submit. Either field may be empty.
type Submission struct {
	File string
	URL  string
}

// View is the surface the controller reports to.
type View interface {
	SetStatus(status Status, message string)
	HidePlayer()
	ShowPlayer(s *player.Session)
}

type Processor interface {
	Process(ctx context.Context, req services.ProcessRequest) (*services.ProcessResult, error)
}

// Recorder persists a successful separation.
type Recorder interface {
	Record(ctx context.Context, id, source string, tracks models.TrackSet) error
}

// SessionFactory builds the playback session for a processed job.
type SessionFactory func(ctx context.Context, id string, tracks models.TrackSet) (*player.Session, error)

type Options struct {
	Processor Processor
	View      View
	Factory   SessionFactory // nil stops after the ready status; no player is shown
	Recorder  Recorder
	Logger    *log.Logger
}

// Controller drives one upload form. It owns at most one live session.
type Controller struct {
	processor Processor
	view      View
	factory   SessionFactory
	recorder  Recorder
	logger    *log.Logger

	mu      sync.Mutex
	current *player.Session
}

func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(os.Stderr)
	}
	return &Controller{
		processor: opts.Processor,
		view:      opts.View,
		factory:   opts.Factory,
		recorder:  opts.Recorder,
		logger:    logger,
	}
}

// Submit sends sub to the backend with a single request and, on success, shows a new session.
func (c *Controller) Submit(ctx context.Context, sub Submission) (*player.Session, error) {
	c.view.SetStatus(StatusProcessing, MsgProcessing)
	c.view.HidePlayer()
	c.closeCurrent()

	req := services.ProcessRequest{File: sub.File, URL: sub.URL}
	c.logger.Info("submitting", "source", req.Source())

	res, err := c.processor.Process(ctx, req)
	if err != nil {
		c.logger.Error("processing request failed", "error", err)
		c.view.SetStatus(StatusError, MsgServerError)
		return nil, err
	}
	if !res.Success {
		c.logger.Warn("backend reported failure", "error", res.Error)
		c.view.SetStatus(StatusFailed, MsgFailed)
		return nil, fmt.Errorf("%w: %s", shared.ErrProcessingFailed, res.Error)
	}

	if c.recorder != nil {
		if err := c.recorder.Record(ctx, res.SessionID, req.Source(), res.Tracks); err != nil {
			c.logger.Warn("failed to record session", "session", res.SessionID, "error", err)
		}
	}

	c.view.SetStatus(StatusReady, MsgReady)
	if c.factory == nil {
		return nil, nil
	}

	session, err := c.factory(ctx, res.SessionID, res.Tracks)
	if err != nil {
		c.logger.Error("failed to open tracks", "session", res.SessionID, "error", err)
		c.view.SetStatus(StatusError, MsgServerError)
		return nil, err
	}

	c.mu.Lock()
	c.current = session
	c.mu.Unlock()

	c.view.ShowPlayer(session)
	return session, nil
}

// Current returns the live session, if any.
func (c *Controller) Current() *player.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close tears down the live session.
func (c *Controller) Close() error {
	c.closeCurrent()
	return nil
}

func (c *Controller) closeCurrent() {
	c.mu.Lock()
	prev := c.current
	c.current = nil
	c.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
}
