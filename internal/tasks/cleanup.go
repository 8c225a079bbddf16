package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/shared"
)

// Deleter removes a session's files on the backend.
type Deleter interface {
	Delete(ctx context.Context, sessionID string) error
}

// SessionStore is the part of the history the cleaner updates.
type SessionStore interface {
	Delete(id string) error
	Pending() ([]*models.SessionRecord, error)
}

// SweepResult summarizes a [SessionCleaner.Sweep] run.
type SweepResult struct {
	Total   int
	Deleted int
	Failed  int
	Errors  map[string]error
}

// SessionCleaner deletes backend sessions and keeps history in step.
type SessionCleaner struct {
	backend Deleter
	store   SessionStore
	logger  *log.Logger
}

// NewSessionCleaner creates a cleaner. store may be nil when no history is kept.
func NewSessionCleaner(backend Deleter, store SessionStore, logger *log.Logger) *SessionCleaner {
	if logger == nil {
		logger = shared.NewLogger(os.Stderr)
	}
	return &SessionCleaner{backend: backend, store: store, logger: logger}
}

// Delete asks the backend to remove the session and marks it deleted in history.
func (c *SessionCleaner) Delete(ctx context.Context, sessionID string) error {
	if err := c.backend.Delete(ctx, sessionID); err != nil {
		return err
	}

	if c.store != nil {
		if err := c.store.Delete(sessionID); err != nil && !errors.Is(err, shared.ErrSessionNotFound) {
			c.logger.Warn("failed to mark session deleted", "session", sessionID, "error", err)
		}
	}
	return nil
}

// Sweep issues one deletion request per pending session. Failures are collected and the sweep continues.
func (c *SessionCleaner) Sweep(ctx context.Context, prog chan<- ProgressUpdate) (*SweepResult, error) {
	if c.store == nil {
		return nil, fmt.Errorf("%w: session history not configured", shared.ErrServiceUnavailable)
	}

	pending, err := c.store.Pending()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending sessions: %w", err)
	}

	result := &SweepResult{Total: len(pending), Errors: map[string]error{}}
	for i, rec := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		err := c.Delete(ctx, rec.ID())
		if err != nil {
			result.Failed++
			result.Errors[rec.ID()] = err
			c.logger.Warn("failed to delete session", "session", rec.ID(), "error", err)
		} else {
			result.Deleted++
		}
		sendProgress(prog, deleteUpdate(i+1, len(pending), rec, err))
	}

	return result, nil
}
