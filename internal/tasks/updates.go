package tasks

import (
	"fmt"

	"github.com/desertthunder/stemx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchStems Phase = iota
	PruneCache
	DeleteSessions
)

func (p Phase) String() string {
	switch p {
	case FetchStems:
		return "fetch_stems"
	case PruneCache:
		return "prune_cache"
	case DeleteSessions:
		return "delete_sessions"
	default:
		return ""
	}
}

// sendProgress never blocks: updates are dropped when nobody is reading.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchStartUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchStems,
		Total:   total,
		Message: fmt.Sprintf("Fetching %d stems...", total),
	}
}

func fetchDoneUpdate(step, total int, res StemResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.Kind)
	switch {
	case res.Err != nil:
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Kind, res.Err)
	case res.Cached:
		msg = fmt.Sprintf("[%d/%d] ✓ %s (cached)", step, total, res.Kind)
	}
	return ProgressUpdate{Phase: FetchStems, Step: step, Total: total, Message: msg, Data: res}
}

func pruneUpdate(removed []string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PruneCache,
		Step:    len(removed),
		Total:   len(removed),
		Message: fmt.Sprintf("Removed %d old cache directories", len(removed)),
		Data:    removed,
	}
}

func deleteUpdate(step, total int, rec *models.SessionRecord, err error) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ deleted %s", step, total, rec.ID())
	if err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, rec.ID(), err)
	}
	return ProgressUpdate{Phase: DeleteSessions, Step: step, Total: total, Message: msg, Data: rec}
}
