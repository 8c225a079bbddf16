package upload

import (
	"fmt"
	"io"
	"sync"

	"github.com/desertthunder/stemx/internal/player"
)

// WriterView prints status changes and the revealed tracks as plain lines.
type WriterView struct {
	mu      sync.Mutex
	w       io.Writer
	status  Status
	visible bool
}

func NewWriterView(w io.Writer) *WriterView {
	return &WriterView{w: w}
}

func (v *WriterView) SetStatus(status Status, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = status
	fmt.Fprintln(v.w, message)
}

func (v *WriterView) HidePlayer() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = false
}

func (v *WriterView) ShowPlayer(s *player.Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = true

	if id := s.ID(); id != "" {
		fmt.Fprintf(v.w, "session: %s\n", id)
	}
	for _, t := range s.Snapshot().Tracks {
		fmt.Fprintf(v.w, "%-7s %s\n", t.Kind, t.URL)
	}
}

// Status returns the last status set.
func (v *WriterView) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Visible reports whether the player is shown.
func (v *WriterView) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}
