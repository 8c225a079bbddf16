// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/stemx/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// FakeHandle is an in-memory media handle whose clock only moves when told to.
type FakeHandle struct {
	mu       sync.Mutex
	URL      string
	playing  bool
	closed   bool
	position time.Duration
	volume   float64
	plays    int
	pauses   int
	seeks    []time.Duration
	onEnd    func()
}

func NewFakeHandle(url string, onEnd func()) *FakeHandle {
	return &FakeHandle{URL: url, volume: 1, onEnd: onEnd}
}

func (h *FakeHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("handle closed")
	}
	h.playing = true
	h.plays++
	return nil
}

func (h *FakeHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
	h.pauses++
	return nil
}

func (h *FakeHandle) Seek(d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.position = d
	h.seeks = append(h.seeks, d)
	return nil
}

func (h *FakeHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

func (h *FakeHandle) SetVolume(v float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = v
	return nil
}

func (h *FakeHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *FakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
	h.closed = true
	return nil
}

// Advance moves the clock forward when playing.
func (h *FakeHandle) Advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.playing {
		h.position += d
	}
}

// End simulates the stream reaching its natural end.
func (h *FakeHandle) End() {
	h.mu.Lock()
	h.playing = false
	cb := h.onEnd
	h.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (h *FakeHandle) Playing() bool { h.mu.Lock(); defer h.mu.Unlock(); return h.playing }
func (h *FakeHandle) Closed() bool  { h.mu.Lock(); defer h.mu.Unlock(); return h.closed }
func (h *FakeHandle) Plays() int    { h.mu.Lock(); defer h.mu.Unlock(); return h.plays }
func (h *FakeHandle) Pauses() int   { h.mu.Lock(); defer h.mu.Unlock(); return h.pauses }

func (h *FakeHandle) Seeks() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.seeks...)
}

// FakeOpener hands out [FakeHandle] values and remembers them by kind.
type FakeOpener struct {
	mu      sync.Mutex
	Handles map[models.Kind]*FakeHandle
	Fail    map[models.Kind]error
}

func NewFakeOpener() *FakeOpener {
	return &FakeOpener{Handles: map[models.Kind]*FakeHandle{}, Fail: map[models.Kind]error{}}
}

// OpenFake creates and records a handle for kind unless Fail holds an error for it.
func (o *FakeOpener) OpenFake(_ context.Context, kind models.Kind, url string, onEnd func()) (*FakeHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.Fail[kind]; err != nil {
		return nil, err
	}
	h := NewFakeHandle(url, onEnd)
	o.Handles[kind] = h
	return h, nil
}

func (o *FakeOpener) Handle(kind models.Kind) *FakeHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Handles[kind]
}

// FakeCleaner counts deletion requests.
type FakeCleaner struct {
	mu    sync.Mutex
	IDs   []string
	Err   error
	Block chan struct{}
}

func (c *FakeCleaner) Delete(_ context.Context, sessionID string) error {
	if c.Block != nil {
		<-c.Block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.IDs = append(c.IDs, sessionID)
	return c.Err
}

func (c *FakeCleaner) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.IDs)
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
