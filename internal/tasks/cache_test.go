package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/shared"
	tu "github.com/desertthunder/stemx/internal/testing"
)

const sessionUUID = "7d3f0a52-1f43-4c8e-9a43-4b1f2f6c9e10"

type mockFetcher struct {
	mu     sync.Mutex
	calls  map[string]int
	fail   map[string]error
	active atomic.Int32
	peak   atomic.Int32
	delay  time.Duration
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{calls: map[string]int{}, fail: map[string]error{}}
}

func (m *mockFetcher) FetchStem(ctx context.Context, stemURL string, w io.Writer) (int64, error) {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.calls[stemURL]++
	err := m.fail[stemURL]
	m.mu.Unlock()

	if err != nil {
		return 0, err
	}
	written, err := io.WriteString(w, "RIFF"+stemURL)
	return int64(written), err
}

func (m *mockFetcher) Calls(u string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[u]
}

func fourTracks() models.TrackSet {
	base := "/static/output/" + sessionUUID + "/mdx_extra_q/song/"
	return models.TrackSet{
		models.Vocals: base + "vocals.wav",
		models.Drums:  base + "drums.wav",
		models.Bass:   base + "bass.wav",
		models.Other:  base + "other.wav",
	}
}

func newTestCache(t *testing.T, f StemFetcher, opts CacheOpts) *StemCache {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 1000
	}
	opts.Logger = shared.NewLogger(io.Discard)
	return NewStemCache(f, opts)
}

func TestStemCache_Paths(t *testing.T) {
	c := newTestCache(t, newMockFetcher(), CacheOpts{Dir: "/cache"})

	tests := []struct {
		name string
		kind models.Kind
		url  string
		want string
	}{
		{
			name: "session uuid in path",
			kind: models.Vocals,
			url:  "/static/output/" + sessionUUID + "/mdx_extra_q/song/vocals.wav",
			want: filepath.Join("/cache", sessionUUID, "vocals.wav"),
		},
		{
			name: "absolute url keeps extension",
			kind: models.Drums,
			url:  "http://127.0.0.1:5000/static/output/" + sessionUUID + "/x/drums.MP3?v=1",
			want: filepath.Join("/cache", sessionUUID, "drums.mp3"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.PathFor(tt.kind, tt.url); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	t.Run("urls without a uuid share a stable directory", func(t *testing.T) {
		a := c.SessionDir("/f/v.mp3")
		b := c.SessionDir("/f/d.mp3")
		other := c.SessionDir("/g/v.mp3")
		if a != b {
			t.Errorf("expected same directory, got %s and %s", a, b)
		}
		if a == other {
			t.Error("different url directories should not share a cache directory")
		}
		if got := c.PathFor(models.Bass, "/f/bass"); filepath.Ext(got) != ".wav" {
			t.Errorf("expected .wav default, got %s", got)
		}
	})
}

func TestStemCache_FetchStems(t *testing.T) {
	t.Run("fetches every present stem", func(t *testing.T) {
		f := newMockFetcher()
		c := newTestCache(t, f, CacheOpts{})
		tracks := fourTracks()

		result, err := c.FetchStems(context.Background(), tracks, nil)
		if err != nil {
			t.Fatalf("FetchStems failed: %v", err)
		}
		if result.Fetched != 4 || result.Failed != 0 || result.Cached != 0 {
			t.Errorf("unexpected counts %+v", result)
		}
		if result.Dir != filepath.Join(c.Dir(), sessionUUID) {
			t.Errorf("unexpected dir %s", result.Dir)
		}

		paths := result.Paths()
		for kind, u := range tracks {
			got := tu.MustReadFile(t, paths[kind])
			if got != "RIFF"+u {
				t.Errorf("%s: unexpected content %q", kind, got)
			}
		}
		if result.Results[0].Kind != models.Vocals {
			t.Errorf("results not in display order")
		}
	})

	t.Run("reuses cached stems", func(t *testing.T) {
		f := newMockFetcher()
		c := newTestCache(t, f, CacheOpts{})
		tracks := fourTracks()

		_, _ = c.FetchStems(context.Background(), tracks, nil)
		result, err := c.FetchStems(context.Background(), tracks, nil)
		if err != nil {
			t.Fatalf("FetchStems failed: %v", err)
		}
		if result.Cached != 4 {
			t.Errorf("expected 4 cached, got %d", result.Cached)
		}
		if n := f.Calls(tracks[models.Vocals]); n != 1 {
			t.Errorf("expected one download, got %d", n)
		}
	})

	t.Run("partial failures", func(t *testing.T) {
		f := newMockFetcher()
		tracks := fourTracks()
		f.fail[tracks[models.Bass]] = errors.New("404")
		c := newTestCache(t, f, CacheOpts{})

		result, err := c.FetchStems(context.Background(), tracks, nil)
		if err != nil {
			t.Fatalf("FetchStems failed: %v", err)
		}
		if result.Failed != 1 || result.Fetched != 3 {
			t.Errorf("unexpected counts %+v", result)
		}
		if _, ok := result.Paths()[models.Bass]; ok {
			t.Error("failed stem should have no path")
		}
		if _, err := os.Stat(c.PathFor(models.Bass, tracks[models.Bass])); !os.IsNotExist(err) {
			t.Error("failed stem left a file behind")
		}
	})

	t.Run("empty track set", func(t *testing.T) {
		c := newTestCache(t, newMockFetcher(), CacheOpts{})
		if _, err := c.FetchStems(context.Background(), models.TrackSet{}, nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("worker pool limits concurrency", func(t *testing.T) {
		f := newMockFetcher()
		f.delay = 20 * time.Millisecond
		c := newTestCache(t, f, CacheOpts{NumWorkers: 2})

		if _, err := c.FetchStems(context.Background(), fourTracks(), nil); err != nil {
			t.Fatalf("FetchStems failed: %v", err)
		}
		if peak := f.peak.Load(); peak > 2 {
			t.Errorf("expected at most 2 concurrent fetches, got %d", peak)
		}
	})

	t.Run("rate limiting", func(t *testing.T) {
		c := newTestCache(t, newMockFetcher(), CacheOpts{RateLimit: 20})

		start := time.Now()
		if _, err := c.FetchStems(context.Background(), fourTracks(), nil); err != nil {
			t.Fatalf("FetchStems failed: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
			t.Errorf("expected rate limiting to take at least 100ms, took %v", elapsed)
		}
	})

	t.Run("progress updates", func(t *testing.T) {
		c := newTestCache(t, newMockFetcher(), CacheOpts{})
		prog := make(chan ProgressUpdate, 10)

		if _, err := c.FetchStems(context.Background(), fourTracks(), prog); err != nil {
			t.Fatalf("FetchStems failed: %v", err)
		}
		close(prog)

		var updates []ProgressUpdate
		for u := range prog {
			updates = append(updates, u)
		}
		if len(updates) != 5 {
			t.Fatalf("expected 5 updates, got %d", len(updates))
		}
		if updates[0].Phase != FetchStems || updates[0].Total != 4 {
			t.Errorf("unexpected first update %+v", updates[0])
		}
		if last := updates[4]; last.Step != 4 || !strings.Contains(last.Message, "[4/4]") {
			t.Errorf("unexpected last update %+v", last)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		c := newTestCache(t, newMockFetcher(), CacheOpts{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := c.FetchStems(ctx, fourTracks(), nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if result == nil || result.Failed != 4 {
			t.Errorf("expected every stem to fail, got %+v", result)
		}
	})

	t.Run("fetches over http", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "audio:%s", r.URL.Path)
		}))
		defer server.Close()

		c := newTestCache(t, services.NewBackendService(server.URL, nil), CacheOpts{})
		path, err := c.Resolve(context.Background(), models.Vocals, "/static/output/"+sessionUUID+"/vocals.wav")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if got := tu.MustReadFile(t, path); got != "audio:/static/output/"+sessionUUID+"/vocals.wav" {
			t.Errorf("unexpected content %q", got)
		}
	})
}

func TestStemCache_Prune(t *testing.T) {
	t.Run("keeps the most recent directories", func(t *testing.T) {
		dir := t.TempDir()
		c := newTestCache(t, newMockFetcher(), CacheOpts{Dir: dir, MaxSessions: 2})

		now := time.Now()
		for i, name := range []string{"old", "middle", "new"} {
			p := filepath.Join(dir, name)
			if err := os.MkdirAll(p, 0755); err != nil {
				t.Fatal(err)
			}
			mtime := now.Add(time.Duration(i-3) * time.Hour)
			if err := os.Chtimes(p, mtime, mtime); err != nil {
				t.Fatal(err)
			}
		}
		os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0644)

		removed, err := c.Prune()
		if err != nil {
			t.Fatalf("Prune failed: %v", err)
		}
		if len(removed) != 1 || filepath.Base(removed[0]) != "old" {
			t.Errorf("expected old to be removed, got %v", removed)
		}
		tu.AssertDirExists(t, filepath.Join(dir, "middle"))
		tu.AssertDirExists(t, filepath.Join(dir, "new"))
		tu.AssertFileExists(t, filepath.Join(dir, "stray.txt"))
	})

	t.Run("missing cache directory", func(t *testing.T) {
		c := newTestCache(t, newMockFetcher(), CacheOpts{Dir: filepath.Join(t.TempDir(), "missing")})
		if removed, err := c.Prune(); err != nil || removed != nil {
			t.Errorf("expected no-op, got %v, %v", removed, err)
		}
	})

	t.Run("remove drops one session", func(t *testing.T) {
		f := newMockFetcher()
		c := newTestCache(t, f, CacheOpts{})
		tracks := fourTracks()
		_, _ = c.FetchStems(context.Background(), tracks, nil)

		if err := c.Remove(tracks[models.Vocals]); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if _, err := os.Stat(c.SessionDir(tracks[models.Vocals])); !os.IsNotExist(err) {
			t.Error("session directory still present")
		}
	})
}
