package tasks

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/shared"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxSessions = 10
	DefaultWorkers     = 4
	MaxWorkers         = 8
	DefaultRateLimit   = 4.0
)

// StemFetcher streams one stem to w.
type StemFetcher interface {
	FetchStem(ctx context.Context, stemURL string, w io.Writer) (int64, error)
}

// CacheOpts contains configuration for a [StemCache].
type CacheOpts struct {
	Dir         string  // Root directory; one subdirectory per session
	MaxSessions int     // Session directories kept by Prune (default: 10)
	NumWorkers  int     // Concurrent downloads (default: 4, max: 8)
	RateLimit   float64 // Requests per second (default: 4)
	Logger      *log.Logger
}

// StemResult is the outcome of fetching one stem.
type StemResult struct {
	Kind   models.Kind
	URL    string
	Path   string
	Bytes  int64
	Cached bool
	Err    error
}

// FetchResult summarizes a [StemCache.FetchStems] run.
type FetchResult struct {
	Dir     string
	Results []StemResult
	Fetched int
	Cached  int
	Failed  int
}

// Paths returns the local file of every stem that is available.
func (r *FetchResult) Paths() map[models.Kind]string {
	paths := make(map[models.Kind]string, len(r.Results))
	for _, res := range r.Results {
		if res.Err == nil {
			paths[res.Kind] = res.Path
		}
	}
	return paths
}

type fetchJob struct {
	kind models.Kind
	url  string
}

// StemCache keeps fetched stems on disk.
type StemCache struct {
	dir         string
	fetcher     StemFetcher
	limiter     *rate.Limiter
	workers     int
	maxSessions int
	logger      *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStemCache(fetcher StemFetcher, opts CacheOpts) *StemCache {
	if opts.Dir == "" {
		opts.Dir = filepath.Join(os.TempDir(), "stemx")
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = DefaultWorkers
	}
	if opts.NumWorkers > MaxWorkers {
		opts.NumWorkers = MaxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(os.Stderr)
	}

	return &StemCache{
		dir:         opts.Dir,
		fetcher:     fetcher,
		limiter:     rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		workers:     opts.NumWorkers,
		maxSessions: opts.MaxSessions,
		logger:      opts.Logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Dir returns the cache root.
func (c *StemCache) Dir() string { return c.dir }

// SessionDir returns the directory holding the stems of the session that produced stemURL.
func (c *StemCache) SessionDir(stemURL string) string {
	p := stemURL
	if u, err := url.Parse(stemURL); err == nil {
		p = u.Path
	}

	key, ok := shared.FindUUID(p)
	if !ok {
		key = uuid.NewSHA1(uuid.NameSpaceURL, []byte(path.Dir(p))).String()
	}
	return filepath.Join(c.dir, key)
}

// PathFor returns the local file for the stem of kind at stemURL.
func (c *StemCache) PathFor(kind models.Kind, stemURL string) string {
	p := stemURL
	if u, err := url.Parse(stemURL); err == nil {
		p = u.Path
	}

	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		ext = ".wav"
	}
	return filepath.Join(c.SessionDir(stemURL), kind.String()+ext)
}

// Resolve returns the local file for a stem, fetching it first when missing.
func (c *StemCache) Resolve(ctx context.Context, kind models.Kind, stemURL string) (string, error) {
	res := c.fetch(ctx, kind, stemURL)
	return res.Path, res.Err
}

// FetchStems downloads every stem of tracks concurrently with rate limiting and progress tracking,
// then prunes old session directories. Failed stems are reported in the result, not as an error.
func (c *StemCache) FetchStems(ctx context.Context, tracks models.TrackSet, prog chan<- ProgressUpdate) (*FetchResult, error) {
	kinds := tracks.Kinds()
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: no tracks to fetch", shared.ErrInvalidInput)
	}

	result := &FetchResult{
		Dir:     c.SessionDir(tracks[kinds[0]]),
		Results: make([]StemResult, 0, len(kinds)),
	}

	workers := min(c.workers, len(kinds))
	jobs := make(chan fetchJob, len(kinds))
	results := make(chan StemResult, len(kinds))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go c.fetchWorker(ctx, &wg, jobs, results)
	}

	sendProgress(prog, fetchStartUpdate(len(kinds)))
	for _, kind := range kinds {
		jobs <- fetchJob{kind: kind, url: tracks[kind]}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		switch {
		case res.Err != nil:
			result.Failed++
			c.logger.Warn("failed to fetch stem", "kind", res.Kind, "url", res.URL, "error", res.Err)
		case res.Cached:
			result.Cached++
		default:
			result.Fetched++
		}
		sendProgress(prog, fetchDoneUpdate(completed, len(kinds), res))
	}

	sort.Slice(result.Results, func(i, j int) bool { return result.Results[i].Kind < result.Results[j].Kind })

	if err := ctx.Err(); err != nil {
		return result, err
	}

	removed, err := c.Prune()
	if err != nil {
		c.logger.Warn("failed to prune stem cache", "error", err)
	} else if len(removed) > 0 {
		sendProgress(prog, pruneUpdate(removed))
	}

	return result, nil
}

// fetchWorker drains jobs until the channel closes or ctx is cancelled.
func (c *StemCache) fetchWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan fetchJob, results chan<- StemResult) {
	defer wg.Done()

	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- StemResult{Kind: job.kind, URL: job.url, Err: err}
			continue
		}
		results <- c.fetch(ctx, job.kind, job.url)
	}
}

func (c *StemCache) fetch(ctx context.Context, kind models.Kind, stemURL string) StemResult {
	target := c.PathFor(kind, stemURL)
	res := StemResult{Kind: kind, URL: stemURL, Path: target}

	lock := c.lockFor(target)
	lock.Lock()
	defer lock.Unlock()

	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		res.Cached = true
		res.Bytes = info.Size()
		return res
	}

	if err := c.limiter.Wait(ctx); err != nil {
		res.Err = err
		return res
	}

	n, err := c.download(ctx, stemURL, target)
	res.Bytes = n
	res.Err = err
	return res
}

func (c *StemCache) download(ctx context.Context, stemURL, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := c.fetcher.FetchStem(ctx, stemURL, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return n, fmt.Errorf("failed to store stem: %w", err)
	}

	c.logger.Debug("fetched stem", "url", stemURL, "path", target, "bytes", n)
	return n, nil
}

func (c *StemCache) lockFor(target string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[target]
	if !ok {
		l = &sync.Mutex{}
		c.locks[target] = l
	}
	return l
}

// Prune removes all but the most recently modified session directories.
func (c *StemCache) Prune() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	type dirInfo struct {
		path string
		info os.FileInfo
	}

	var dirs []dirInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, dirInfo{path: filepath.Join(c.dir, e.Name()), info: info})
	}

	if len(dirs) <= c.maxSessions {
		return nil, nil
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].info.ModTime().After(dirs[j].info.ModTime()) })

	var removed []string
	for _, d := range dirs[c.maxSessions:] {
		if err := os.RemoveAll(d.path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", d.path, err)
		}
		removed = append(removed, d.path)
	}

	c.logger.Info("pruned stem cache", "removed", len(removed), "kept", c.maxSessions)
	return removed, nil
}

// Remove deletes the cached stems of the session that produced stemURL.
func (c *StemCache) Remove(stemURL string) error {
	return os.RemoveAll(c.SessionDir(stemURL))
}
