package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/player"
	"github.com/desertthunder/stemx/internal/repositories"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/shared"
	"github.com/desertthunder/stemx/internal/tasks"
	"github.com/desertthunder/stemx/internal/upload"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	backend    services.Backend
	sessions   *repositories.SessionRepository
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	mu     sync.Mutex
	closer io.Closer
	cache  *tasks.StemCache
	opener player.Opener
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Backend    services.Backend
	Sessions   *repositories.SessionRepository // opened from config.Database on first use when nil
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer

	// Opener overrides audio output; the beep speaker is used when nil.
	Opener player.Opener
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.Backend.Timeout()}
	}
	if opts.Backend == nil {
		opts.Backend = services.NewBackendService(opts.Config.Backend.BaseURL, opts.HTTPClient)
	}

	return &Runner{
		config:     opts.Config,
		backend:    opts.Backend,
		sessions:   opts.Sessions,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		opener:     opts.Opener,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, tuiCommand, processCommand, playCommand, downloadCommand, deleteCommand, cleanupCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the history database when it was opened by the runner.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// history returns the session repository, opening and migrating the database on first use.
func (r *Runner) history() (*repositories.SessionRepository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions != nil {
		return r.sessions, nil
	}

	path := r.config.Database.Path
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	if path != ":memory:" {
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.sessions = repositories.NewSessionRepository(db)
	r.closer = db
	return r.sessions, nil
}

// recorder returns the history as an [upload.Recorder], or nil when it cannot be opened.
func (r *Runner) recorder() upload.Recorder {
	repo, err := r.history()
	if err != nil {
		r.logger.Warn("session history unavailable", "error", err)
		return nil
	}
	return repo
}

func (r *Runner) cleaner() *tasks.SessionCleaner {
	repo, err := r.history()
	if err != nil {
		r.logger.Warn("session history unavailable", "error", err)
		return tasks.NewSessionCleaner(r.backend, nil, r.logger)
	}
	return tasks.NewSessionCleaner(r.backend, repo, r.logger)
}

func (r *Runner) stemCache() *tasks.StemCache {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cache == nil {
		r.cache = tasks.NewStemCache(r.backend, tasks.CacheOpts{
			Dir:         r.config.Cache.Dir,
			MaxSessions: r.config.Cache.MaxSessions,
			NumWorkers:  r.config.Cache.Workers,
			RateLimit:   r.config.Backend.RateLimit,
			Logger:      shared.WithLogger(r.logger, "component", "cache"),
		})
	}
	return r.cache
}

// audioOpener initializes the speaker on first use and plays cached stems through it.
func (r *Runner) audioOpener() (player.Opener, error) {
	if r.opener != nil {
		return r.opener, nil
	}

	buffer := time.Duration(r.config.Player.BufferMS) * time.Millisecond
	rate, err := player.InitSpeaker(r.config.Player.SampleRate, buffer)
	if err != nil {
		return nil, fmt.Errorf("%w: audio output: %v", shared.ErrServiceUnavailable, err)
	}

	r.opener = player.NewBeepOpener(r.stemCache(), player.SpeakerMixer(), rate)
	return r.opener, nil
}

// sessionFactory builds sessions from the local stem cache. stopMode overrides the configured one when set.
func (r *Runner) sessionFactory(prog chan<- tasks.ProgressUpdate, stopMode string) upload.SessionFactory {
	return func(ctx context.Context, id string, tracks models.TrackSet) (*player.Session, error) {
		return r.openSession(ctx, id, tracks, prog, stopMode)
	}
}

func (r *Runner) openSession(ctx context.Context, id string, tracks models.TrackSet, prog chan<- tasks.ProgressUpdate, stopMode string) (*player.Session, error) {
	if stopMode == "" {
		stopMode = r.config.Player.StopMode
	}
	mode, err := player.ParseStopMode(stopMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	opener, err := r.audioOpener()
	if err != nil {
		return nil, err
	}

	result, err := r.stemCache().FetchStems(ctx, tracks, prog)
	if err != nil {
		return nil, err
	}
	if result.Failed > 0 {
		r.logger.Warn("some stems could not be fetched", "failed", result.Failed, "total", len(result.Results))
	}

	if id != "" {
		if repo, err := r.history(); err == nil {
			if err := repo.SetCacheDir(id, result.Dir); err != nil && !errors.Is(err, shared.ErrSessionNotFound) {
				r.logger.Warn("failed to record cache directory", "session", id, "error", err)
			}
		}
	}

	reference, err := models.ParseKind(r.config.Player.Reference)
	if err != nil {
		reference = models.Vocals
	}

	return player.NewSession(ctx, player.SessionOpts{
		ID:        id,
		Tracks:    tracks,
		Opener:    opener,
		Cleaner:   r.cleaner(),
		StopMode:  mode,
		Volume:    r.config.Player.DefaultVolume,
		Reference: reference,
		Logger:    r.logger,
	})
}

// resolveTracks returns the tracks of a recorded session or of the kind=url pairs given on the command line.
func (r *Runner) resolveTracks(cmd *cli.Command) (string, models.TrackSet, error) {
	sessionID := cmd.String("session")
	pairs := cmd.StringSlice("track")

	switch {
	case sessionID == "" && len(pairs) == 0:
		return "", nil, fmt.Errorf("%w: either --session or --track must be provided", shared.ErrMissingArgument)
	case sessionID != "" && len(pairs) > 0:
		return "", nil, fmt.Errorf("%w: cannot specify both --session and --track", shared.ErrInvalidArgument)
	case sessionID != "":
		repo, err := r.history()
		if err != nil {
			return "", nil, err
		}
		rec, err := repo.Get(sessionID)
		if err != nil {
			return "", nil, err
		}
		if rec.Deleted() {
			return "", nil, fmt.Errorf("%w: session %s was deleted on %s", shared.ErrSessionNotFound, sessionID, rec.DeletedAt().Format(time.RFC3339))
		}
		return rec.ID(), rec.Tracks(), nil
	}

	tracks, err := models.ParseTrackFlags(pairs)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if len(tracks) == 0 {
		return "", nil, fmt.Errorf("%w: no track URLs given", shared.ErrInvalidArgument)
	}
	return services.SessionIDFor("", tracks), tracks, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
