package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/stemx/internal/shared"
	"github.com/desertthunder/stemx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Play opens the player for a recorded session or for stems given as kind=url pairs.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	id, tracks, err := r.resolveTracks(cmd)
	if err != nil {
		return err
	}
	if id == "" {
		r.logger.Warn("no session identifier found in track URLs; server files will not be deleted")
	}

	if err := r.redirectLogs(); err != nil {
		return err
	}

	prog := make(chan tasks.ProgressUpdate, 16)
	go r.reportProgress(ctx, prog)

	session, err := r.openSession(ctx, id, tracks, prog, cmd.String("stop-mode"))
	close(prog)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	return r.runPlayer(ctx, session)
}

// Download streams the ZIP archive of the given stems to a file, or opens its URL in the browser.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	_, tracks, err := r.resolveTracks(cmd)
	if err != nil {
		return err
	}
	urls := tracks.URLs()

	if cmd.Bool("open") {
		u, err := r.backend.DownloadURL(urls)
		if err != nil {
			return err
		}
		r.logger.Info("opening download", "url", u)
		if err := shared.OpenBrowser(u); err != nil {
			return err
		}
		r.writePlain("✓ Opened %s\n", u)
		return nil
	}

	path := cmd.String("output")
	if path == "" {
		return fmt.Errorf("%w: --output must not be empty", shared.ErrInvalidFlag)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	n, err := r.backend.DownloadZip(ctx, urls, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("download failed: %w", err)
	}

	r.logger.Info("downloaded stems", "path", path, "bytes", n, "tracks", len(urls))
	r.writePlain("✓ Saved %d stems (%d bytes) to %s\n", len(urls), n, path)
	return nil
}
