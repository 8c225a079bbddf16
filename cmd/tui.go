package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stemx/internal/shared"
	"github.com/desertthunder/stemx/internal/tasks"
	"github.com/desertthunder/stemx/internal/ui"
	"github.com/desertthunder/stemx/internal/upload"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive upload form and stem player.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.redirectLogs(); err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	model := ui.NewModel(ctx, ui.Options{
		Upload: upload.Options{
			Processor: r.backend,
			Factory:   r.sessionFactory(progress, ""),
			Recorder:  r.recorder(),
			Logger:    r.logger,
		},
		Progress:    progress,
		DownloadURL: r.backend.DownloadURL,
	})
	defer model.Close()
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// redirectLogs sends logs to the configured file so they do not interfere with TUI rendering.
func (r *Runner) redirectLogs() error {
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)
	return nil
}
