package main

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stemx/internal/player"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/shared"
	"github.com/desertthunder/stemx/internal/tasks"
	"github.com/desertthunder/stemx/internal/ui"
	"github.com/desertthunder/stemx/internal/upload"
	"github.com/urfave/cli/v3"
)

// capturingProcessor keeps the last result so headless runs can print it.
type capturingProcessor struct {
	upload.Processor
	result *services.ProcessResult
}

func (p *capturingProcessor) Process(ctx context.Context, req services.ProcessRequest) (*services.ProcessResult, error) {
	res, err := p.Processor.Process(ctx, req)
	p.result = res
	return res, err
}

// processOutput is the --json shape of a finished submission.
type processOutput struct {
	Success   bool              `json:"success"`
	SessionID string            `json:"session_id,omitempty"`
	Tracks    map[string]string `json:"tracks,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Process submits a file and/or URL through the upload controller and prints the resulting tracks.
//
// With --play the stems are fetched and the player opens once they are ready.
func (r *Runner) Process(ctx context.Context, cmd *cli.Command) error {
	file := cmd.String("file")
	link := cmd.String("url")
	asJSON := cmd.Bool("json")
	play := cmd.Bool("play")

	if file == "" && link == "" {
		return fmt.Errorf("%w: either --file or --url must be provided", shared.ErrMissingArgument)
	}

	var out io.Writer = r.output
	if asJSON {
		out = io.Discard
	}
	view := upload.NewWriterView(out)
	processor := &capturingProcessor{Processor: r.backend}

	opts := upload.Options{
		Processor: processor,
		View:      view,
		Recorder:  r.recorder(),
		Logger:    r.logger,
	}

	var prog chan tasks.ProgressUpdate
	if play {
		if err := r.redirectLogs(); err != nil {
			return err
		}
		opts.Logger = r.logger
		prog = make(chan tasks.ProgressUpdate, 16)
		opts.Factory = r.sessionFactory(prog, "")
		go r.reportProgress(ctx, prog)
	}

	controller := upload.NewController(opts)
	session, err := controller.Submit(ctx, upload.Submission{File: file, URL: link})
	if prog != nil {
		close(prog)
	}

	if asJSON {
		if jerr := r.writeJSON(processJSON(processor.result, err), true); jerr != nil {
			return jerr
		}
	} else if err == nil && session == nil {
		r.printTracks(processor.result)
	}
	if err != nil {
		return err
	}

	if session == nil {
		return nil
	}
	defer controller.Close()
	return r.runPlayer(ctx, session)
}

func processJSON(res *services.ProcessResult, err error) processOutput {
	switch {
	case res == nil && err != nil:
		return processOutput{Error: err.Error()}
	case res == nil:
		return processOutput{}
	case !res.Success:
		return processOutput{Error: res.Error}
	}
	return processOutput{Success: true, SessionID: res.SessionID, Tracks: res.Tracks.Raw()}
}

func (r *Runner) printTracks(res *services.ProcessResult) {
	if res == nil {
		return
	}
	if res.SessionID != "" {
		r.writePlain("session: %s\n", res.SessionID)
	}
	for _, kind := range res.Tracks.Kinds() {
		r.writePlain("%-7s %s\n", kind, res.Tracks[kind])
	}
}

func (r *Runner) reportProgress(ctx context.Context, prog <-chan tasks.ProgressUpdate) {
	for {
		select {
		case update, ok := <-prog:
			if !ok {
				return
			}
			r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		case <-ctx.Done():
			return
		}
	}
}

// runPlayer shows the player for session until the user quits, then tears it down.
func (r *Runner) runPlayer(ctx context.Context, session *player.Session) error {
	defer session.Close()

	model := ui.NewPlayerModel(ctx, session, ui.Options{DownloadURL: r.backend.DownloadURL})
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running player: %w", err)
	}
	return nil
}
