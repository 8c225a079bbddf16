package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/desertthunder/stemx/internal/formatter"
	"github.com/desertthunder/stemx/internal/shared"
	"github.com/desertthunder/stemx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Delete asks the backend to remove one session's files.
func (r *Runner) Delete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("session-id")
	if id == "" {
		return fmt.Errorf("%w: session-id", shared.ErrMissingArgument)
	}

	if err := r.cleaner().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}

	r.writePlain("✓ Deleted session %s\n", id)
	return nil
}

// Cleanup re-issues deletion for every session whose files were not confirmed deleted.
func (r *Runner) Cleanup(ctx context.Context, cmd *cli.Command) error {
	prog := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.reportProgress(ctx, prog)
	}()

	result, err := r.cleaner().Sweep(ctx, prog)
	close(prog)
	<-done
	if err != nil {
		return err
	}

	r.writePlainHeader("Cleanup")
	r.writePlain("Pending: %d\n", result.Total)
	r.writePlain("Deleted: %d\n", result.Deleted)
	r.writePlain("Failed:  %d\n", result.Failed)

	ids := make([]string, 0, len(result.Errors))
	for id := range result.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r.writePlain("  ✗ %s: %v\n", id, result.Errors[id])
	}

	if cmd.Bool("prune") {
		removed, err := r.stemCache().Prune()
		if err != nil {
			return err
		}
		r.writePlain("Pruned:  %d cached sessions\n", len(removed))
	}
	return nil
}

// History lists recorded sessions in the requested format.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.history()
	if err != nil {
		return err
	}

	criteria := map[string]any{}
	if limit := cmd.Int("limit"); limit > 0 {
		criteria["limit"] = int(limit)
	}
	if cmd.Bool("pending") {
		criteria["pending"] = true
	}

	records, err := repo.List(criteria)
	if err != nil {
		return err
	}

	format := cmd.String("format")
	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteExport(format, records, path); err != nil {
			return err
		}
		r.logger.Info("exported history", "path", path, "sessions", len(records), "format", format)
		r.writePlain("✓ Exported %d sessions to %s\n", len(records), path)
		return nil
	}

	data, err := formatter.Export(format, records)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
