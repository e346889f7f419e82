package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/snapsong/internal/formatter"
	"github.com/desertthunder/snapsong/internal/models"
	"github.com/desertthunder/snapsong/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Run processes every image currently in the inbox once.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	pipeline, err := r.newPipeline(ctx, cmd)
	if err != nil {
		return err
	}

	opts := pipeline.Opts()
	r.logger.Info("processing inbox", "inbox", opts.Inbox, "playlist", opts.Playlist, "workers", opts.Workers, "dry_run", opts.DryRun)

	progressCh, done := r.followProgress()
	result, err := pipeline.Run(ctx, progressCh)
	close(progressCh)
	<-done

	if result != nil {
		r.printResults(result)
		if reportErr := r.writeReport(cmd, result); reportErr != nil {
			return reportErr
		}
	}
	return err
}

// Watch processes the inbox, then keeps processing new screenshots until interrupted.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	pipeline, err := r.newPipeline(ctx, cmd)
	if err != nil {
		return err
	}

	debounce := r.config.Pipeline.WatchDebounce.Duration
	if cmd.IsSet("debounce") {
		debounce = cmd.Duration("debounce")
	}

	opts := pipeline.Opts()
	r.logger.Info("starting watch", "inbox", opts.Inbox, "playlist", opts.Playlist, "debounce", debounce, "dry_run", opts.DryRun)

	progressCh, done := r.followProgress()
	err = pipeline.Watch(ctx, progressCh, tasks.WatchOpts{
		Debounce: debounce,
		OnPass: func(result *tasks.RunResult) {
			if len(result.Results) == 0 {
				return
			}
			r.printResults(result)
			if err := r.writeReport(cmd, result); err != nil {
				r.logger.Error("failed to write report", "error", err)
			}
		},
		OnError: func(err error) {
			r.logger.Error("watch error", "error", err)
		},
	})
	close(progressCh)
	<-done

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// followProgress logs live pipeline updates until the returned channel is closed.
func (r *Runner) followProgress() (chan tasks.ProgressUpdate, <-chan struct{}) {
	progressCh := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.Discover, tasks.ResolvePlaylist:
				r.logger.Info(update.Message)
			case tasks.Done:
			default:
				r.logger.Debug(update.Message, "phase", update.Phase, "image", update.Image)
			}
		}
	}()
	return progressCh, done
}

// printResults writes the per-image disposition lines, the Added lines and the summary table.
func (r *Runner) printResults(result *tasks.RunResult) {
	for _, res := range result.Results {
		r.writePlain("%s\n", formatter.DispositionLine(res))
	}
	for _, res := range result.Results {
		if res.Outcome == models.Added && res.Track != nil {
			r.writePlain("%s\n", tasks.AddedLine(res.Extraction.Query, *res.Track))
		}
	}
	r.writePlain("%s\n", formatter.SummaryTable(result))
	r.writePlain("Run %s finished in %s\n", result.RunID, result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
}

// writeReport writes the run report when --report is set.
func (r *Runner) writeReport(cmd *cli.Command, result *tasks.RunResult) error {
	path := cmd.String("report")
	if path == "" {
		return nil
	}
	if err := formatter.WriteReport(formatter.NewReport(result), cmd.String("format"), path); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	r.logger.Info("report written", "path", path)
	return nil
}
