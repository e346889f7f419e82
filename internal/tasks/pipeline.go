package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/snapsong/internal/models"
	"github.com/desertthunder/snapsong/internal/services"
	"github.com/desertthunder/snapsong/internal/shared"
	"github.com/gofrs/flock"
)

const (
	lockFileName = ".snapsong.lock"
	maxWorkers   = 8
)

// PipelineOpts contains configuration for a pipeline run.
type PipelineOpts struct {
	Inbox       string        // Directory scanned for screenshots
	FoundDir    string        // Destination for images whose track was added
	NotFoundDir string        // Destination for unknown songs and unmatched queries
	Playlist    string        // Target playlist name, resolved lazily
	Workers     int           // Concurrent images (default: 1, sequential)
	CallTimeout time.Duration // Upper bound for each adapter call (0: none)
	DryRun      bool          // Decide but never add tracks or move files
}

// PipelineDeps are the external collaborators of the pipeline.
type PipelineDeps struct {
	Extractor services.Extractor
	Searcher  services.CatalogSearcher
	Oracle    services.Oracle
	Playlists services.PlaylistMutator
}

// ImageResult is the terminal record for one image.
type ImageResult struct {
	Image       models.Image
	Extraction  models.Extraction
	Candidates  int               // Search results considered
	Outcome     models.Outcome    // Final disposition
	Track       *models.Candidate // Selected track, set for [models.Added]
	Destination string            // Path the image was (or, on dry runs, would be) moved to
	Relocated   bool              // Whether the rename succeeded
	DryRun      bool
	Err         error // Adapter or move failure
}

// RunResult summarizes one pass over the inbox.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []ImageResult // In listing order
	Added      int
	NotFound   int
	Unknown    int
	Ignored    int
	Failed     int
}

func (r *RunResult) tally() {
	r.Added, r.NotFound, r.Unknown, r.Ignored, r.Failed = 0, 0, 0, 0, 0
	for _, res := range r.Results {
		switch res.Outcome {
		case models.Added:
			r.Added++
		case models.NoMatchFound:
			r.NotFound++
		case models.Unknown:
			r.Unknown++
		case models.NoMusicIgnored:
			r.Ignored++
		case models.Failed:
			r.Failed++
		}
	}
}

// Pipeline drives every inbox image through extraction, search, disambiguation and relocation.
type Pipeline struct {
	deps     PipelineDeps
	opts     PipelineOpts
	logger   *log.Logger
	playlist *playlistResolver
}

// NewPipeline validates deps and opts and returns a ready pipeline.
func NewPipeline(deps PipelineDeps, opts PipelineOpts, logger *log.Logger) (*Pipeline, error) {
	if deps.Extractor == nil || deps.Searcher == nil || deps.Oracle == nil || deps.Playlists == nil {
		return nil, fmt.Errorf("%w: pipeline dependencies not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Inbox == "" {
		return nil, fmt.Errorf("%w: inbox", shared.ErrMissingArgument)
	}
	if opts.Playlist == "" {
		return nil, fmt.Errorf("%w: playlist", shared.ErrMissingArgument)
	}
	if opts.FoundDir == "" {
		opts.FoundDir = filepath.Join(filepath.Dir(opts.Inbox), "found")
	}
	if opts.NotFoundDir == "" {
		opts.NotFoundDir = filepath.Join(filepath.Dir(opts.Inbox), "not found")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Workers > maxWorkers {
		opts.Workers = maxWorkers
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Pipeline{
		deps:     deps,
		opts:     opts,
		logger:   logger,
		playlist: newPlaylistResolver(deps.Playlists, opts.Playlist, opts.CallTimeout),
	}, nil
}

// Opts returns the normalized options.
func (p *Pipeline) Opts() PipelineOpts {
	return p.opts
}

// lock takes the inbox lock so two runs never race on the same files.
func (p *Pipeline) lock() (*flock.Flock, error) {
	lock := flock.New(filepath.Join(p.opts.Inbox, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire inbox lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrInboxLocked, p.opts.Inbox)
	}
	return lock, nil
}

func (p *Pipeline) unlock(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		p.logger.Warn("failed to release inbox lock", "err", err)
	}
}

// Run performs one pass over the inbox while holding the inbox lock.
func (p *Pipeline) Run(ctx context.Context, prog chan<- ProgressUpdate) (*RunResult, error) {
	lock, err := p.lock()
	if err != nil {
		return nil, err
	}
	defer p.unlock(lock)

	return p.pass(ctx, prog, nil)
}

// pass lists the inbox in lexicographic order and processes every image not skipped.
func (p *Pipeline) pass(ctx context.Context, prog chan<- ProgressUpdate, skip func(name string) bool) (*RunResult, error) {
	result := &RunResult{RunID: shared.GenerateID(), StartedAt: time.Now()}
	logger := shared.WithLogger(p.logger, "run", result.RunID)

	if !p.opts.DryRun {
		if err := shared.EnsureDirs(p.opts.FoundDir, p.opts.NotFoundDir); err != nil {
			return nil, err
		}
	}

	listed, err := shared.ListImages(p.opts.Inbox)
	if err != nil {
		return nil, err
	}

	names := listed[:0]
	for _, name := range listed {
		if skip == nil || !skip(name) {
			names = append(names, name)
		}
	}

	sendProgress(prog, discoverUpdate(len(names), p.opts.Inbox))
	logger.Info("starting pass", "images", len(names), "workers", p.opts.Workers, "dry_run", p.opts.DryRun)

	images := make([]models.Image, len(names))
	for i, name := range names {
		images[i] = models.NewImage(p.opts.Inbox, name)
	}

	if p.opts.Workers == 1 {
		result.Results = p.processSequential(ctx, prog, images)
	} else {
		result.Results = p.processPool(ctx, prog, images)
	}

	result.FinishedAt = time.Now()
	result.tally()
	logger.Info("pass complete",
		"added", result.Added,
		"not_found", result.NotFound,
		"unknown", result.Unknown,
		"ignored", result.Ignored,
		"failed", result.Failed,
		"elapsed", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond),
	)

	return result, ctx.Err()
}

func (p *Pipeline) processSequential(ctx context.Context, prog chan<- ProgressUpdate, images []models.Image) []ImageResult {
	results := make([]ImageResult, 0, len(images))
	for i, img := range images {
		if ctx.Err() != nil {
			break
		}
		res := p.process(ctx, prog, i+1, len(images), img)
		results = append(results, res)
	}
	return results
}

type imageJob struct {
	index int
	image models.Image
}

// processPool fans images out to a bounded set of workers and returns results in listing order.
func (p *Pipeline) processPool(ctx context.Context, prog chan<- ProgressUpdate, images []models.Image) []ImageResult {
	jobs := make(chan imageJob, len(images))
	slots := make([]*ImageResult, len(images))

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					return
				}
				res := p.process(ctx, prog, job.index+1, len(images), job.image)
				slots[job.index] = &res
			}
		}()
	}

	for i, img := range images {
		jobs <- imageJob{index: i, image: img}
	}
	close(jobs)
	wg.Wait()

	results := make([]ImageResult, 0, len(images))
	for _, res := range slots {
		if res != nil {
			results = append(results, *res)
		}
	}
	return results
}

// Process drives one image to a terminal outcome.
func (p *Pipeline) Process(ctx context.Context, img models.Image) ImageResult {
	return p.process(ctx, nil, 1, 1, img)
}

func (p *Pipeline) process(ctx context.Context, prog chan<- ProgressUpdate, step, total int, img models.Image) ImageResult {
	res := ImageResult{Image: img, DryRun: p.opts.DryRun}
	logger := shared.WithLogger(p.logger, "image", img.Name)

	defer func() {
		sendProgress(prog, doneUpdate(step, total, res))
	}()

	data, err := shared.VerifyAndReadFile(img.Path)
	if err != nil {
		return p.fail(logger, res, "read image", err)
	}

	sendProgress(prog, extractUpdate(step, total, img.Name))
	extraction, err := withTimeout(ctx, p.opts.CallTimeout, func(ctx context.Context) (models.Extraction, error) {
		return p.deps.Extractor.Extract(ctx, data)
	})
	if err != nil {
		return p.fail(logger, res, "extract", err)
	}
	res.Extraction = extraction
	logger.Info("extracted", "kind", extraction.Kind, "text", extraction.Raw)

	switch extraction.Kind {
	case models.NoMusic:
		res.Outcome = models.NoMusicIgnored
		logger.Info("no music, leaving in place")
		return res
	case models.UnknownSong:
		res.Outcome = models.Unknown
		return p.relocate(logger, prog, step, total, res, p.opts.NotFoundDir)
	}

	query := extraction.Query
	sendProgress(prog, searchUpdate(step, total, img.Name, query))
	candidates, err := withTimeout(ctx, p.opts.CallTimeout, func(ctx context.Context) ([]models.Candidate, error) {
		return p.deps.Searcher.SearchTracks(ctx, query)
	})
	if err != nil {
		return p.fail(logger, res, "search", err)
	}
	res.Candidates = len(candidates)

	if len(candidates) == 0 {
		logger.Info("no search results", "query", query)
		res.Outcome = models.NoMatchFound
		return p.relocate(logger, prog, step, total, res, p.opts.NotFoundDir)
	}

	sendProgress(prog, disambiguateUpdate(step, total, img.Name, len(candidates)))
	decision, err := withTimeout(ctx, p.opts.CallTimeout, func(ctx context.Context) (models.MatchDecision, error) {
		return p.deps.Oracle.Disambiguate(ctx, query, candidates)
	})
	switch {
	case errors.Is(err, shared.ErrOracleProtocol):
		logger.Warn("oracle answer rejected, treating as no match", "err", err)
		decision = models.NoMatch()
	case err != nil:
		return p.fail(logger, res, "disambiguate", err)
	}

	if !decision.IsMatch() || decision.Index >= len(candidates) {
		logger.Info("no confident match", "query", query, "candidates", len(candidates))
		res.Outcome = models.NoMatchFound
		return p.relocate(logger, prog, step, total, res, p.opts.NotFoundDir)
	}

	track := candidates[decision.Index]
	res.Track = &track

	if !p.opts.DryRun {
		playlist, err := p.playlist.Resolve(ctx, prog)
		if err != nil {
			return p.fail(logger, res, "resolve playlist", err)
		}

		_, err = withTimeout(ctx, p.opts.CallTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.deps.Playlists.AddTrack(ctx, playlist.ID, track.ID)
		})
		if err != nil {
			return p.fail(logger, res, "add track", err)
		}
	}

	res.Outcome = models.Added
	logger.Info(AddedLine(query, track), "track_id", track.ID)
	sendProgress(prog, addedUpdate(step, total, img.Name, query, track))
	return p.relocate(logger, prog, step, total, res, p.opts.FoundDir)
}

// fail records an adapter failure. The image stays in the inbox for a later run.
func (p *Pipeline) fail(logger *log.Logger, res ImageResult, stage string, err error) ImageResult {
	logger.Error("image failed, leaving in place", "stage", stage, "err", err)
	res.Outcome = models.Failed
	res.Err = fmt.Errorf("%s: %w", stage, err)
	return res
}

func (p *Pipeline) relocate(logger *log.Logger, prog chan<- ProgressUpdate, step, total int, res ImageResult, dir string) ImageResult {
	sendProgress(prog, relocateUpdate(step, total, res.Image.Name, dir, p.opts.DryRun))
	if p.opts.DryRun {
		res.Destination = filepath.Join(dir, res.Image.Name)
		return res
	}

	dst, err := shared.MoveInto(res.Image.Path, dir)
	if err != nil {
		logger.Error("failed to move image", "dir", dir, "err", err)
		res.Err = fmt.Errorf("relocate: %w", err)
		return res
	}

	res.Destination = dst
	res.Relocated = true
	logger.Debug("moved", "to", dst)
	return res
}

// withTimeout bounds one adapter call. A zero timeout leaves ctx unchanged.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return v, fmt.Errorf("%w: %w", shared.ErrTimeout, err)
	}
	return v, err
}
