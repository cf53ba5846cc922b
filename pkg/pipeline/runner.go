package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/mendel/pkg/cache"
	"github.com/matzehuels/mendel/pkg/corner"
	"github.com/matzehuels/mendel/pkg/errors"
	"github.com/matzehuels/mendel/pkg/fitness"
	"github.com/matzehuels/mendel/pkg/observability"
	"github.com/matzehuels/mendel/pkg/raster"
	"github.com/matzehuels/mendel/pkg/sink"
	"github.com/matzehuels/mendel/pkg/solver"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache, logger and sinks - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Sinks receive every finished document.
	Sinks []sink.Publisher
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Input is the image to vectorize and, optionally, its corners. When
// Corners is nil they are detected.
type Input struct {
	Image   *raster.Gray
	Corners []corner.Corner
}

// Run is a started pipeline whose segments are being solved.
type Run struct {
	ID       string
	Job      *Job
	Image    *raster.Gray
	Corners  []corner.Corner
	Segments []solver.Segment
	Options  Options

	started    time.Time
	cornerTime time.Duration
	cornersHit bool
	store      *segmentCache
}

// Execute runs the complete corners → solve → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, in Input, opts Options) (*Result, error) {
	run, err := r.Start(ctx, in, opts)
	if err != nil {
		return nil, err
	}
	results, err := run.Job.Collect()
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	return r.Finish(ctx, run, results)
}

// Start resolves corners, builds segments and launches the solver workers.
// The caller consumes run.Job and then calls Finish.
func (r *Runner) Start(ctx context.Context, in Input, opts Options) (*Run, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if in.Image == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no image")
	}

	run := &Run{
		ID:      uuid.NewString(),
		Image:   in.Image,
		Options: opts,
		started: time.Now(),
	}
	logger := opts.Logger.With("run", run.ID[:8])

	// Stage 1: Corners
	run.Corners = in.Corners
	if run.Corners == nil {
		cornerStart := time.Now()
		cs, hit, err := r.DetectCornersWithCacheInfo(ctx, in.Image, opts)
		if err != nil {
			return nil, fmt.Errorf("corners: %w", err)
		}
		run.Corners, run.cornersHit = cs, hit
		run.cornerTime = time.Since(cornerStart)
		logger.Info("detected corners", "corners", len(cs), "cached", hit, "duration", run.cornerTime)
	}

	// Stage 2: Segments
	segs, err := Segments(corner.Points(run.Corners), opts.Closed)
	if err != nil {
		return nil, err
	}
	run.Segments = segs

	// Stage 3: Solve
	ev, err := fitness.New(in.Image, opts.Weights, opts.Step)
	if err != nil {
		return nil, err
	}
	sol, err := solver.New(ev, opts.Solver)
	if err != nil {
		return nil, err
	}
	run.store = &segmentCache{
		cache:     r.Cache,
		keyer:     r.Keyer,
		imageHash: in.Image.Hash(),
		opts:      opts,
	}
	orch := &Orchestrator{
		Solver:  sol,
		Workers: opts.Workers,
		Seed:    opts.Seed,
		Store:   run.store,
		Logger:  logger,
	}
	run.Job, err = orch.Start(ctx, segs)
	if err != nil {
		return nil, err
	}
	logger.Info("solving segments", "segments", len(segs), "workers", run.Job.Workers())
	return run, nil
}

// Finish orders the results of a run, renders the requested formats and
// publishes the document to every sink.
func (r *Runner) Finish(ctx context.Context, run *Run, results []solver.Result) (*Result, error) {
	opts := run.Options
	logger := opts.Logger.With("run", run.ID[:8])

	SortResults(results)
	if len(results) != len(run.Segments) {
		return nil, errors.New(errors.ErrCodeInternal, "run finished with %d of %d segments", len(results), len(run.Segments))
	}

	result := &Result{
		RunID:    run.ID,
		Segments: results,
		Stats: Stats{
			Corners:    len(run.Corners),
			Segments:   len(run.Segments),
			Workers:    run.Job.Workers(),
			CornerTime: run.cornerTime,
			SolveTime:  time.Since(run.started) - run.cornerTime,
		},
		CacheInfo: CacheInfo{
			CornersHit:  run.cornersHit,
			SegmentHits: int(run.store.hits.Load()),
		},
	}
	for _, res := range results {
		result.Stats.Generations += res.Generations
		switch res.State {
		case solver.Converged:
			result.Stats.Converged++
		case solver.Exhausted:
			result.Stats.Exhausted++
		case solver.Degenerate:
			result.Stats.Degenerate++
		}
	}
	logger.Info("solved segments",
		"converged", result.Stats.Converged,
		"exhausted", result.Stats.Exhausted,
		"cached", result.CacheInfo.SegmentHits,
		"duration", result.Stats.SolveTime)

	// Stage 4: Render
	result.Document = NewDocument(run.ID, run.Image, run.Corners, results, opts.Closed)
	renderStart := time.Now()
	artifacts, hit, err := r.RenderWithCacheInfo(ctx, result.Document, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = hit
	logger.Info("rendered outputs", "formats", opts.Formats, "duration", result.Stats.RenderTime)

	for _, s := range r.Sinks {
		if err := s.Publish(ctx, result.Document); err != nil {
			return result, fmt.Errorf("publish: %w", err)
		}
	}
	return result, nil
}

// DetectCornersWithCacheInfo runs FAST-9 with caching and returns cache hit info.
func (r *Runner) DetectCornersWithCacheInfo(ctx context.Context, img *raster.Gray, opts Options) ([]corner.Corner, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForSolve(); err != nil {
		return nil, false, err
	}
	cacheKey := r.Keyer.CornersKey(img.Hash(), opts.CornersKeyOpts())

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var cs []corner.Corner
			if err := json.Unmarshal(data, &cs); err == nil {
				observability.Cache().OnCacheHit(ctx, "corners")
				return cs, true, nil // Cache hit
			}
		}
		observability.Cache().OnCacheMiss(ctx, "corners")
	}

	cs := corner.DetectFAST(img, opts.Corners)
	if cs == nil {
		cs = []corner.Corner{}
	}

	if data, err := json.Marshal(cs); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLCorners); err == nil {
			observability.Cache().OnCacheSet(ctx, "corners", len(data))
		}
	}
	return cs, false, nil // Cache miss
}

// DetectCorners is a convenience wrapper that calls DetectCornersWithCacheInfo and discards the cache hit info.
func (r *Runner) DetectCorners(ctx context.Context, img *raster.Gray, opts Options) ([]corner.Corner, error) {
	cs, _, err := r.DetectCornersWithCacheInfo(ctx, img, opts)
	return cs, err
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit info.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, doc *sink.Document, opts Options) (map[string][]byte, bool, error) {
	opts.SetRenderDefaults()
	if err := ValidateFormats(opts.Formats); err != nil {
		return nil, false, err
	}
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)

	docHash, err := contentHash(doc)
	if err != nil {
		return nil, false, fmt.Errorf("serialize document for cache key: %w", err)
	}

	// Try to get all formats from cache
	artifacts := make(map[string][]byte)
	if !opts.Refresh {
		for _, format := range opts.Formats {
			cacheKey := r.Keyer.ArtifactKey(artifactHash(docHash, doc, format), opts.ArtifactKeyOpts(format))
			data, hit, err := r.Cache.Get(ctx, cacheKey)
			if err != nil || !hit {
				break
			}
			artifacts[format] = data
		}
		if len(artifacts) == len(opts.Formats) {
			hooks.OnRenderComplete(ctx, opts.Formats, 0, nil)
			return artifacts, true, nil // All artifacts from cache
		}
	}

	started := time.Now()
	rendered, err := Render(doc, opts)
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(started), err)
	if err != nil {
		return nil, false, err
	}

	// Cache each format
	for format, data := range rendered {
		cacheKey := r.Keyer.ArtifactKey(artifactHash(docHash, doc, format), opts.ArtifactKeyOpts(format))
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact)
	}
	return rendered, false, nil // Cache miss
}

// contentHash hashes what a document draws, ignoring its run ID.
func contentHash(doc *sink.Document) (string, error) {
	data, err := json.Marshal(struct {
		Width   int
		Height  int
		Corners any
		Curves  []sink.Curve
		Image   string
	}{doc.Width, doc.Height, doc.Corners, doc.Curves, backgroundHash(doc)})
	if err != nil {
		return "", err
	}
	return cache.Hash(data), nil
}

// artifactHash scopes JSON output to its run, since it embeds the run ID.
func artifactHash(docHash string, doc *sink.Document, format string) string {
	if format == FormatJSON {
		return cache.Hash([]byte(docHash + doc.RunID))
	}
	return docHash
}

func backgroundHash(doc *sink.Document) string {
	if doc.Background == nil {
		return ""
	}
	return doc.Background.Hash()
}

// Close releases resources held by the runner: the cache and every sink.
func (r *Runner) Close(ctx context.Context) error {
	var firstErr error
	for _, s := range r.Sinks {
		if err := s.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
