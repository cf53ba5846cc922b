// Package pipeline runs the complete vectorization of one image.
//
// This package implements the corners → segments → solve → render pipeline
// shared by the CLI, the TUI and the HTTP server, so all entry points cache,
// log and render the same way.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Corners: Detect FAST-9 corners or take a caller-supplied list
//  2. Segments: Pair consecutive corners (optionally closing the contour)
//  3. Solve: Fit one curve per segment on a pool of worker goroutines
//  4. Render: Produce SVG, JSON or PNG output and publish to sinks
//
// Solving is asynchronous. [Orchestrator.Start] returns a [Job] whose results
// arrive over a buffered channel as segments complete, in no particular
// order. Callers that need a live view poll [Job.TryRecv]; others call
// [Job.Collect].
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Input{Image: img}, pipeline.Options{
//	    Formats: []string{"svg"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"fmt"
	"io"
	"regexp"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mendel/pkg/cache"
	"github.com/matzehuels/mendel/pkg/corner"
	"github.com/matzehuels/mendel/pkg/errors"
	"github.com/matzehuels/mendel/pkg/fitness"
	"github.com/matzehuels/mendel/pkg/geom"
	"github.com/matzehuels/mendel/pkg/sink"
	"github.com/matzehuels/mendel/pkg/solver"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultSeed is the default random seed for reproducibility.
	DefaultSeed = uint64(42)

	// DefaultCornerThreshold is the FAST-9 intensity threshold used when no
	// corners are supplied.
	DefaultCornerThreshold = corner.DefaultThreshold
)

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatJSON: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the vectorization pipeline.
// This struct supports JSON serialization for API requests and TOML for
// configuration files.
type Options struct {
	// Search options
	Solver  solver.Config   `json:"solver" toml:"solver"`
	Weights fitness.Weights `json:"weights" toml:"weights"`
	Step    float64         `json:"step,omitempty" toml:"step"`
	Seed    uint64          `json:"seed,omitempty" toml:"seed"`
	Workers int             `json:"workers,omitempty" toml:"workers"`
	Closed  bool            `json:"closed,omitempty" toml:"closed"`

	// Corner detection options, used when no corners are supplied. The zero
	// value selects DefaultCornerThreshold with non-max suppression.
	Corners corner.Options `json:"corners" toml:"corners"`

	// Render options
	Formats     []string `json:"formats,omitempty" toml:"formats"`
	ShowCorners bool     `json:"show_corners,omitempty" toml:"show_corners"`

	// Stroke and StrokeWidth style SVG curves. The zero values keep black
	// hairlines.
	Stroke      string  `json:"stroke,omitempty" toml:"stroke"`
	StrokeWidth float64 `json:"stroke_width,omitempty" toml:"stroke_width"`

	// Refresh skips cache reads; results are still written.
	Refresh bool `json:"refresh,omitempty" toml:"-"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-" toml:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// DefaultOptions returns options with every default filled in.
func DefaultOptions() Options {
	var o Options
	_ = o.ValidateAndSetDefaults()
	o.validated = false
	o.Logger = nil
	return o
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies the run in logs, sinks and HTTP responses.
	RunID string

	// Segments holds one solver result per segment, ordered by index.
	Segments []solver.Result

	// Document is the renderable form of the run.
	Document *sink.Document

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and convergence information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Corners     int
	Segments    int
	Workers     int
	Converged   int
	Exhausted   int
	Degenerate  int
	Generations int
	CornerTime  time.Duration
	SolveTime   time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	CornersHit  bool // Whether detected corners came from cache
	SegmentHits int  // Number of segments restored from cache
	RenderHit   bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid format: %q (must be one of: svg, png, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

var strokeColor = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]+)$`)

// ValidateStroke checks an SVG stroke color and width. The color must be a
// named color or a hex triplet; an empty color is allowed.
func ValidateStroke(color string, width float64) error {
	if color != "" && !strokeColor.MatchString(color) {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid stroke color: %q", color)
	}
	if width < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "stroke width must not be negative, got %g", width)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks fields and applies defaults for the full pipeline.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForSolve(); err != nil {
		return err
	}
	o.SetRenderDefaults()
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if err := ValidateStroke(o.Stroke, o.StrokeWidth); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForSolve checks and defaults the search options.
func (o *Options) ValidateForSolve() error {
	if err := o.Solver.ValidateAndSetDefaults(); err != nil {
		return err
	}
	o.Weights.SetDefaults()
	if o.Step == 0 {
		o.Step = geom.DefaultStep
	}
	if o.Step < 0 || o.Step > 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "step must be in (0, 1], got %g", o.Step)
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "workers must not be negative, got %d", o.Workers)
	}
	if o.Workers == 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Corners == (corner.Options{}) {
		o.Corners = corner.Options{Threshold: DefaultCornerThreshold, Suppress: true}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// SegmentParams is the part of the options that determines a solved
// segment, used in cache keys.
func (o *Options) SegmentParams() any {
	return struct {
		Solver  solver.Config   `json:"solver"`
		Weights fitness.Weights `json:"weights"`
		Step    float64         `json:"step"`
	}{o.Solver, o.Weights, o.Step}
}

// SegmentKeyOpts returns cache key options for one segment.
func (o *Options) SegmentKeyOpts(seg solver.Segment) cache.SegmentKeyOpts {
	return cache.SegmentKeyOpts{
		StartX: seg.Start.X,
		StartY: seg.Start.Y,
		EndX:   seg.End.X,
		EndY:   seg.End.Y,
		Seed:   o.Seed,
		Params: o.SegmentParams(),
	}
}

// CornersKeyOpts returns cache key options for corner detection.
func (o *Options) CornersKeyOpts() cache.CornersKeyOpts {
	return cache.CornersKeyOpts{
		Threshold: o.Corners.Threshold,
		Suppress:  o.Corners.Suppress,
	}
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format:      format,
		ShowCorners: o.ShowCorners,
		Stroke:      o.Stroke,
		StrokeWidth: o.StrokeWidth,
	}
}

func (o *Options) String() string {
	return fmt.Sprintf("population=%d survivors=%d threshold=%g workers=%d seed=%d closed=%v",
		o.Solver.PopulationSize, o.Solver.Survivors, o.Solver.Threshold, o.Workers, o.Seed, o.Closed)
}
