// Package fitness scores candidate curves against a grayscale raster.
//
// A curve is sampled at a fixed parameter step and every sample is mapped to
// the pixel it falls in. Dark pixels (luminance below a cutoff) are treated as
// edge pixels and reward the curve; light pixels and samples that leave the
// canvas are penalized. With the default weights a single off-edge sample
// costs as much as a hundred on-edge samples earn, which keeps the search on
// the dark regions and inside the image.
//
// Evaluators are pure. They can be shared by any number of goroutines as long
// as the underlying image is not modified.
package fitness

import (
	"math"

	"github.com/matzehuels/mendel/pkg/errors"
	"github.com/matzehuels/mendel/pkg/geom"
	"github.com/matzehuels/mendel/pkg/raster"
)

// Default scoring parameters.
const (
	DefaultOnEdge      = 1.0
	DefaultOffEdge     = -100.0
	DefaultOutOfBounds = -100.0
	DefaultCutoff      = 200
)

// Weights configures how each sample contributes to a curve's fitness.
type Weights struct {
	// OnEdge is added for every sample on a pixel darker than Cutoff.
	OnEdge float64 `json:"on_edge" toml:"on_edge"`

	// OffEdge is added for every sample on a pixel at or above Cutoff.
	OffEdge float64 `json:"off_edge" toml:"off_edge"`

	// OutOfBounds is added for every sample outside the image.
	OutOfBounds float64 `json:"out_of_bounds" toml:"out_of_bounds"`

	// Cutoff is the luminance below which a pixel counts as an edge.
	Cutoff uint8 `json:"cutoff" toml:"cutoff"`
}

// DefaultWeights returns the standard +1 / -100 / -100 weighting with a
// luminance cutoff of 200.
func DefaultWeights() Weights {
	return Weights{
		OnEdge:      DefaultOnEdge,
		OffEdge:     DefaultOffEdge,
		OutOfBounds: DefaultOutOfBounds,
		Cutoff:      DefaultCutoff,
	}
}

// SetDefaults replaces zero fields with their defaults. A zero cutoff would
// make every pixel light, so it is treated as unset.
func (w *Weights) SetDefaults() {
	if w.OnEdge == 0 {
		w.OnEdge = DefaultOnEdge
	}
	if w.OffEdge == 0 {
		w.OffEdge = DefaultOffEdge
	}
	if w.OutOfBounds == 0 {
		w.OutOfBounds = DefaultOutOfBounds
	}
	if w.Cutoff == 0 {
		w.Cutoff = DefaultCutoff
	}
}

// Evaluator scores curves against one image.
type Evaluator struct {
	img     *raster.Gray
	weights Weights
	step    float64
}

// New creates an evaluator for img. A zero step selects geom.DefaultStep.
func New(img *raster.Gray, w Weights, step float64) (*Evaluator, error) {
	if img == nil {
		return nil, errors.New(errors.ErrCodeImage, "no image to score against")
	}
	if step == 0 {
		step = geom.DefaultStep
	}
	if !(step > 0 && step <= 1) {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "sampling step must be in (0, 1], got %g", step)
	}
	return &Evaluator{img: img, weights: w, step: step}, nil
}

// Image returns the raster being scored against.
func (e *Evaluator) Image() *raster.Gray { return e.img }

// Weights returns the scoring weights.
func (e *Evaluator) Weights() Weights { return e.weights }

// Step returns the sampling step.
func (e *Evaluator) Step() float64 { return e.step }

// MaxScore returns the best fitness any curve can reach: every sample on an
// edge pixel.
func (e *Evaluator) MaxScore() float64 {
	return float64(geom.SampleCount(e.step)) * e.weights.OnEdge
}

// Evaluate returns the fitness of c. Higher is better.
func (e *Evaluator) Evaluate(c geom.CubicBezier) float64 {
	var score float64
	for p := range c.Samples(e.step) {
		score += e.sample(p)
	}
	return score
}

func (e *Evaluator) sample(p geom.Point) float64 {
	x, y, ok := pixel(p)
	if !ok {
		return e.weights.OutOfBounds
	}
	l, ok := e.img.Luma(x, y)
	switch {
	case !ok:
		return e.weights.OutOfBounds
	case l < e.weights.Cutoff:
		return e.weights.OnEdge
	default:
		return e.weights.OffEdge
	}
}

// pixel truncates p toward zero. Coordinates that do not fit an int are
// reported as unaddressable.
func pixel(p geom.Point) (x, y int, ok bool) {
	if !p.IsFinite() || math.Abs(p.X) > math.MaxInt32 || math.Abs(p.Y) > math.MaxInt32 {
		return 0, 0, false
	}
	return int(p.X), int(p.Y), true
}
