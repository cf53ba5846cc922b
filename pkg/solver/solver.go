// Package solver fits one cubic Bezier curve to the dark pixels between two
// fixed endpoints by generational search.
//
// A [Solver] owns no mutable state and can be shared between goroutines. Each
// call to [Solver.Solve] creates its own population, evolves it until the best
// individual reaches the configured threshold or the generation cap is hit,
// and returns the best curve found.
//
//	ev, _ := fitness.New(img, fitness.DefaultWeights(), 0)
//	s, _ := solver.New(ev, solver.DefaultConfig())
//	res, err := s.Solve(ctx, seg, solver.NewRNG(42, seg))
package solver

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/matzehuels/mendel/pkg/errors"
	"github.com/matzehuels/mendel/pkg/genetic"
	"github.com/matzehuels/mendel/pkg/geom"
	"github.com/matzehuels/mendel/pkg/observability"
)

// Default search parameters.
const (
	DefaultThreshold      = 80.0
	DefaultMaxGenerations = 500
)

// Config tunes the search. Zero values are replaced by defaults in
// ValidateAndSetDefaults.
type Config struct {
	PopulationSize int     `json:"population_size" toml:"population_size"`
	Survivors      int     `json:"survivors" toml:"survivors"`
	MutationRate   float64 `json:"mutation_rate" toml:"mutation_rate"`
	Threshold      float64 `json:"threshold" toml:"threshold"`
	MaxGenerations int     `json:"max_generations" toml:"max_generations"`
}

// DefaultConfig returns the standard search parameters.
func DefaultConfig() Config {
	return Config{
		PopulationSize: genetic.DefaultPopulationSize,
		Survivors:      genetic.DefaultSurvivors,
		MutationRate:   genetic.DefaultMutationRate,
		Threshold:      DefaultThreshold,
		MaxGenerations: DefaultMaxGenerations,
	}
}

// ValidateAndSetDefaults fills zero fields and rejects inconsistent values.
// A negative mutation rate disables mutation.
func (c *Config) ValidateAndSetDefaults() error {
	if c.PopulationSize == 0 {
		c.PopulationSize = genetic.DefaultPopulationSize
	}
	if c.Survivors == 0 {
		c.Survivors = min(genetic.DefaultSurvivors, c.PopulationSize)
	}
	if c.MutationRate == 0 {
		c.MutationRate = genetic.DefaultMutationRate
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.MaxGenerations == 0 {
		c.MaxGenerations = DefaultMaxGenerations
	}

	switch {
	case c.PopulationSize < 2:
		return errors.New(errors.ErrCodeInvalidConfig, "population size must be at least 2, got %d", c.PopulationSize)
	case c.Survivors < 2 || c.Survivors > c.PopulationSize:
		return errors.New(errors.ErrCodeInvalidConfig, "survivors must be in [2, %d], got %d", c.PopulationSize, c.Survivors)
	case c.MutationRate > 1 || math.IsNaN(c.MutationRate):
		return errors.New(errors.ErrCodeInvalidConfig, "mutation rate must be at most 1, got %g", c.MutationRate)
	case math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0):
		return errors.New(errors.ErrCodeInvalidConfig, "threshold must be finite")
	case c.MaxGenerations < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "max generations must not be negative, got %d", c.MaxGenerations)
	}
	c.MutationRate = max(c.MutationRate, 0)
	return nil
}

// State is the lifecycle stage of a segment search.
type State int

const (
	Initialized State = iota
	Evolving
	Converged
	Exhausted  // generation cap reached below threshold
	Degenerate // start and end coincide
)

var stateNames = [...]string{"initialized", "evolving", "converged", "exhausted", "degenerate"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further generations will run.
func (s State) Terminal() bool {
	return s == Converged || s == Exhausted || s == Degenerate
}

// Segment is one pair of consecutive corners. Index is its position in the
// output sequence.
type Segment struct {
	Index int        `json:"index"`
	Start geom.Point `json:"start"`
	End   geom.Point `json:"end"`
}

// Distance returns the straight-line length of the segment.
func (s Segment) Distance() float64 { return s.Start.Distance(s.End) }

// Result is the outcome of one segment search.
type Result struct {
	Segment     Segment
	Curve       geom.CubicBezier
	Fitness     float64
	Generations int
	State       State
	Duration    time.Duration

	// Warning is set for usable results that did not converge normally.
	// It carries ErrCodeNonConvergence or ErrCodeDegenerateSegment.
	Warning error
}

// Converged reports whether the best curve reached the threshold.
func (r Result) Converged() bool { return r.State == Converged }

// Solver runs the evolutionary search for single segments.
type Solver struct {
	scorer genetic.Scorer
	cfg    Config
}

// maxScorer is implemented by scorers with a known upper bound, such as
// *fitness.Evaluator.
type maxScorer interface {
	MaxScore() float64
}

// New validates cfg and returns a Solver scoring curves with s.
func New(s genetic.Scorer, cfg Config) (*Solver, error) {
	if s == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "solver needs a scorer")
	}
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if m, ok := s.(maxScorer); ok && cfg.Threshold > m.MaxScore() {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"threshold %g is unreachable, best possible score is %g", cfg.Threshold, m.MaxScore())
	}
	return &Solver{scorer: s, cfg: cfg}, nil
}

// Config returns the validated configuration.
func (s *Solver) Config() Config { return s.cfg }

// Solve evolves a population for seg until its best fitness reaches the
// threshold. Hitting the generation cap is not an error: the best curve so
// far is returned with State Exhausted and a NON_CONVERGENCE warning.
//
// ctx is checked once per generation. On cancellation Solve returns the best
// curve so far together with ctx.Err().
func (s *Solver) Solve(ctx context.Context, seg Segment, rng *rand.Rand) (Result, error) {
	hooks := observability.Solver()
	started := time.Now()
	d := seg.Distance()
	hooks.OnSegmentStart(ctx, seg.Index, d)

	res := Result{Segment: seg, State: Initialized}
	finish := func(err error) (Result, error) {
		res.Duration = time.Since(started)
		report := err
		if report == nil {
			report = res.Warning
		}
		hooks.OnSegmentComplete(ctx, seg.Index, res.Generations, res.Fitness, res.Duration, report)
		return res, err
	}

	if seg.Start == seg.End {
		res.Curve = geom.Degenerate(seg.Start)
		res.Fitness = s.scorer.Evaluate(res.Curve)
		res.State = Degenerate
		res.Warning = errors.New(errors.ErrCodeDegenerateSegment,
			"segment %d starts and ends at %s", seg.Index, seg.Start)
		return finish(nil)
	}

	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	pop := genetic.Initialize(rng, seg.Start, seg.End, s.cfg.PopulationSize)
	pop = genetic.Select(s.scorer, pop, s.cfg.Survivors)
	res.State = Evolving
	res.Curve, res.Fitness = pop.Best().Curve, pop.Best().Fitness

	sigma := d / 2
	for res.Fitness < s.cfg.Threshold {
		if res.Generations >= s.cfg.MaxGenerations {
			res.State = Exhausted
			res.Warning = errors.New(errors.ErrCodeNonConvergence,
				"segment %d reached %d generations with best fitness %g below %g",
				seg.Index, res.Generations, res.Fitness, s.cfg.Threshold)
			return finish(nil)
		}
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		pop = append(pop, genetic.Crossover(rng, pop)...)
		genetic.Mutate(rng, pop, s.cfg.MutationRate, sigma)
		pop = genetic.Select(s.scorer, pop, s.cfg.Survivors)

		res.Generations++
		res.Curve, res.Fitness = pop.Best().Curve, pop.Best().Fitness
		hooks.OnGeneration(ctx, seg.Index, res.Generations, res.Fitness)
	}

	res.State = Converged
	return finish(nil)
}

// NewRNG returns a generator whose stream depends only on seed and the
// segment's endpoints. The same segment therefore evolves identically no
// matter which worker solves it or in which order.
func NewRNG(seed uint64, seg Segment) *rand.Rand {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range []float64{seg.Start.X, seg.Start.Y, seg.End.X, seg.End.Y} {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return rand.New(rand.NewPCG(seed, h.Sum64()))
}
