package genetic

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"github.com/matzehuels/mendel/pkg/geom"
)

// Default operator parameters.
const (
	DefaultPopulationSize = 1000
	DefaultSurvivors      = 500
	DefaultMutationRate   = 0.10
)

// Scorer assigns a fitness to a curve. Higher is better.
type Scorer interface {
	Evaluate(c geom.CubicBezier) float64
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(geom.CubicBezier) float64

// Evaluate calls f(c).
func (f ScorerFunc) Evaluate(c geom.CubicBezier) float64 { return f(c) }

// Individual is a candidate curve with its most recent fitness.
type Individual struct {
	Curve   geom.CubicBezier
	Fitness float64
}

// Population is an ordered set of individuals. After Select, index 0 holds the
// fittest.
type Population []Individual

// Best returns the first individual. It panics on an empty population.
func (p Population) Best() Individual {
	return p[0]
}

// Curves returns the curves of p in order.
func (p Population) Curves() []geom.CubicBezier {
	out := make([]geom.CubicBezier, len(p))
	for i, ind := range p {
		out[i] = ind.Curve
	}
	return out
}

// Initialize creates size individuals between start and end. Both control
// points of an individual start at the midpoint shifted by the same uniform
// offset in [-d, d] on each axis, d being the start-end distance.
func Initialize(rng *rand.Rand, start, end geom.Point, size int) Population {
	d := start.Distance(end)
	mid := start.Midpoint(end)

	pop := make(Population, 0, max(size, 0))
	for range size {
		dx := uniform(rng, -d, d)
		dy := uniform(rng, -d, d)
		c := mid.Add(dx, dy)
		pop = append(pop, Individual{
			Curve: geom.CubicBezier{Start: start, Control1: c, Control2: c, End: end},
		})
	}
	return pop
}

// Select scores every individual, orders them by descending fitness and
// keeps the first k. Ties keep their previous relative order. The backing
// array of pop is reused.
func Select(s Scorer, pop Population, k int) Population {
	for i := range pop {
		pop[i].Fitness = s.Evaluate(pop[i].Curve)
	}
	slices.SortStableFunc(pop, func(a, b Individual) int {
		return cmp.Compare(b.Fitness, a.Fitness)
	})
	return pop[:min(max(k, 0), len(pop))]
}

// Crossover breeds one child from each pair of adjacently ranked survivors
// (0 with 1, 2 with 3, ...). Each control coordinate of the child is drawn
// uniformly from the interval spanned by the parents' values. An unpaired
// last survivor has no child.
func Crossover(rng *rand.Rand, survivors Population) Population {
	children := make(Population, 0, len(survivors)/2)
	for i := 0; i+1 < len(survivors); i += 2 {
		a, b := survivors[i].Curve, survivors[i+1].Curve
		children = append(children, Individual{
			Curve: geom.CubicBezier{
				Start: a.Start,
				Control1: geom.Point{
					X: blend(rng, a.Control1.X, b.Control1.X),
					Y: blend(rng, a.Control1.Y, b.Control1.Y),
				},
				Control2: geom.Point{
					X: blend(rng, a.Control2.X, b.Control2.X),
					Y: blend(rng, a.Control2.Y, b.Control2.Y),
				},
				End: a.End,
			},
		})
	}
	return children
}

// Gene identifies one of the four mutable coordinates.
type Gene int

// Mutable coordinates.
const (
	Control1X Gene = iota
	Control1Y
	Control2X
	Control2Y
	numGenes
)

// Mutate visits every individual and, with probability rate, adds a
// N(0, sigma) perturbation to one uniformly chosen control coordinate. At most
// one coordinate changes per individual. It returns how many individuals were
// mutated.
func Mutate(rng *rand.Rand, pop Population, rate, sigma float64) int {
	mutated := 0
	for i := range pop {
		if rng.Float64() >= rate {
			continue
		}
		gene := Gene(rng.IntN(int(numGenes)))
		pop[i].Curve = perturb(pop[i].Curve, gene, rng.NormFloat64()*sigma)
		mutated++
	}
	return mutated
}

func perturb(c geom.CubicBezier, g Gene, delta float64) geom.CubicBezier {
	switch g {
	case Control1X:
		c.Control1.X += delta
	case Control1Y:
		c.Control1.Y += delta
	case Control2X:
		c.Control2.X += delta
	case Control2Y:
		c.Control2.Y += delta
	}
	return c
}

// blend returns a value uniformly distributed between a and b inclusive.
func blend(rng *rand.Rand, a, b float64) float64 {
	return uniform(rng, min(a, b), max(a, b))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	v := lo + rng.Float64()*(hi-lo)
	// Guard against rounding past the upper bound.
	return min(v, hi)
}
