package geom

import (
	"iter"
	"math"

	"honnef.co/go/curve"
)

// DefaultStep is the parameter increment used when sampling curves for scoring.
// It yields 101 samples per curve.
const DefaultStep = 0.01

// CubicBezier is a cubic Bezier curve. Start and End are the segment's fixed
// endpoints; Control1 and Control2 are the only coordinates the search varies.
type CubicBezier struct {
	Start    Point `json:"start"`
	Control1 Point `json:"control1"`
	Control2 Point `json:"control2"`
	End      Point `json:"end"`
}

// Degenerate returns the zero-length curve whose four points all equal p.
func Degenerate(p Point) CubicBezier {
	return CubicBezier{Start: p, Control1: p, Control2: p, End: p}
}

// Bez returns c as a [curve.CubicBez].
func (c CubicBezier) Bez() curve.CubicBez {
	return curve.CubicBez{P0: c.Start.Curve(), P1: c.Control1.Curve(), P2: c.Control2.Curve(), P3: c.End.Curve()}
}

// Eval evaluates the curve at parameter t using the Bernstein weights
// (1-t)^3, 3t(1-t)^2, 3t^2(1-t) and t^3.
func (c CubicBezier) Eval(t float64) Point {
	return Point(c.Bez().Eval(t))
}

// SampleCount returns the number of points Samples yields for step. Steps
// outside (0, 1] fall back to DefaultStep.
func SampleCount(step float64) int {
	return steps(step) + 1
}

func steps(step float64) int {
	if !(step > 0 && step <= 1) {
		step = DefaultStep
	}
	return max(1, int(math.Round(1/step)))
}

// Samples returns the points of c at t = 0, step, 2*step, ..., 1.
//
// Parameters are computed as i/n rather than by repeated addition, so the
// first point is exactly Start and the last exactly End.
func (c CubicBezier) Samples(step float64) iter.Seq[Point] {
	n := steps(step)
	return func(yield func(Point) bool) {
		for i := 0; i <= n; i++ {
			var p Point
			switch i {
			case 0:
				p = c.Start
			case n:
				p = c.End
			default:
				p = c.Eval(float64(i) / float64(n))
			}
			if !yield(p) {
				return
			}
		}
	}
}

// Length returns the chord distance between Start and End.
func (c CubicBezier) Length() float64 {
	return c.Start.Distance(c.End)
}

// IsDegenerate reports whether all four points coincide.
func (c CubicBezier) IsDegenerate() bool {
	return c.Start == c.End && c.Control1 == c.Start && c.Control2 == c.Start
}
