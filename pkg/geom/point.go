package geom

import (
	"honnef.co/go/curve"
)

// Point is a 2-D coordinate in image space. X grows to the right and Y grows
// downwards, matching pixel indexing. It converts freely to [curve.Point],
// which supplies the arithmetic.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt returns the point (x, y).
func Pt(x, y float64) Point {
	return Point(curve.Pt(x, y))
}

// Curve returns p as a [curve.Point].
func (p Point) Curve() curve.Point { return curve.Point(p) }

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return p.Curve().Distance(q.Curve())
}

// Midpoint returns the arithmetic mean of p and q.
func (p Point) Midpoint(q Point) Point {
	return Point(p.Curve().Midpoint(q.Curve()))
}

// Add returns p translated by (dx, dy).
func (p Point) Add(dx, dy float64) Point {
	return Point(p.Curve().Translate(curve.Vec(dx, dy)))
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	c := p.Curve()
	return !c.IsNaN() && !c.IsInf()
}

func (p Point) String() string {
	return p.Curve().String()
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 { return a.Distance(b) }

// Midpoint returns the arithmetic mean of a and b.
func Midpoint(a, b Point) Point { return a.Midpoint(b) }
