// Package geom provides the 2-D primitives used by the vectorizer: points and
// cubic Bezier curves.
//
// Both types are small values. They are copied freely and never mutated through
// shared references, which lets the evolutionary search keep thousands of
// candidate curves in plain slices.
//
// # Sampling
//
// A [CubicBezier] is rasterized for scoring by sampling its parametric form at a
// fixed step:
//
//	c := geom.CubicBezier{Start: a, Control1: p, Control2: q, End: b}
//	for pt := range c.Samples(geom.DefaultStep) {
//	    // 101 points, the first equal to a and the last equal to b
//	}
//
// The sequence is derived from the curve each time it is ranged over, so it can
// be restarted at will.
package geom
