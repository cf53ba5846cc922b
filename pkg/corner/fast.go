// Package corner finds feature points on a grayscale raster.
//
// The detector is FAST-9: a pixel is a corner when at least nine contiguous
// pixels on the radius-3 Bresenham circle around it are all brighter, or all
// darker, than the center by more than a threshold. Corners are reported in
// raster order (row by row, left to right), which is the order the vectorizer
// joins them in.
package corner

import (
	"github.com/matzehuels/mendel/pkg/geom"
	"github.com/matzehuels/mendel/pkg/raster"
)

// DefaultThreshold is the intensity difference used by DetectFAST when the
// caller passes a negative threshold.
const DefaultThreshold = 40

// arc is the number of contiguous circle pixels required.
const arc = 9

// Corner is a detected feature point. Score is the largest threshold at
// which the point would still be detected.
type Corner struct {
	X     int     `json:"x" toml:"x"`
	Y     int     `json:"y" toml:"y"`
	Score float64 `json:"score,omitempty" toml:"score,omitempty"`
}

// Point returns the corner as a geometry point.
func (c Corner) Point() geom.Point {
	return geom.Pt(float64(c.X), float64(c.Y))
}

// Points converts corners to geometry points, preserving order.
func Points(cs []Corner) []geom.Point {
	out := make([]geom.Point, len(cs))
	for i, c := range cs {
		out[i] = c.Point()
	}
	return out
}

// circle holds the 16 offsets of the radius-3 circle, clockwise from the top.
var circle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// Options tunes DetectFAST.
type Options struct {
	// Threshold is the minimum intensity difference. Negative selects
	// DefaultThreshold; zero accepts any strict difference.
	Threshold int `json:"threshold" toml:"threshold"`

	// Suppress keeps only corners whose score is a local maximum in their
	// 3x3 neighborhood.
	Suppress bool `json:"suppress" toml:"suppress"`
}

// DetectFAST returns the FAST-9 corners of img in raster order. Pixels closer
// than three pixels to the border are never corners.
func DetectFAST(img *raster.Gray, opts Options) []Corner {
	t := opts.Threshold
	if t < 0 {
		t = DefaultThreshold
	}
	w, h := img.Width(), img.Height()
	if w < 7 || h < 7 {
		return nil
	}

	scores := make([]float64, w*h)
	var found []Corner
	for y := 3; y < h-3; y++ {
		for x := 3; x < w-3; x++ {
			if !isCorner(img, x, y, t) {
				continue
			}
			s := float64(score(img, x, y, t))
			scores[y*w+x] = s
			found = append(found, Corner{X: x, Y: y, Score: s})
		}
	}
	if !opts.Suppress {
		return found
	}

	kept := found[:0]
	for _, c := range found {
		if localMax(scores, w, h, c) {
			kept = append(kept, c)
		}
	}
	return kept
}

// localMax reports whether c beats its neighbors. On ties the first corner
// in raster order wins, so plateaus yield a single point.
func localMax(scores []float64, w, h int, c Corner) bool {
	s := scores[c.Y*w+c.X]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			x, y := c.X+dx, c.Y+dy
			if x < 0 || y < 0 || x >= w || y >= h {
				continue
			}
			n := scores[y*w+x]
			before := dy < 0 || (dy == 0 && dx < 0)
			if n > s || (before && n == s) {
				return false
			}
		}
	}
	return true
}

func isCorner(img *raster.Gray, x, y, t int) bool {
	center, _ := img.Luma(x, y)
	var ring [16]int
	for i, o := range circle {
		v, _ := img.Luma(x+o[0], y+o[1])
		ring[i] = int(v) - int(center)
	}
	return contiguous(ring, func(d int) bool { return d > t }) ||
		contiguous(ring, func(d int) bool { return d < -t })
}

// contiguous reports whether arc consecutive entries of the circular ring
// satisfy ok.
func contiguous(ring [16]int, ok func(int) bool) bool {
	run := 0
	for i := 0; i < len(ring)+arc-1; i++ {
		if ok(ring[i%len(ring)]) {
			run++
			if run >= arc {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// score binary-searches the largest threshold at which (x, y) is still a
// corner, given that it is one at t.
func score(img *raster.Gray, x, y, t int) int {
	lo, hi := t, 255
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if isCorner(img, x, y, mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
