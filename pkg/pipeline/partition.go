package pipeline

import (
	"github.com/matzehuels/mendel/pkg/errors"
	"github.com/matzehuels/mendel/pkg/geom"
	"github.com/matzehuels/mendel/pkg/solver"
)

// Range is the half-open index interval [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in r.
func (r Range) Len() int { return r.End - r.Start }

// Partition splits [0, n) into contiguous ranges for parallel work. The
// worker count is capped at n. Each of the W workers gets floor(n/W)
// indices; any remainder forms one extra trailing range. Together the ranges
// cover every index exactly once.
func Partition(n, workers int) []Range {
	if n <= 0 {
		return nil
	}
	w := min(max(workers, 1), n)
	size := n / w

	ranges := make([]Range, 0, w+1)
	for i := range w {
		ranges = append(ranges, Range{Start: i * size, End: (i + 1) * size})
	}
	if rest := w * size; rest < n {
		ranges = append(ranges, Range{Start: rest, End: n})
	}
	return ranges
}

// Segments pairs consecutive points: segment i runs from points[i] to
// points[i+1]. In closed mode a final segment joins the last point back to
// the first. At least two points are required.
func Segments(points []geom.Point, closed bool) ([]solver.Segment, error) {
	if len(points) < 2 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "need at least two corners, got %d", len(points))
	}

	n := len(points) - 1
	if closed {
		n++
	}
	segs := make([]solver.Segment, n)
	for i := range n {
		segs[i] = solver.Segment{
			Index: i,
			Start: points[i],
			End:   points[(i+1)%len(points)],
		}
	}
	return segs, nil
}
