package sink

import (
	"context"

	"github.com/matzehuels/mendel/pkg/geom"
	"github.com/matzehuels/mendel/pkg/raster"
)

// Curve is one fitted segment as it appears in output.
type Curve struct {
	Index       int              `json:"index"`
	Bezier      geom.CubicBezier `json:"curve"`
	Fitness     float64          `json:"fitness"`
	Generations int              `json:"generations"`
	State       string           `json:"state"`
	Warning     string           `json:"warning,omitempty"`
}

// Document is the complete vectorization of one image.
type Document struct {
	RunID   string       `json:"run_id,omitempty"`
	Width   int          `json:"width"`
	Height  int          `json:"height"`
	Closed  bool         `json:"closed,omitempty"`
	Corners []geom.Point `json:"corners"`
	Curves  []Curve      `json:"curves"`

	// Background is drawn behind PNG previews when set.
	Background *raster.Gray `json:"-"`
}

// Beziers returns the curves in order.
func (d *Document) Beziers() []geom.CubicBezier {
	out := make([]geom.CubicBezier, len(d.Curves))
	for i, c := range d.Curves {
		out[i] = c.Bezier
	}
	return out
}

// Publisher stores a finished document somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, doc *Document) error
	Close(ctx context.Context) error
}
