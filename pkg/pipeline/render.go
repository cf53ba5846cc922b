package pipeline

import (
	"fmt"

	"github.com/matzehuels/mendel/pkg/corner"
	"github.com/matzehuels/mendel/pkg/errors"
	"github.com/matzehuels/mendel/pkg/raster"
	"github.com/matzehuels/mendel/pkg/sink"
	"github.com/matzehuels/mendel/pkg/solver"
)

// NewDocument builds the renderable form of a run. results must be ordered
// by segment index.
func NewDocument(runID string, img *raster.Gray, corners []corner.Corner, results []solver.Result, closed bool) *sink.Document {
	doc := &sink.Document{
		RunID:      runID,
		Width:      img.Width(),
		Height:     img.Height(),
		Closed:     closed,
		Corners:    corner.Points(corners),
		Curves:     make([]sink.Curve, len(results)),
		Background: img,
	}
	for i, r := range results {
		c := sink.Curve{
			Index:       r.Segment.Index,
			Bezier:      r.Curve,
			Fitness:     r.Fitness,
			Generations: r.Generations,
			State:       r.State.String(),
		}
		if r.Warning != nil {
			c.Warning = string(errors.GetCode(r.Warning))
		}
		doc.Curves[i] = c
	}
	return doc
}

// Render generates output artifacts in the requested formats.
func Render(doc *sink.Document, opts Options) (map[string][]byte, error) {
	opts.SetRenderDefaults()
	if err := ValidateFormats(opts.Formats); err != nil {
		return nil, err
	}
	if err := ValidateStroke(opts.Stroke, opts.StrokeWidth); err != nil {
		return nil, err
	}

	svgOpts := []sink.SVGOption{sink.WithStroke(opts.Stroke, opts.StrokeWidth)}
	pngOpts := []sink.PNGOption{sink.WithPNGStep(opts.Step)}
	if opts.ShowCorners {
		svgOpts = append(svgOpts, sink.WithCorners())
		pngOpts = append(pngOpts, sink.WithPNGCorners())
	}

	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		var (
			data []byte
			err  error
		)
		switch format {
		case FormatSVG:
			data = sink.RenderSVG(doc, svgOpts...)
		case FormatJSON:
			data, err = sink.RenderJSON(doc)
		case FormatPNG:
			data, err = sink.RenderPNG(doc, pngOpts...)
		}
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}
