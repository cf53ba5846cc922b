package sink

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/vector"

	"github.com/matzehuels/mendel/pkg/geom"
)

const (
	cornerRadius = 5
	curveWidth   = 3.0
)

var (
	cornerColor = color.NRGBA{R: 255, A: 255}
	curveColor  = color.NRGBA{B: 255, A: 255}
)

// PNGOption configures PNG rendering.
type PNGOption func(*pngRenderer)

type pngRenderer struct {
	corners bool
	step    float64
}

// WithPNGCorners draws the corners on top of the curves.
func WithPNGCorners() PNGOption { return func(r *pngRenderer) { r.corners = true } }

// WithPNGStep sets the sampling step used to flatten curves. Non-positive
// steps keep the default.
func WithPNGStep(step float64) PNGOption {
	return func(r *pngRenderer) {
		if step > 0 {
			r.step = step
		}
	}
}

// RenderPNG draws a preview of doc.
func RenderPNG(doc *Document, opts ...PNGOption) ([]byte, error) {
	r := pngRenderer{step: geom.DefaultStep}
	for _, opt := range opts {
		opt(&r)
	}

	bounds := image.Rect(0, 0, max(doc.Width, 1), max(doc.Height, 1))
	dst := image.NewNRGBA(bounds)
	if doc.Background != nil {
		draw.Draw(dst, bounds, doc.Background.Image(), image.Point{}, draw.Src)
	} else {
		draw.Draw(dst, bounds, image.White, image.Point{}, draw.Src)
	}

	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	blue := image.NewUniform(curveColor)
	for _, c := range doc.Curves {
		z.Reset(bounds.Dx(), bounds.Dy())
		strokeCurve(z, c.Bezier, r.step, curveWidth)
		z.Draw(dst, bounds, blue, image.Point{})
	}

	if r.corners && len(doc.Corners) > 0 {
		z.Reset(bounds.Dx(), bounds.Dy())
		for _, p := range doc.Corners {
			fillCircle(z, p, cornerRadius)
		}
		z.Draw(dst, bounds, image.NewUniform(cornerColor), image.Point{})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// strokeCurve adds one quad per sampled chord. Every quad winds the same
// way, so overlaps at the joints add up instead of cancelling.
func strokeCurve(z *vector.Rasterizer, c geom.CubicBezier, step, width float64) {
	half := width / 2
	var prev geom.Point
	first := true
	for p := range c.Samples(step) {
		if first {
			prev, first = p, false
			continue
		}
		dx, dy := p.X-prev.X, p.Y-prev.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*half, dx/l*half
		z.MoveTo(f32(prev.X+nx), f32(prev.Y+ny))
		z.LineTo(f32(p.X+nx), f32(p.Y+ny))
		z.LineTo(f32(p.X-nx), f32(p.Y-ny))
		z.LineTo(f32(prev.X-nx), f32(prev.Y-ny))
		z.ClosePath()
		prev = p
	}
}

func fillCircle(z *vector.Rasterizer, center geom.Point, radius float64) {
	const n = 32
	for i := range n {
		a := 2 * math.Pi * float64(i) / n
		x, y := center.X+radius*math.Cos(a), center.Y+radius*math.Sin(a)
		if i == 0 {
			z.MoveTo(f32(x), f32(y))
		} else {
			z.LineTo(f32(x), f32(y))
		}
	}
	z.ClosePath()
}

func f32(v float64) float32 { return float32(v) }
