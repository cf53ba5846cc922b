package sink

import (
	"bytes"
	"fmt"
	"strconv"
)

// SVGOption configures RenderSVG.
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	corners     bool
	cornerColor string
	stroke      string
	strokeWidth float64
}

// WithCorners marks every corner with a small red dot.
func WithCorners() SVGOption { return func(r *svgRenderer) { r.corners = true } }

// WithStroke overrides the curve color and width. An empty color or a
// non-positive width leaves that setting unchanged.
func WithStroke(color string, width float64) SVGOption {
	return func(r *svgRenderer) {
		if color != "" {
			r.stroke = color
		}
		if width > 0 {
			r.strokeWidth = width
		}
	}
}

func newSVGRenderer(opts ...SVGOption) svgRenderer {
	r := svgRenderer{cornerColor: "red", stroke: "black"}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// RenderSVG writes one path per curve, in index order as stored in doc.
func RenderSVG(doc *Document, opts ...SVGOption) []byte {
	r := newSVGRenderer(opts...)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		doc.Width, doc.Height, doc.Width, doc.Height)

	style := "stroke: " + r.stroke + ";fill:none"
	if r.strokeWidth > 0 {
		style += ";stroke-width:" + num(r.strokeWidth)
	}
	for _, c := range doc.Curves {
		b := c.Bezier
		fmt.Fprintf(&buf, `  <path d="M%s %s C %s %s, %s %s, %s %s" style="%s"/>`+"\n",
			num(b.Start.X), num(b.Start.Y),
			num(b.Control1.X), num(b.Control1.Y),
			num(b.Control2.X), num(b.Control2.Y),
			num(b.End.X), num(b.End.Y),
			style)
	}

	if r.corners {
		for _, p := range doc.Corners {
			fmt.Fprintf(&buf, `  <circle cx="%s" cy="%s" r="%d" fill="%s"/>`+"\n",
				num(p.X), num(p.Y), cornerRadius, r.cornerColor)
		}
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// num formats v with the fewest digits that round-trip.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
