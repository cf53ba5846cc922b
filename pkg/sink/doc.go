// Package sink turns fitted curves into output.
//
// Renderers ([RenderSVG], [RenderJSON], [RenderPNG]) are pure functions of a
// [Document] and return encoded bytes. Publishers such as [MongoSink] push a
// finished document to external storage. Everything here runs downstream of
// the solver: a document is built only after all segments have completed.
//
// # SVG
//
// Each curve becomes one path element:
//
//	<path d="M x y C c1x c1y, c2x c2y, ex ey" style="stroke: black;fill:none"/>
//
// # PNG
//
// The preview draws the source image as background, corners as red dots of
// radius 5 and curves as blue strokes of width 3.
package sink
