// Package pkg provides the core libraries for Mendel, an evolutionary
// Bézier curve fitter.
//
// # Overview
//
// Mendel turns line art into vector paths. It finds corners in a grayscale
// image, pairs neighbouring corners into segments and runs a small genetic
// search per segment for the cubic Bézier curve whose samples land on the
// darkest pixels between them.
//
// # Architecture
//
//	image
//	  ↓
//	[raster]     luminance grid
//	  ↓
//	[corner]     FAST-9 corners
//	  ↓
//	[pipeline]   segments, partitioned over workers
//	  ↓
//	[solver]     one search per segment ([genetic] operators, [fitness] scoring)
//	  ↓
//	[sink]       SVG, PNG, JSON, MongoDB
//
// # Quick Start
//
//	img, _ := raster.Load("logo.png")
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, err := runner.Execute(ctx, pipeline.Input{Image: img}, pipeline.Options{
//	    Closed:  true,
//	    Formats: []string{pipeline.FormatSVG},
//	})
//	os.WriteFile("logo.svg", res.Artifacts[pipeline.FormatSVG], 0o644)
//
// # Main Packages
//
// [geom] - points and cubic Bézier curves with fixed-step sampling.
//
// [raster] - decoded images reduced to 8-bit luminance.
//
// [corner] - FAST-9 corner detection with non-maximum suppression.
//
// [fitness] - scores a curve by the darkness of the pixels it crosses.
//
// [genetic] - population initialisation, selection, crossover and mutation.
//
// [solver] - the per-segment search loop and its termination rules.
//
// [pipeline] - partitioning, the worker orchestrator, caching and rendering.
//
// [cache] - file, Redis and no-op result caches.
//
// [sink] - SVG, PNG and JSON renderers and the MongoDB publisher.
//
// [io] - corner and curve file import and export.
//
// [server] - the HTTP API.
//
// [observability] - hooks for metrics and tracing.
//
// [errors] - coded errors shared by the CLI and the API.
package pkg
