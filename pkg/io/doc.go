// Package io reads and writes corner lists and curve documents.
//
// # Corner files
//
// Corners can be supplied instead of detected. Two formats are accepted,
// chosen by file extension:
//
// JSON (.json), an array of points:
//
//	[{"x": 10, "y": 10}, {"x": 19, "y": 10}, {"x": 19, "y": 19}]
//
// TOML (.toml), an array of tables:
//
//	[[corner]]
//	x = 10
//	y = 10
//
//	[[corner]]
//	x = 19
//	y = 10
//
// Order matters: the vectorizer joins corner i to corner i+1.
//
// # Curve files
//
// A curve file is the JSON rendering of a [sink.Document]. [ReadCurves]
// loads one back so it can be re-rendered without solving again.
//
// [sink.Document]: github.com/matzehuels/mendel/pkg/sink.Document
package io
