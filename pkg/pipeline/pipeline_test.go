package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/mendel/pkg/cache"
	"github.com/matzehuels/mendel/pkg/corner"
	"github.com/matzehuels/mendel/pkg/errors"
	"github.com/matzehuels/mendel/pkg/genetic"
	"github.com/matzehuels/mendel/pkg/geom"
	"github.com/matzehuels/mendel/pkg/raster"
	"github.com/matzehuels/mendel/pkg/sink"
	"github.com/matzehuels/mendel/pkg/solver"
)

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"png", false},
		{"json", false},
		{"pdf", true},
		{"invalid", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestValidateFormats(t *testing.T) {
	if err := ValidateFormats([]string{"svg", "png"}); err != nil {
		t.Errorf("Valid formats should pass: %v", err)
	}

	if err := ValidateFormats([]string{"svg", "invalid"}); err == nil {
		t.Error("Invalid format should fail")
	}

	// Empty slice is valid
	if err := ValidateFormats(nil); err != nil {
		t.Errorf("Empty formats should pass: %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	var opts Options
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}

	if opts.Solver != solver.DefaultConfig() {
		t.Errorf("Solver = %+v, want defaults", opts.Solver)
	}
	if opts.Step != geom.DefaultStep {
		t.Errorf("Step = %g, want %g", opts.Step, geom.DefaultStep)
	}
	if opts.Seed != DefaultSeed {
		t.Errorf("Seed = %d, want %d", opts.Seed, DefaultSeed)
	}
	if opts.Workers < 1 {
		t.Errorf("Workers = %d, want NumCPU", opts.Workers)
	}
	if opts.Corners.Threshold != DefaultCornerThreshold || !opts.Corners.Suppress {
		t.Errorf("Corners = %+v, want default detector", opts.Corners)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != FormatSVG {
		t.Errorf("Formats = %v, want [svg]", opts.Formats)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative workers", Options{Workers: -1}},
		{"step above one", Options{Step: 2}},
		{"bad format", Options{Formats: []string{"gif"}}},
		{"bad solver", Options{Solver: solver.Config{PopulationSize: 1}}},
		{"bad stroke color", Options{Stroke: "url(#x)"}},
		{"negative stroke width", Options{StrokeWidth: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("expected INVALID_CONFIG, got %v", err)
			}
		})
	}
}

func TestOptionsValidateAndSetDefaultsIdempotent(t *testing.T) {
	opts := Options{Workers: 3}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	first := opts.String()
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.String() != first {
		t.Errorf("second call changed options: %s vs %s", opts.String(), first)
	}
}

func TestRenderStroke(t *testing.T) {
	doc := &sink.Document{
		Width:  20,
		Height: 20,
		Curves: []sink.Curve{{Bezier: geom.CubicBezier{Start: geom.Pt(1, 1), Control1: geom.Pt(5, 1), Control2: geom.Pt(9, 1), End: geom.Pt(13, 1)}}},
	}

	artifacts, err := Render(doc, Options{Formats: []string{FormatSVG}, Stroke: "#ff0000", StrokeWidth: 2})
	if err != nil {
		t.Fatal(err)
	}
	if svg := string(artifacts[FormatSVG]); !strings.Contains(svg, "stroke: #ff0000;fill:none;stroke-width:2") {
		t.Errorf("stroke options should reach the SVG renderer:\n%s", svg)
	}

	if _, err := Render(doc, Options{Formats: []string{FormatSVG}, Stroke: "red;fill:blue"}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("malformed stroke should be INVALID_CONFIG, got %v", err)
	}
}

func TestArtifactKeyOptsIncludeStroke(t *testing.T) {
	a := Options{Stroke: "red"}
	b := Options{Stroke: "blue"}
	if a.ArtifactKeyOpts(FormatSVG) == b.ArtifactKeyOpts(FormatSVG) {
		t.Error("artifact cache keys should differ when the stroke differs")
	}
}

func TestPartitionCoversEveryIndex(t *testing.T) {
	for n := 0; n <= 40; n++ {
		for w := -1; w <= 12; w++ {
			ranges := Partition(n, w)
			seen := make([]int, n)
			next := 0
			for _, r := range ranges {
				if r.Start != next {
					t.Fatalf("Partition(%d, %d): range %v not contiguous", n, w, r)
				}
				if r.Len() <= 0 {
					t.Fatalf("Partition(%d, %d): empty range %v", n, w, r)
				}
				for i := r.Start; i < r.End; i++ {
					seen[i]++
				}
				next = r.End
			}
			for i, c := range seen {
				if c != 1 {
					t.Fatalf("Partition(%d, %d): index %d covered %d times", n, w, i, c)
				}
			}
		}
	}
}

func TestPartitionShape(t *testing.T) {
	tests := []struct {
		n, workers int
		want       []Range
	}{
		{10, 3, []Range{{0, 3}, {3, 6}, {6, 9}, {9, 10}}},
		{9, 3, []Range{{0, 3}, {3, 6}, {6, 9}}},
		{3, 8, []Range{{0, 1}, {1, 2}, {2, 3}}},
		{5, 1, []Range{{0, 5}}},
		{0, 4, nil},
	}
	for _, tt := range tests {
		got := Partition(tt.n, tt.workers)
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("Partition(%d, %d) = %v, want %v", tt.n, tt.workers, got, tt.want)
		}
	}
}

func TestSegments(t *testing.T) {
	pts := []geom.Point{geom.Pt(0, 0), geom.Pt(1, 0), geom.Pt(1, 1)}

	open, err := Segments(pts, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 2 {
		t.Fatalf("open contour: %d segments, want 2", len(open))
	}
	for i, s := range open {
		if s.Index != i || s.Start != pts[i] || s.End != pts[i+1] {
			t.Errorf("segment %d = %+v", i, s)
		}
	}

	closed, err := Segments(pts, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(closed) != 3 {
		t.Fatalf("closed contour: %d segments, want 3", len(closed))
	}
	if last := closed[2]; last.Start != pts[2] || last.End != pts[0] {
		t.Errorf("closing segment = %+v, want last→first", last)
	}

	for _, n := range []int{0, 1} {
		if _, err := Segments(pts[:n], false); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("%d points should be INVALID_INPUT, got %v", n, err)
		}
	}
}

func TestMapRanges(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	var mu sync.Mutex
	got := make(map[int]int)
	err := MapRanges(context.Background(), items, Partition(len(items), 4),
		func(_ context.Context, i, v int) (int, error) { return v * v, nil },
		func(sq int) {
			mu.Lock()
			defer mu.Unlock()
			got[sq]++
		})
	if err != nil {
		t.Fatalf("MapRanges: %v", err)
	}
	for _, v := range items {
		if got[v*v] != 1 {
			t.Errorf("result %d emitted %d times", v*v, got[v*v])
		}
	}
}

func TestMapRangesError(t *testing.T) {
	boom := fmt.Errorf("boom")
	items := make([]int, 100)
	var mu sync.Mutex
	emitted := 0

	err := MapRanges(context.Background(), items, Partition(len(items), 4),
		func(_ context.Context, i, _ int) (int, error) {
			if i == 0 {
				return 0, boom
			}
			return i, nil
		},
		func(int) {
			mu.Lock()
			defer mu.Unlock()
			emitted++
		})
	if err != boom {
		t.Fatalf("err = %v, want boom", err)
	}
	if emitted >= len(items) {
		t.Error("error should stop the failing worker")
	}
}

// constScorer converges every segment in the first generation.
var constScorer = genetic.ScorerFunc(func(geom.CubicBezier) float64 { return 100 })

func newTestSolver(t *testing.T, s genetic.Scorer, cfg solver.Config) *solver.Solver {
	t.Helper()
	sol, err := solver.New(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return sol
}

func lineSegments(n int) []solver.Segment {
	pts := make([]geom.Point, n+1)
	for i := range pts {
		pts[i] = geom.Pt(float64(i*10), 5)
	}
	segs, _ := Segments(pts, false)
	return segs
}

func TestOrchestratorTryRecv(t *testing.T) {
	o := &Orchestrator{
		Solver:  newTestSolver(t, constScorer, solver.Config{PopulationSize: 20, Survivors: 10}),
		Workers: 3,
		Seed:    1,
	}
	segs := lineSegments(7)
	job, err := o.Start(context.Background(), segs)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.Total() != 7 {
		t.Errorf("Total = %d, want 7", job.Total())
	}

	seen := make(map[int]bool)
	deadline := time.After(5 * time.Second)
	for len(seen) < len(segs) {
		if r, ok := job.TryRecv(); ok {
			if seen[r.Segment.Index] {
				t.Fatalf("segment %d delivered twice", r.Segment.Index)
			}
			seen[r.Segment.Index] = true
			if r.State != solver.Converged {
				t.Errorf("segment %d state = %v", r.Segment.Index, r.State)
			}
			continue
		}
		select {
		case <-deadline:
			t.Fatalf("timed out with %d of %d results", len(seen), len(segs))
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if err := job.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
	if _, ok := job.TryRecv(); ok {
		t.Error("TryRecv after all results should report nothing")
	}
}

func TestOrchestratorCollectOrdered(t *testing.T) {
	o := &Orchestrator{
		Solver:  newTestSolver(t, constScorer, solver.Config{PopulationSize: 20, Survivors: 10}),
		Workers: 4,
	}
	job, err := o.Start(context.Background(), lineSegments(9))
	if err != nil {
		t.Fatal(err)
	}
	results, err := job.Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(results) != 9 {
		t.Fatalf("len = %d, want 9", len(results))
	}
	for i, r := range results {
		if r.Segment.Index != i {
			t.Errorf("result %d has index %d", i, r.Segment.Index)
		}
	}
}

func TestOrchestratorNoSegments(t *testing.T) {
	o := &Orchestrator{Solver: newTestSolver(t, constScorer, solver.Config{})}
	if _, err := o.Start(context.Background(), nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("no segments should be INVALID_INPUT, got %v", err)
	}
}

func TestOrchestratorCancel(t *testing.T) {
	never := genetic.ScorerFunc(func(geom.CubicBezier) float64 { return -1 })
	o := &Orchestrator{
		Solver:  newTestSolver(t, never, solver.Config{PopulationSize: 20, Survivors: 10, MaxGenerations: 1_000_000}),
		Workers: 2,
	}
	job, err := o.Start(context.Background(), lineSegments(4))
	if err != nil {
		t.Fatal(err)
	}
	job.Cancel()

	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not stop after Cancel")
	}
	if err := job.Wait(); err != context.Canceled {
		t.Errorf("Wait = %v, want context.Canceled", err)
	}
}

type memStore struct {
	mu   sync.Mutex
	data map[geom.Point]solver.Result
}

func (m *memStore) Lookup(_ context.Context, seg solver.Segment) (solver.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[seg.Start]
	r.Segment = seg
	return r, ok
}

func (m *memStore) Store(_ context.Context, r solver.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[r.Segment.Start] = r
}

func TestOrchestratorUsesStore(t *testing.T) {
	var calls sync.Map
	counting := genetic.ScorerFunc(func(c geom.CubicBezier) float64 {
		calls.Store(c.Start, true)
		return 100
	})
	store := &memStore{data: map[geom.Point]solver.Result{
		geom.Pt(0, 5): {Fitness: 42, State: solver.Converged},
	}}
	o := &Orchestrator{
		Solver:  newTestSolver(t, counting, solver.Config{PopulationSize: 20, Survivors: 10}),
		Workers: 2,
		Store:   store,
	}
	job, _ := o.Start(context.Background(), lineSegments(3))
	results, err := job.Collect()
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Fitness != 42 {
		t.Errorf("segment 0 should come from the store, fitness = %g", results[0].Fitness)
	}
	if _, solved := calls.Load(geom.Pt(0, 5)); solved {
		t.Error("stored segment should not be solved again")
	}
	if len(store.data) != 3 {
		t.Errorf("store should hold all 3 segments, has %d", len(store.data))
	}
}

// outline draws a dark square outline of the given thickness on white.
func outline(size, lo, hi, thick int) *raster.Gray {
	pix := make([]uint8, size*size)
	for y := range size {
		for x := range size {
			pix[y*size+x] = 255
			inX := x >= lo-thick && x <= hi+thick
			inY := y >= lo-thick && y <= hi+thick
			nearX := x >= lo-thick && x <= lo+thick || x >= hi-thick && x <= hi+thick
			nearY := y >= lo-thick && y <= lo+thick || y >= hi-thick && y <= hi+thick
			if (nearX && inY) || (nearY && inX) {
				pix[y*size+x] = 0
			}
		}
	}
	g, _ := raster.FromPix(size, size, pix)
	return g
}

func squareCorners() []corner.Corner {
	return []corner.Corner{{X: 10, Y: 10}, {X: 30, Y: 10}, {X: 30, Y: 30}, {X: 10, Y: 30}}
}

func TestRunnerExecute(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	opts := Options{
		Solver:  solver.Config{PopulationSize: 200, Survivors: 100, MaxGenerations: 20},
		Workers: 2,
		Closed:  true,
		Formats: []string{FormatSVG, FormatJSON, FormatPNG},
	}

	res, err := runner.Execute(context.Background(), Input{Image: outline(40, 10, 30, 1), Corners: squareCorners()}, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.RunID == "" {
		t.Error("RunID should be set")
	}
	if len(res.Segments) != 4 {
		t.Fatalf("closed square should have 4 segments, got %d", len(res.Segments))
	}
	cs := squareCorners()
	for i, s := range res.Segments {
		if s.Segment.Index != i {
			t.Errorf("segment %d out of order", i)
		}
		if s.Curve.Start != cs[i].Point() || s.Curve.End != cs[(i+1)%4].Point() {
			t.Errorf("segment %d endpoints = %s → %s", i, s.Curve.Start, s.Curve.End)
		}
	}
	if got := res.Stats.Converged + res.Stats.Exhausted + res.Stats.Degenerate; got != 4 {
		t.Errorf("stats account for %d segments, want 4", got)
	}
	for _, f := range opts.Formats {
		if len(res.Artifacts[f]) == 0 {
			t.Errorf("missing %s artifact", f)
		}
	}
	if n := strings.Count(string(res.Artifacts[FormatSVG]), "<path"); n != 4 {
		t.Errorf("SVG has %d paths, want 4", n)
	}
}

func TestRunnerTooFewCorners(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	_, err := runner.Execute(context.Background(),
		Input{Image: raster.New(10, 10, 0), Corners: []corner.Corner{{X: 1, Y: 1}}}, Options{})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("single corner should be INVALID_INPUT, got %v", err)
	}
}

func TestRunnerSegmentCache(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(fc, nil, nil)
	in := Input{Image: outline(40, 10, 30, 1), Corners: squareCorners()}
	opts := Options{Solver: solver.Config{PopulationSize: 50, Survivors: 20, MaxGenerations: 5}, Workers: 2}

	first, err := runner.Execute(context.Background(), in, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.SegmentHits != 0 {
		t.Errorf("first run should not hit the cache, got %d hits", first.CacheInfo.SegmentHits)
	}

	second, err := runner.Execute(context.Background(), in, opts)
	if err != nil {
		t.Fatal(err)
	}
	if second.CacheInfo.SegmentHits != 3 {
		t.Errorf("second run should restore all 3 segments, got %d", second.CacheInfo.SegmentHits)
	}
	if !second.CacheInfo.RenderHit {
		t.Error("identical output should be served from the artifact cache")
	}
	for i := range first.Segments {
		a, b := first.Segments[i], second.Segments[i]
		if a.Curve != b.Curve || a.State != b.State {
			t.Errorf("segment %d differs after cache round trip", i)
		}
		if (a.Warning == nil) != (b.Warning == nil) || errors.GetCode(a.Warning) != errors.GetCode(b.Warning) {
			t.Errorf("segment %d warning lost: %v vs %v", i, a.Warning, b.Warning)
		}
	}
}

func TestRunnerDetectsCorners(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	cs, err := runner.DetectCorners(context.Background(), outline(40, 10, 30, 1), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) < 4 {
		t.Errorf("square outline should yield at least 4 corners, got %d", len(cs))
	}
}

func TestConfigRoundTrip(t *testing.T) {
	want := DefaultOptions()
	want.Closed = true
	want.Formats = []string{FormatPNG}

	var buf bytes.Buffer
	if err := WriteConfig(&buf, want); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	got, err := DecodeConfig(&buf)
	if err != nil {
		t.Fatalf("DecodeConfig: %v\n%s", err, buf.String())
	}
	if got.Solver != want.Solver || got.Weights != want.Weights || got.Closed != true ||
		got.Seed != want.Seed || got.Formats[0] != FormatPNG {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestDecodeConfig(t *testing.T) {
	in := `
seed = 7
closed = true

[solver]
population_size = 200
threshold = 90.0

[weights]
cutoff = 128
`
	opts, err := DecodeConfig(strings.NewReader(in))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if opts.Seed != 7 || !opts.Closed || opts.Solver.PopulationSize != 200 || opts.Solver.Threshold != 90 || opts.Weights.Cutoff != 128 {
		t.Errorf("decoded = %+v", opts)
	}

	if _, err := DecodeConfig(strings.NewReader("sead = 7\n")); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("unknown key should be INVALID_CONFIG, got %v", err)
	}
	if _, err := LoadConfig("does-not-exist.toml"); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file should be FILE_NOT_FOUND, got %v", err)
	}
}
