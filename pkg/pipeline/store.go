package pipeline

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/matzehuels/mendel/pkg/cache"
	"github.com/matzehuels/mendel/pkg/errors"
	"github.com/matzehuels/mendel/pkg/geom"
	"github.com/matzehuels/mendel/pkg/observability"
	"github.com/matzehuels/mendel/pkg/solver"
)

// cachedSegment is the serialized form of a solver.Result. The segment
// itself is not stored: its index belongs to the run that asks.
type cachedSegment struct {
	Curve       geom.CubicBezier `json:"curve"`
	Fitness     float64          `json:"fitness"`
	Generations int              `json:"generations"`
	State       solver.State     `json:"state"`
	WarningCode errors.Code      `json:"warning_code,omitempty"`
	WarningMsg  string           `json:"warning_message,omitempty"`
}

// segmentCache adapts a cache.Cache to SegmentStore for one image.
type segmentCache struct {
	cache     cache.Cache
	keyer     cache.Keyer
	imageHash string
	opts      Options
	hits      atomic.Int64
}

func (s *segmentCache) key(seg solver.Segment) string {
	return s.keyer.SegmentKey(s.imageHash, s.opts.SegmentKeyOpts(seg))
}

func (s *segmentCache) Lookup(ctx context.Context, seg solver.Segment) (solver.Result, bool) {
	if s.opts.Refresh {
		return solver.Result{}, false
	}
	data, hit, err := s.cache.Get(ctx, s.key(seg))
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "segment")
		return solver.Result{}, false
	}
	var c cachedSegment
	if err := json.Unmarshal(data, &c); err != nil {
		observability.Cache().OnCacheMiss(ctx, "segment")
		return solver.Result{}, false
	}
	observability.Cache().OnCacheHit(ctx, "segment")
	s.hits.Add(1)

	res := solver.Result{
		Segment:     seg,
		Curve:       c.Curve,
		Fitness:     c.Fitness,
		Generations: c.Generations,
		State:       c.State,
	}
	if c.WarningCode != "" {
		res.Warning = errors.New(c.WarningCode, "%s", c.WarningMsg)
	}
	return res, true
}

func (s *segmentCache) Store(ctx context.Context, res solver.Result) {
	c := cachedSegment{
		Curve:       res.Curve,
		Fitness:     res.Fitness,
		Generations: res.Generations,
		State:       res.State,
	}
	if res.Warning != nil {
		c.WarningCode = errors.GetCode(res.Warning)
		c.WarningMsg = errors.UserMessage(res.Warning)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.key(res.Segment), data, cache.TTLSegment); err == nil {
		observability.Cache().OnCacheSet(ctx, "segment", len(data))
	}
}
