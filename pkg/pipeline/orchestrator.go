package pipeline

import (
	"cmp"
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mendel/pkg/errors"
	"github.com/matzehuels/mendel/pkg/observability"
	"github.com/matzehuels/mendel/pkg/solver"
)

// SegmentStore looks up and records solved segments. Implementations must be
// safe for concurrent use; a failed lookup is simply a miss.
type SegmentStore interface {
	Lookup(ctx context.Context, seg solver.Segment) (solver.Result, bool)
	Store(ctx context.Context, res solver.Result)
}

// Orchestrator fans segments out over worker goroutines.
type Orchestrator struct {
	Solver  *solver.Solver
	Workers int    // capped at the number of segments; <= 0 means one
	Seed    uint64 // base seed, combined per segment with its endpoints
	Store   SegmentStore
	Logger  *log.Logger
}

// Job is a running set of segment searches. Results are delivered through a
// channel buffered to the number of segments, so workers never block on a
// slow consumer.
type Job struct {
	total   int
	workers int
	results chan solver.Result
	done    chan struct{}
	cancel  context.CancelFunc

	mu  sync.Mutex
	err error
}

// Start launches one worker per partition range and returns immediately.
// It fails with INVALID_INPUT when there are no segments.
func (o *Orchestrator) Start(ctx context.Context, segments []solver.Segment) (*Job, error) {
	if len(segments) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no segments to solve")
	}
	if o.Solver == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "orchestrator has no solver")
	}
	logger := o.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	ranges := Partition(len(segments), o.Workers)
	ctx, cancel := context.WithCancel(ctx)
	job := &Job{
		total:   len(segments),
		workers: len(ranges),
		results: make(chan solver.Result, len(segments)),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	hooks := observability.Pipeline()
	hooks.OnRunStart(ctx, job.total, job.workers)
	logger.Debug("starting workers", "segments", job.total, "ranges", len(ranges))

	go func() {
		started := time.Now()
		err := MapRanges(ctx, segments, ranges, o.solveOne(logger), func(r solver.Result) {
			job.results <- r
		})
		hooks.OnRunComplete(ctx, job.total, time.Since(started), err)

		job.mu.Lock()
		job.err = err
		job.mu.Unlock()
		close(job.results)
		close(job.done)
		cancel()
	}()
	return job, nil
}

func (o *Orchestrator) solveOne(logger *log.Logger) func(context.Context, int, solver.Segment) (solver.Result, error) {
	return func(ctx context.Context, _ int, seg solver.Segment) (solver.Result, error) {
		if o.Store != nil {
			if res, ok := o.Store.Lookup(ctx, seg); ok {
				logger.Debug("segment from cache", "index", seg.Index)
				return res, nil
			}
		}

		res, err := o.Solver.Solve(ctx, seg, solver.NewRNG(o.Seed, seg))
		if err != nil {
			return res, err
		}
		if res.Warning != nil {
			logger.Warn(errors.UserMessage(res.Warning), "index", seg.Index, "fitness", res.Fitness)
		} else {
			logger.Debug("segment solved", "index", seg.Index, "generations", res.Generations,
				"fitness", res.Fitness, "duration", res.Duration)
		}
		if o.Store != nil {
			o.Store.Store(ctx, res)
		}
		return res, nil
	}
}

// Total returns the number of segments in the job.
func (j *Job) Total() int { return j.total }

// Workers returns the number of worker goroutines.
func (j *Job) Workers() int { return j.workers }

// TryRecv returns a completed result if one is waiting. It never blocks.
func (j *Job) TryRecv() (solver.Result, bool) {
	select {
	case r, ok := <-j.results:
		return r, ok
	default:
		return solver.Result{}, false
	}
}

// Results returns the result channel. It is closed after the last worker
// exits.
func (j *Job) Results() <-chan solver.Result { return j.results }

// Done is closed when all workers have exited.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel stops the workers at their next generation boundary.
func (j *Job) Cancel() { j.cancel() }

// Wait blocks until all workers exit and returns the first worker error.
// Solver warnings are not errors.
func (j *Job) Wait() error {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Collect drains every result still in the channel, waits for the workers and
// returns the results ordered by segment index. Results already taken with
// TryRecv are not included.
func (j *Job) Collect() ([]solver.Result, error) {
	out := make([]solver.Result, 0, j.total)
	for r := range j.results {
		out = append(out, r)
	}
	err := j.Wait()
	SortResults(out)
	return out, err
}

// SortResults orders results by segment index.
func SortResults(rs []solver.Result) {
	slices.SortFunc(rs, func(a, b solver.Result) int {
		return cmp.Compare(a.Segment.Index, b.Segment.Index)
	})
}
