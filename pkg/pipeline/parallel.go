package pipeline

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// MapRanges applies fn to every item, one goroutine per range. Items inside a
// range are processed in order; each result is handed to emit as soon as it
// is ready, so emit must be safe for concurrent use.
//
// The first error cancels the context passed to the other workers and is
// returned once all of them have stopped. Workers stop between items when the
// context is done.
func MapRanges[T, R any](ctx context.Context, items []T, ranges []Range,
	fn func(ctx context.Context, index int, item T) (R, error), emit func(R)) error {

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, r := range ranges {
		p.Go(func(ctx context.Context) error {
			for i := r.Start; i < r.End; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				out, err := fn(ctx, i, items[i])
				if err != nil {
					return err
				}
				emit(out)
			}
			return nil
		})
	}
	return p.Wait()
}
