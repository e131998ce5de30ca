package dispatch

import (
	"context"
	"fmt"

	"github.com/jizhuozhi/go-future"
)

// Run submits fn to q and returns a future for its result.
// A closed queue yields ErrQueueClosed. A panic in fn fails the future and
// is then re-raised so the queue logs it.
func Run[T any](q *SerialQueue, fn func() (T, error)) *future.Future[T] {
	p := future.NewPromise[T]()

	submitted := q.Submit(func() {
		var zero T
		defer func() {
			if r := recover(); r != nil {
				p.Set(zero, fmt.Errorf("task on %s panicked: %v", q.name, r))
				panic(r)
			}
		}()

		v, err := fn()
		p.Set(v, err)
	})
	if !submitted {
		var zero T
		p.Set(zero, ErrQueueClosed)
	}

	return p.Future()
}

// Failed returns a future already completed with err
func Failed[T any](err error) *future.Future[T] {
	p := future.NewPromise[T]()
	var zero T
	p.Set(zero, err)
	return p.Future()
}

// Await waits for f or ctx, whichever finishes first.
// Giving up on ctx does not cancel the task; it still runs to completion.
func Await[T any](ctx context.Context, f *future.Future[T]) (T, error) {
	type result struct {
		v   T
		err error
	}

	ch := make(chan result, 1)
	go func() {
		v, err := f.Get()
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Barrier waits until every task submitted to q before the call has run
func Barrier(ctx context.Context, q *SerialQueue) error {
	_, err := Await(ctx, Run(q, func() (struct{}, error) {
		return struct{}{}, nil
	}))
	return err
}
