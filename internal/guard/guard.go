// Package guard ensures at most one save is in flight per workout draft.
package guard

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SubmitFunc performs the (non-idempotent) save and returns the result shown to the user.
type SubmitFunc[T any] func(ctx context.Context) (T, error)

// Guard collapses concurrent submissions for the same draft into one call.
// The in-flight marker clears when the call returns, success or failure, so a
// failed save can be retried. There is no watchdog: a call that never returns
// blocks resubmission until its context is cancelled.
type Guard[T any] struct {
	group singleflight.Group

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates an empty Guard.
func New[T any]() *Guard[T] {
	return &Guard[T]{inFlight: make(map[string]struct{})}
}

// TrySubmit runs fn unless a submission for draftID is already running, in
// which case it waits for and returns that submission's result. shared
// reports whether the result came from another caller's submission.
func (g *Guard[T]) TrySubmit(ctx context.Context, draftID string, fn SubmitFunc[T]) (result T, shared bool, err error) {
	v, err, shared := g.group.Do(draftID, func() (any, error) {
		g.mark(draftID, true)
		defer g.mark(draftID, false)
		return fn(ctx)
	})
	if v != nil {
		result = v.(T)
	}
	return result, shared, err
}

// InFlight reports whether a submission for draftID is currently running.
func (g *Guard[T]) InFlight(draftID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inFlight[draftID]
	return ok
}

func (g *Guard[T]) mark(draftID string, on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if on {
		g.inFlight[draftID] = struct{}{}
	} else {
		delete(g.inFlight, draftID)
	}
}
