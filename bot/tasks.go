package bot

import (
	"context"
	"sync"
)

// TaskSet supervises fire-and-forget background tasks (the delivery
// pipelines). Every task gets the set's context; Stop cancels it and waits
// for all of them, so shutdown is deterministic instead of leaking
// goroutines mid-retry.
type TaskSet struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTaskSet creates an empty supervised set.
func NewTaskSet() *TaskSet {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskSet{ctx: ctx, cancel: cancel}
}

// Context returns the set's context, cancelled on Stop.
func (ts *TaskSet) Context() context.Context {
	return ts.ctx
}

// Go runs fn in a supervised goroutine. After Stop, fn is invoked with an
// already-cancelled context and is expected to return promptly.
func (ts *TaskSet) Go(fn func(ctx context.Context)) {
	ts.wg.Add(1)
	go func() {
		defer ts.wg.Done()
		fn(ts.ctx)
	}()
}

// Stop cancels the context and waits for every task to finish.
func (ts *TaskSet) Stop() {
	ts.cancel()
	ts.wg.Wait()
}
