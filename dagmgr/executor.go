// Package dagmgr implements the DAG Manager: the ingress valve that
// runs every incoming block through a syntactic check, solidity
// gating via the orphan container, and dispatch into the right
// chain, plus flush scheduling into the block store. Per §4.7 and
// the concurrency model of §5, mutation is confined to three
// single-worker executor pools so that no additional locking is
// needed around chain state.
package dagmgr

import "context"

// task is one unit of work submitted to an Executor.
type task func()

// Executor is a single-worker pool backed by a bounded blocking
// queue of tasks, modeled as an actor with one goroutine draining a
// channel — the Go re-expression of the source's single-threaded
// executor pools (Design Notes §9).
type Executor struct {
	tasks chan task
	done  chan struct{}
}

// NewExecutor starts an Executor with the given task queue depth.
func NewExecutor(queueDepth int) *Executor {
	e := &Executor{
		tasks: make(chan task, queueDepth),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Executor) run() {
	for t := range e.tasks {
		t()
	}
	close(e.done)
}

// Submit enqueues fn to run on the executor's worker goroutine. It
// blocks if the queue is full, providing the back-pressure the
// ingress path relies on.
func (e *Executor) Submit(fn func()) {
	e.tasks <- fn
}

// SubmitCtx enqueues fn unless ctx is cancelled first.
func (e *Executor) SubmitCtx(ctx context.Context, fn func()) error {
	select {
	case e.tasks <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown closes the task queue; in-flight and already-queued tasks
// drain before the worker exits. It blocks until the worker has
// exited.
func (e *Executor) Shutdown() {
	close(e.tasks)
	<-e.done
}
