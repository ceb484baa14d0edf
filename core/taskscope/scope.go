package taskscope

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is the handle for one forked unit of work.
type Task struct {
	done chan struct{}
	err  error
}

// Done is closed once the task has finished, failed, or been cancelled
// before execution.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's outcome. It is only meaningful after Done is
// closed; a context error means the task was shut down by a sibling failure.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Scope runs a batch of independent tasks and shuts the batch down on the
// first failure.
type Scope struct {
	group    *errgroup.Group
	ctx      context.Context
	sem      chan struct{}
	firstErr error
	joined   bool
}

// New creates a scope derived from ctx. The first task failure cancels the
// scope context for all siblings.
func New(ctx context.Context) *Scope {
	g, gctx := errgroup.WithContext(ctx)
	return &Scope{group: g, ctx: gctx}
}

// SetLimit bounds how many tasks run at once. Tasks beyond the limit are
// queued and re-check the scope context before running, so a failure cancels
// them before execution. Must be called before the first Fork.
func (s *Scope) SetLimit(n int) *Scope {
	if n > 0 {
		s.sem = make(chan struct{}, n)
	}
	return s
}

// Fork schedules task to run in the scope and returns its handle without
// waiting for a free slot. The task receives the scope context and must
// honour its cancellation.
func (s *Scope) Fork(task func(ctx context.Context) error) *Task {
	t := &Task{done: make(chan struct{})}
	s.group.Go(func() error {
		defer close(t.done)
		if s.sem != nil {
			// Queued behind the limit; a sibling failure releases the
			// task without running it.
			select {
			case s.sem <- struct{}{}:
				defer func() { <-s.sem }()
			case <-s.ctx.Done():
				t.err = s.ctx.Err()
				return t.err
			}
		}
		if err := s.ctx.Err(); err != nil {
			t.err = err
			return err
		}
		t.err = task(s.ctx)
		return t.err
	})
	return t
}

// Join blocks until every forked task has completed or been cancelled and
// returns the scope for chaining into FirstErr.
func (s *Scope) Join() *Scope {
	s.firstErr = s.group.Wait()
	s.joined = true
	return s
}

// FirstErr returns the first captured failure, or nil if every task
// succeeded. Only valid after Join; simultaneous failures resolve to exactly
// one winner.
func (s *Scope) FirstErr() error {
	if !s.joined {
		return nil
	}
	return s.firstErr
}
