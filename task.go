package agentflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Harness runs research queries in the background, one at a time.
type Harness struct {
	agent  *Agent
	logger *slog.Logger

	mu     sync.Mutex
	active *Task
}

func NewHarness(agent *Agent, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{agent: agent, logger: logger}
}

// Launch starts a task and returns immediately. ctx supplies values only;
// the task outlives it and stops only through Task.Cancel.
func (h *Harness) Launch(ctx context.Context, query, imagePath string, maxIterations int, sink ProgressFunc) (*Task, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxIterations < 1 {
		return nil, ErrInvalidMaxIterations
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active != nil && h.active.IsRunning() {
		return nil, ErrTaskRunning
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &Task{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
		relay:  newProgressRelay(sink, h.logger),
	}
	t.running.Store(true)
	h.active = t

	logger := h.logger.With("task", t.id)
	logger.Info("research task launched", "max_iterations", maxIterations)
	go t.run(runCtx, h.agent, Query{Text: query, ImagePath: imagePath, MaxIterations: maxIterations}, logger)
	return t, nil
}

// Active returns the most recently launched task, or nil.
func (h *Harness) Active() *Task {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Task is one background research run.
type Task struct {
	id     string
	cancel context.CancelFunc
	relay  *progressRelay
	done   chan struct{}

	running   atomic.Bool
	cancelled atomic.Bool

	mu      sync.Mutex
	result  *StructuredResult
	failure *StructuredResult
	err     error
	state   State
}

func (t *Task) ID() string { return t.id }

// IsRunning is a non-blocking liveness check.
func (t *Task) IsRunning() bool { return t.running.Load() }

// Done is closed once the task has finished and its progress is delivered.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel asks the loop to stop at its next check point and emits the final
// "Cancelled by user" progress event. Later progress is suppressed. Safe to
// call repeatedly and concurrently.
func (t *Task) Cancel() {
	if !t.IsRunning() || !t.cancelled.CompareAndSwap(false, true) {
		return
	}
	t.relay.final(progressAt("Cancelled by user", -1))
	t.cancel()
}

// Cancelled reports whether Cancel took effect.
func (t *Task) Cancelled() bool { return t.cancelled.Load() }

// Result is the extracted answer. It is absent while running, after a
// cancellation and after a failure.
func (t *Task) Result() (StructuredResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result == nil {
		return StructuredResult{}, false
	}
	return *t.result, true
}

// Failure is the topic "Error" result describing a failed run.
func (t *Task) Failure() (StructuredResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failure == nil {
		return StructuredResult{}, false
	}
	return *t.failure, true
}

// Err is the failure that ended the run, if any.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// State is the terminal loop state once the task is done.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) run(ctx context.Context, agent *Agent, q Query, logger *slog.Logger) {
	defer func() {
		t.relay.close()
		t.running.Store(false)
		close(t.done)
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("research task panicked", "panic", r)
			t.fail(fmt.Errorf("panic: %v", r))
		}
	}()

	outcome, err := agent.Run(ctx, q, t.relay.emit)
	switch {
	case t.cancelled.Load() || outcome.State == StateCancelled:
		t.mu.Lock()
		t.state = StateCancelled
		t.mu.Unlock()
		logger.Info("research task cancelled")
	case err != nil:
		t.fail(err)
	default:
		res := Extract(outcome.Text)
		t.mu.Lock()
		t.state = outcome.State
		t.result = &res
		t.mu.Unlock()
		logger.Info("research task finished", "state", outcome.State, "iterations", outcome.Iterations, "topic", res.Topic)
	}
}

func (t *Task) fail(err error) {
	failure := FailureResult(err.Error())
	t.mu.Lock()
	t.err = err
	t.failure = &failure
	t.result = nil
	t.mu.Unlock()
	if !t.cancelled.Load() {
		t.relay.emit(progressAt("Error: "+err.Error(), -1))
	}
}

// progressRelay delivers progress in order on its own goroutine so a slow
// or panicking sink never reaches the loop.
type progressRelay struct {
	sink   ProgressFunc
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Progress
	muted  bool
	closed bool
	done   chan struct{}
}

func newProgressRelay(sink ProgressFunc, logger *slog.Logger) *progressRelay {
	r := &progressRelay{sink: sink, logger: logger, done: make(chan struct{})}
	r.cond = sync.NewCond(&r.mu)
	if sink == nil {
		close(r.done)
		r.closed = true
		return r
	}
	go r.loop()
	return r
}

func (r *progressRelay) emit(p Progress) {
	r.push(p, false)
}

// final queues p and drops everything emitted after it.
func (r *progressRelay) final(p Progress) {
	r.push(p, true)
}

func (r *progressRelay) push(p Progress, mute bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.muted {
		return
	}
	r.queue = append(r.queue, p)
	r.muted = mute
	r.cond.Signal()
}

// close stops accepting progress and waits until the queue is delivered.
func (r *progressRelay) close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Signal()
	r.mu.Unlock()
	<-r.done
}

func (r *progressRelay) loop() {
	defer close(r.done)
	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		p := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		r.deliver(p)
	}
}

func (r *progressRelay) deliver(p Progress) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("progress sink panicked", "panic", rec)
		}
	}()
	r.sink(p)
}
