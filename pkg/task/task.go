// Package task gives a long-running background loop (the scheduler's
// periodic forwarder cycle) an idempotent start/stop lifecycle: a
// second Start is a no-op while the task is running, and Stop blocks
// until the loop has actually returned or a timeout elapses.
//
// Grounded on the teacher's pkg/task_manager/task_manager.go: the
// per-task state/cancel-context/Done-channel shape is kept, trimmed
// down from a registry of many named tasks (with heartbeat tracking
// and failure-state bookkeeping) to the single named task the
// scheduler needs.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is a Task's current lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateFailed  State = "failed"
)

// Task runs fn in a goroutine between Start and Stop calls.
type Task struct {
	name   string
	logger *logrus.Logger

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	lastError error
}

// New builds a Task identified by name, used only in log fields.
func New(name string, logger *logrus.Logger) *Task {
	return &Task{name: name, logger: logger, state: StateIdle}
}

// Start launches fn(ctx) in a goroutine, running until fn returns or
// Stop cancels ctx. Calling Start while already running is a no-op,
// matching the restartable-task shape the teacher's scheduler-style
// goroutines use.
func (t *Task) Start(parent context.Context, fn func(context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateRunning {
		return nil
	}

	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.state = StateRunning
	t.startedAt = time.Now().UTC()

	done := t.done
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				t.mu.Lock()
				t.state = StateFailed
				t.lastError = fmt.Errorf("task %s panicked: %v", t.name, r)
				t.mu.Unlock()
				t.logger.WithField("task", t.name).WithField("panic", r).Error("task: goroutine panicked")
			}
		}()

		err := fn(ctx)

		t.mu.Lock()
		defer t.mu.Unlock()
		if t.state != StateRunning {
			return
		}
		if err != nil {
			t.state = StateFailed
			t.lastError = err
			t.logger.WithField("task", t.name).WithError(err).Error("task: exited with error")
			return
		}
		t.state = StateStopped
	}()

	t.logger.WithField("task", t.name).Info("task: started")
	return nil
}

// Stop cancels the running task's context and waits up to timeout for
// its goroutine to exit. Stopping an idle or already-stopped task is
// a no-op.
func (t *Task) Stop(timeout time.Duration) error {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return nil
	}
	cancel := t.cancel
	done := t.done
	t.mu.Unlock()

	cancel()

	select {
	case <-done:
		t.mu.Lock()
		t.state = StateStopped
		t.mu.Unlock()
		return nil
	case <-time.After(timeout):
		t.mu.Lock()
		t.state = StateFailed
		t.lastError = fmt.Errorf("task %s: stop timed out after %s", t.name, timeout)
		t.mu.Unlock()
		return t.lastError
	}
}

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
