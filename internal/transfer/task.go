package transfer

import (
	"io"
	"sync"
	"time"
)

// TaskState represents the current state of a transfer task.
type TaskState string

const (
	TaskQueued    TaskState = "queued"    // Registered, waiting for a parallelism slot
	TaskActive    TaskState = "active"    // Request issued, bytes may be moving
	TaskCompleted TaskState = "completed" // Body fully written to the sink
	TaskFailed    TaskState = "failed"    // Failed with error
)

// Task is a single registered transfer. Thread-safe: use the provided methods
// to read or update state.
type Task struct {
	Token Token
	URL   string

	sink io.Writer

	// State tracking
	state   TaskState
	written int64
	total   int64   // Content-Length, -1 when unknown
	speed   float64 // bytes/sec (smoothed with EMA)
	status  int
	err     error

	// Speed calculation internals (for EMA smoothing)
	lastBytes      int64
	lastUpdateTime time.Time

	// Timestamps
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	mu sync.RWMutex
}

func newTask(token Token, url string, sink io.Writer) *Task {
	return &Task{
		Token:     token,
		URL:       url,
		sink:      sink,
		state:     TaskQueued,
		total:     -1,
		CreatedAt: time.Now(),
	}
}

// State returns the current state (thread-safe).
func (t *Task) State() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// SetState updates the task state (thread-safe).
func (t *Task) SetState(state TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	if state == TaskActive && t.StartedAt.IsZero() {
		t.StartedAt = time.Now()
	}
	if state == TaskCompleted || state == TaskFailed {
		t.CompletedAt = time.Now()
	}
}

// SetTotal records the expected body size once response headers arrive.
func (t *Task) SetTotal(total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
}

// UpdateProgress records bytes written so far and recalculates speed using EMA.
func (t *Task) UpdateProgress(written int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.written = written

	// Reset start time on first real progress
	if t.lastBytes == 0 && written > 0 {
		t.lastUpdateTime = now
		t.lastBytes = written
		t.speed = 0
		return
	}

	if t.lastBytes > 0 && written > t.lastBytes {
		elapsed := now.Sub(t.lastUpdateTime).Seconds()
		if elapsed > 0.1 { // Need at least 100ms between updates for meaningful rate
			instantRate := float64(written-t.lastBytes) / elapsed

			// EMA smoothing (alpha=0.25): 25% weight to new value, 75% to previous
			const speedSmoothingAlpha = 0.25
			if t.speed > 0 {
				t.speed = speedSmoothingAlpha*instantRate + (1-speedSmoothingAlpha)*t.speed
			} else {
				t.speed = instantRate
			}

			t.lastBytes = written
			t.lastUpdateTime = now
		}
	}
}

// progress returns bytes written and the expected total (-1 if unknown).
func (t *Task) progress() (written, total int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.written, t.total
}

// Complete marks the task completed with the final byte count and status.
func (t *Task) Complete(written int64, status int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written = written
	t.status = status
	t.state = TaskCompleted
	t.CompletedAt = time.Now()
}

// Fail sets the error and changes state to TaskFailed (thread-safe).
func (t *Task) Fail(err error, status int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
	t.status = status
	t.state = TaskFailed
	t.CompletedAt = time.Now()
}

// isTerminal reports whether the task is completed or failed.
func (t *Task) isTerminal() bool {
	state := t.State()
	return state == TaskCompleted || state == TaskFailed
}

// message builds the completion record for a terminal task.
func (t *Task) message() Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var elapsed time.Duration
	if !t.StartedAt.IsZero() {
		elapsed = t.CompletedAt.Sub(t.StartedAt)
	}
	return Message{
		Token:   t.Token,
		Err:     t.err,
		Bytes:   t.written,
		Status:  t.status,
		Elapsed: elapsed,
		Speed:   t.speed,
	}
}
