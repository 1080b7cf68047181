// Package transfer runs HTTP transfers with a bounded number in flight.
//
// The Engine contract is pull-based: callers register transfers with Add,
// drive them with Perform, and collect completions with Messages. Nothing is
// delivered through callbacks from transfer goroutines.
package transfer

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Token correlates a registered transfer with its completion message.
type Token int

// Message reports one finished transfer. Err is nil on success.
type Message struct {
	Token   Token
	Err     error
	Bytes   int64
	Status  int
	Elapsed time.Duration
	// Speed is the smoothed transfer rate in bytes/sec at completion.
	Speed float64
}

// Engine schedules transfers into caller-owned sinks.
type Engine interface {
	// Add registers a transfer. It does not start network I/O.
	Add(url string, sink io.Writer, token Token) error

	// Perform starts queued transfers while slots are free, then waits up to
	// a short poll interval for progress. It returns the number of transfers
	// still queued or running.
	Perform(ctx context.Context) (active int, err error)

	// Messages drains every completion recorded so far, in completion order.
	// It never blocks.
	Messages(fn func(Message))
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// HTTPStatus exposes the code for error classification.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}
