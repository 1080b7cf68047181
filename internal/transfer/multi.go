package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rescale/dlxt/internal/constants"
	"github.com/rescale/dlxt/internal/logging"
	"github.com/rescale/dlxt/internal/util/buffers"
)

// Client issues a single HTTP request. *retryablehttp.Client satisfies it.
type Client interface {
	Do(req *retryablehttp.Request) (*nethttp.Response, error)
}

// ProgressFunc is called as body bytes are written. total is the
// Content-Length, or -1 when the server did not send one.
type ProgressFunc func(token Token, written, total int64)

// Options configures a Multi.
type Options struct {
	// MaxParallel caps concurrently running transfers (default 3).
	MaxParallel int

	// PollInterval bounds how long Perform waits for a completion (default 100ms).
	PollInterval time.Duration

	// UserAgent is sent with every request when non-empty.
	UserAgent string

	OnProgress ProgressFunc
	Logger     *logging.Logger
}

// Stats holds counts of tasks by state.
type Stats struct {
	Queued    int
	Active    int
	Completed int
	Failed    int
}

// Total returns the number of registered tasks.
func (s Stats) Total() int {
	return s.Queued + s.Active + s.Completed + s.Failed
}

// Multi is the HTTP Engine. Create one per batch; it holds no global state.
type Multi struct {
	client Client
	opts   Options
	logger *logging.Logger

	mu          sync.Mutex
	tasks       map[Token]*Task
	queued      []*Task
	running     int
	completions []Message

	wake chan struct{}
	wg   sync.WaitGroup
}

var _ Engine = (*Multi)(nil)

// NewMulti creates an engine that issues requests through client.
func NewMulti(client Client, opts Options) *Multi {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = constants.DefaultParallel
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = constants.EnginePollInterval
	}
	return &Multi{
		client: client,
		opts:   opts,
		logger: logging.OrNop(opts.Logger),
		tasks:  make(map[Token]*Task),
		wake:   make(chan struct{}, 1),
	}
}

// Add registers a transfer for url writing into sink.
func (m *Multi) Add(url string, sink io.Writer, token Token) error {
	if sink == nil {
		return fmt.Errorf("transfer %d: nil sink", token)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[token]; exists {
		return fmt.Errorf("transfer %d: token already registered", token)
	}
	task := newTask(token, url, sink)
	m.tasks[token] = task
	m.queued = append(m.queued, task)
	return nil
}

// Perform starts queued transfers up to MaxParallel and waits up to the poll
// interval for a completion. If ctx is cancelled, transfers that never started
// are failed with the context error, running ones are waited for, and the
// context error is returned.
func (m *Multi) Perform(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return m.abort(err), err
	}

	m.mu.Lock()
	for m.running < m.opts.MaxParallel && len(m.queued) > 0 {
		task := m.queued[0]
		m.queued[0] = nil
		m.queued = m.queued[1:]
		m.running++
		task.SetState(TaskActive)
		m.wg.Add(1)
		go m.run(ctx, task)
	}
	active := m.running + len(m.queued)
	pending := len(m.completions)
	m.mu.Unlock()

	if active == 0 || pending > 0 {
		return active, nil
	}

	timer := time.NewTimer(m.opts.PollInterval)
	defer timer.Stop()

	select {
	case <-m.wake:
	case <-timer.C:
	case <-ctx.Done():
		return m.abort(ctx.Err()), ctx.Err()
	}
	return m.Active(), nil
}

// Messages drains recorded completions in completion order.
func (m *Multi) Messages(fn func(Message)) {
	m.mu.Lock()
	drained := m.completions
	m.completions = nil
	m.mu.Unlock()

	for _, msg := range drained {
		fn(msg)
	}
}

// Active returns the number of transfers queued or running.
func (m *Multi) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running + len(m.queued)
}

// Stats returns task counts by state.
func (m *Multi) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s Stats
	for _, task := range m.tasks {
		switch task.State() {
		case TaskQueued:
			s.Queued++
		case TaskActive:
			s.Active++
		case TaskCompleted:
			s.Completed++
		case TaskFailed:
			s.Failed++
		}
	}
	return s
}

// abort fails every queued task with err and waits for running ones.
func (m *Multi) abort(err error) int {
	m.mu.Lock()
	for _, task := range m.queued {
		task.Fail(err, 0)
		m.completions = append(m.completions, task.message())
	}
	m.queued = nil
	m.mu.Unlock()

	m.wg.Wait()
	return m.Active()
}

func (m *Multi) run(ctx context.Context, task *Task) {
	defer m.wg.Done()

	n, status, err := m.fetch(ctx, task)
	if err != nil {
		task.Fail(err, status)
	} else {
		task.Complete(n, status)
	}

	m.mu.Lock()
	m.running--
	m.completions = append(m.completions, task.message())
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Multi) fetch(ctx context.Context, task *Task) (int64, int, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet, task.URL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if m.opts.UserAgent != "" {
		req.Header.Set("User-Agent", m.opts.UserAgent)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, resp.StatusCode, &StatusError{
			URL:        task.URL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	task.SetTotal(resp.ContentLength)
	w := &progressWriter{
		w:     task.sink,
		task:  task,
		total: resp.ContentLength,
		fn:    m.opts.OnProgress,
	}

	n, err := buffers.Copy(w, resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return n, resp.StatusCode, fmt.Errorf("failed to read body of %s: %w", task.URL, err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, resp.StatusCode, fmt.Errorf("short body for %s: got %d of %d bytes: %w",
			task.URL, n, resp.ContentLength, io.ErrUnexpectedEOF)
	}

	m.logger.Debug().Int("token", int(task.Token)).Int64("bytes", n).Msg("Transfer finished")
	return n, resp.StatusCode, nil
}

// progressWriter forwards writes to the sink and reports cumulative bytes.
type progressWriter struct {
	w       io.Writer
	task    *Task
	total   int64
	written int64
	fn      ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	p.task.UpdateProgress(p.written)
	if p.fn != nil {
		p.fn(p.task.Token, p.written, p.total)
	}
	return n, err
}
