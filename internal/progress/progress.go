// Package progress renders transfer and extraction progress on the terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Reporter receives byte counts for one operation at a time. Start begins
// an operation; Finish or Error ends it.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
}

const (
	barWidth    = 40
	barThrottle = 100 * time.Millisecond
)

// CLIProgress draws one bar per operation, numbering them in start order.
type CLIProgress struct {
	out   io.Writer
	bar   *progressbar.ProgressBar
	count int
}

// NewCLIProgress creates a reporter that draws on out (os.Stderr when nil).
func NewCLIProgress(out io.Writer) *CLIProgress {
	if out == nil {
		out = os.Stderr
	}
	return &CLIProgress{out: out}
}

// Start abandons any bar still open and begins a new one.
func (p *CLIProgress) Start(total int64, description string) {
	if p.bar != nil {
		_ = p.bar.Exit()
	}
	p.count++

	out := p.out
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(fmt.Sprintf("[%d] %s", p.count, description)),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(barWidth),
		progressbar.OptionThrottle(barThrottle),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

// Error abandons the bar and prints err below it.
func (p *CLIProgress) Error(err error) {
	if p.bar != nil {
		_ = p.bar.Exit()
		p.bar = nil
	}
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// NoOpProgress implements Reporter and does nothing.
type NoOpProgress struct{}

func (NoOpProgress) Start(int64, string) {}
func (NoOpProgress) Update(int64)        {}
func (NoOpProgress) Finish()             {}
func (NoOpProgress) Error(error)         {}

// OrNoOp returns r, or a NoOpProgress when r is nil.
func OrNoOp(r Reporter) Reporter {
	if r == nil {
		return NoOpProgress{}
	}
	return r
}

// ProgressReader reports the running total of bytes read through it.
type ProgressReader struct {
	reader   io.Reader
	reporter Reporter
	current  int64
}

// NewProgressReader wraps reader. A nil reporter discards updates.
func NewProgressReader(reader io.Reader, reporter Reporter) *ProgressReader {
	return &ProgressReader{reader: reader, reporter: OrNoOp(reporter)}
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		pr.reporter.Update(pr.current)
	}
	return n, err
}

// Total returns the bytes read so far.
func (pr *ProgressReader) Total() int64 {
	return pr.current
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
