package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/rescale/dlxt/internal/constants"
)

// DownloadUI manages multiple concurrent download progress bars using mpb.
// Bars are keyed by the transfer index the download manager assigns.
type DownloadUI struct {
	out        io.Writer
	progress   *mpb.Progress
	bars       sync.Map // index -> *DownloadFileBar
	isTerminal bool
	totalFiles int32
	completed  int32
	failed     int32
}

// DownloadFileBar represents a single file download progress bar
type DownloadFileBar struct {
	bar        *mpb.Bar
	ui         *DownloadUI
	index      int
	name       string
	url        string
	total      atomic.Int64
	written    atomic.Int64
	startTime  time.Time
	mu         sync.Mutex
	lastUpdate time.Time
}

// NewDownloadUI creates a download UI drawing on out (os.Stderr when nil).
// Bars are only rendered when out is a terminal; otherwise one line per
// start and finish is printed.
func NewDownloadUI(out io.Writer) *DownloadUI {
	if out == nil {
		out = os.Stderr
	}
	isTerminal := IsTerminal(out)

	var p *mpb.Progress
	if isTerminal {
		if f, ok := out.(*os.File); ok {
			enableANSIOnWindows(f)
		}
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressRefreshRate),
			mpb.WithWidth(constants.ProgressBarWidth),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &DownloadUI{
		out:        out,
		progress:   p,
		isTerminal: isTerminal,
	}
}

// AddFileBar creates a new progress bar for a registered transfer. The size
// is learned later from the response.
func (u *DownloadUI) AddFileBar(index int, name, url string) *DownloadFileBar {
	total := atomic.AddInt32(&u.totalFiles, 1)

	fb := &DownloadFileBar{
		ui:         u,
		index:      index,
		name:       name,
		url:        url,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}
	fb.total.Store(-1)

	if u.isTerminal {
		fb.bar = u.progress.New(0,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Any(func(s decor.Statistics) string {
					return fmt.Sprintf("[%d/%d] %s", index+1, atomic.LoadInt32(&u.totalFiles), name)
				}, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Any(func(s decor.Statistics) string {
					if s.Total <= 0 {
						return "   --.-%"
					}
					return fmt.Sprintf("%6.2f%%", float64(s.Current)/float64(s.Total)*100)
				}, decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 60, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Downloading [%d/%d]: %s ← %s\n", index+1, total, name, url)
	}

	u.bars.Store(index, fb)
	return fb
}

// Bar returns the bar registered for index.
func (u *DownloadUI) Bar(index int) (*DownloadFileBar, bool) {
	v, ok := u.bars.Load(index)
	if !ok {
		return nil, false
	}
	return v.(*DownloadFileBar), true
}

// UpdateProgress forwards a transfer progress callback to the matching bar.
func (u *DownloadUI) UpdateProgress(index int, written, total int64) {
	if fb, ok := u.Bar(index); ok {
		fb.UpdateProgress(written, total)
	}
}

// Complete finishes the bar for index.
func (u *DownloadUI) Complete(index int, written int64, err error) {
	if fb, ok := u.Bar(index); ok {
		fb.Complete(written, err)
	}
}

// UpdateProgress records cumulative bytes. Rendering is throttled to the
// mpb refresh rate; EWMA speed gets the elapsed time of each step.
func (f *DownloadFileBar) UpdateProgress(written, total int64) {
	f.written.Store(written)
	if total > 0 && f.total.Swap(total) != total && f.bar != nil {
		f.bar.SetTotal(total, false)
	}
	if f.bar == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(f.lastUpdate)
	if elapsed >= constants.ProgressRefreshRate {
		f.bar.EwmaSetCurrent(written, elapsed)
		f.lastUpdate = now
	}
}

// Complete marks the download as finished and prints a summary.
func (f *DownloadFileBar) Complete(written int64, err error) {
	elapsed := time.Since(f.startTime)

	var msg string
	if err == nil {
		if f.bar != nil {
			f.bar.SetCurrent(written)
			f.bar.SetTotal(written, true)
		}
		var speed float64
		if secs := elapsed.Seconds(); secs > 0 {
			speed = float64(written) / secs
		}
		msg = fmt.Sprintf("✓ %s (%s, %s, %s/s)\n",
			f.name,
			humanize.IBytes(uint64(written)),
			elapsed.Round(time.Millisecond),
			humanize.IBytes(uint64(speed)))
	} else {
		if f.bar != nil {
			f.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s ← %s: %v\n", f.name, f.url, err)
		atomic.AddInt32(&f.ui.failed, 1)
	}

	_, _ = f.ui.LogWriter().Write([]byte(msg))
	atomic.AddInt32(&f.ui.completed, 1)
}

// Wait blocks until all progress bars complete
func (u *DownloadUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// LogWriter returns an io.Writer that safely prints above the progress bars.
// Pass it to logging.Logger.SetOutput while the UI is active.
func (u *DownloadUI) LogWriter() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return u.out
}

// Completed returns the number of finished downloads, successful or not.
func (u *DownloadUI) Completed() int {
	return int(atomic.LoadInt32(&u.completed))
}

// Failed returns the number of failed downloads.
func (u *DownloadUI) Failed() int {
	return int(atomic.LoadInt32(&u.failed))
}

// IsTerminal returns whether output is to a terminal
func (u *DownloadUI) IsTerminal() bool {
	return u.isTerminal
}
