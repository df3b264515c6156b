// Package progress prints a live status line while experiment runs poll
// the platform, which can take minutes per run.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Tracker counts run lifecycle events and periodically renders them to a
// terminal. It implements runner.Reporter.
type Tracker struct {
	total     int
	active    atomic.Int32
	finished  atomic.Int32
	passed    atomic.Int32
	startTime time.Time
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopped   atomic.Bool
	quiet     bool
	output    io.Writer
	mu        sync.Mutex
}

func NewTracker(total int, quiet bool) *Tracker {
	return &Tracker{
		total:  total,
		quiet:  quiet,
		output: os.Stderr,
	}
}

func (p *Tracker) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

// RunStarted implements runner.Reporter.
func (p *Tracker) RunStarted(string) {
	p.active.Add(1)
}

// RunFinished implements runner.Reporter.
func (p *Tracker) RunFinished(_ string, passed bool) {
	p.active.Add(-1)
	p.finished.Add(1)
	if passed {
		p.passed.Add(1)
	}
}

func (p *Tracker) Start() {
	if p.quiet {
		return
	}
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.ticker = time.NewTicker(1 * time.Second)
	go p.run()
}

func (p *Tracker) run() {
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ticker.C:
			p.printStatus()
		}
	}
}

func (p *Tracker) printStatus() {
	elapsed := time.Since(p.startTime).Round(time.Second)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60

	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K[%02d:%02d] Experiments: %d/%d done | %d running | %d passed\r",
		mins, secs, p.finished.Load(), p.total, p.active.Load(), p.passed.Load())
	p.mu.Unlock()
}

func (p *Tracker) Stop() {
	if p.quiet || p.stopped.Swap(true) {
		return
	}
	if p.ticker != nil {
		p.ticker.Stop()
	}
	if p.stopCh != nil {
		close(p.stopCh)
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K")
	p.mu.Unlock()
}

// Printf writes a line without disturbing the status display.
func (p *Tracker) Printf(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K"+format+"\n", args...)
	p.mu.Unlock()
}
