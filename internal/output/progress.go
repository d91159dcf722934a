package output

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Progress redraws a one-line sweep status on a terminal.
type Progress struct {
	w         io.Writer
	total     int
	completed atomic.Int64
	succeeded atomic.Int64
	faults    atomic.Int64
	start     time.Time
	done      chan struct{}
	stopOnce  sync.Once
	enabled   bool
}

// NewProgress creates a progress tracker. A disabled tracker still counts
// but never draws.
func NewProgress(w io.Writer, total int, enabled bool) *Progress {
	return &Progress{
		w:       w,
		total:   total,
		start:   time.Now(),
		done:    make(chan struct{}),
		enabled: enabled,
	}
}

// Start begins periodic redraws.
func (p *Progress) Start() {
	if !p.enabled {
		return
	}
	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.print()
			case <-p.done:
				return
			}
		}
	}()
}

// Record counts one finished probe.
func (p *Progress) Record(success, fault bool) {
	p.completed.Add(1)
	if success {
		p.succeeded.Add(1)
	}
	if fault {
		p.faults.Add(1)
	}
}

// Completed returns the number of recorded probes.
func (p *Progress) Completed() int { return int(p.completed.Load()) }

// ClearLine erases the status line so a result can be printed.
func (p *Progress) ClearLine() {
	if p.enabled {
		fmt.Fprint(p.w, "\r\033[K")
	}
}

// Stop ends the display and leaves the final counts on screen.
func (p *Progress) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		if p.enabled {
			p.print()
			fmt.Fprintln(p.w)
		}
	})
}

func (p *Progress) print() {
	completed := p.completed.Load()
	pct := float64(0)
	if p.total > 0 {
		pct = float64(completed) / float64(p.total) * 100
	}
	fmt.Fprintf(p.w, "\r\033[K[%3.0f%%] %d/%d | OK: %d | Faults: %d | %s",
		pct, completed, p.total, p.succeeded.Load(), p.faults.Load(),
		time.Since(p.start).Round(time.Second))
}
