// Package monitor polls the clipboard change counter and, after a short
// settling delay, runs the shrink job for newly copied images.
package monitor

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.klb.dev/clipshrink/internal/clip"
)

const (
	DefaultInterval = time.Second
	DefaultDebounce = 300 * time.Millisecond
)

type State int

const (
	Stopped State = iota
	Watching
)

func (s State) String() string {
	switch s {
	case Watching:
		return "watching"
	default:
		return "stopped"
	}
}

// Source is the part of clip.Store the monitor needs.
type Source interface {
	ChangeCount() int64
	Types() []string
}

// Job is the work run after a change settles.
type Job func(ctx context.Context)

type Option func(*Monitor)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithDebounce sets the delay between a detected change and the job.
func WithDebounce(d time.Duration) Option {
	return func(m *Monitor) {
		if d >= 0 {
			m.debounce = d
		}
	}
}

// Monitor is a two-state machine. While Watching, a single goroutine owns
// the ticker and the debounce timer; ticks and jobs never overlap.
type Monitor struct {
	src      Source
	job      Job
	interval time.Duration
	debounce time.Duration

	mu       sync.Mutex
	state    State
	baseline int64
	epoch    uint64 // bumped by Rebaseline
	stop     chan struct{}
	done     chan struct{}
}

func New(src Source, job Job, opts ...Option) *Monitor {
	m := &Monitor{
		src:      src,
		job:      job,
		interval: DefaultInterval,
		debounce: DefaultDebounce,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start captures the current change count as the baseline and begins
// polling. Jobs receive ctx without its cancellation so a job in flight
// is never cut short. Starting a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Watching {
		return
	}
	m.baseline = m.src.ChangeCount()
	m.state = Watching
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go m.loop(context.WithoutCancel(ctx), m.stop, m.done)
	slog.Info("clipboard monitor started",
		"interval", m.interval,
		"debounce", m.debounce,
		"baseline", m.baseline,
	)
}

// Stop cancels the ticker and any pending job, then waits for the loop to
// exit. A job that is already running completes first.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state == Stopped {
		m.mu.Unlock()
		return
	}
	m.state = Stopped
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done
	slog.Info("clipboard monitor stopped")
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) Baseline() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseline
}

// Rebaseline adopts the current change count, so a write this process just
// made is not seen as a new copy. A job still waiting out its debounce is
// dropped: the content it was scheduled for has been replaced.
func (m *Monitor) Rebaseline() {
	cc := m.src.ChangeCount()
	m.mu.Lock()
	m.baseline = cc
	m.epoch++
	m.mu.Unlock()
}

func (m *Monitor) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

func (m *Monitor) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var (
		pending *time.Timer
		fire    <-chan time.Time
		epoch   uint64
	)
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			changed, image := m.poll()
			if !changed {
				continue
			}
			// The newest change decides: it replaces any pending job, and a
			// copy without an image drops it.
			if pending != nil {
				pending.Stop()
				pending, fire = nil, nil
			}
			if image {
				pending = time.NewTimer(m.debounce)
				fire = pending.C
				epoch = m.currentEpoch()
			}
		case <-fire:
			fire = nil
			if m.currentEpoch() != epoch {
				slog.Debug("pending shrink dropped, clipboard rewritten")
				continue
			}
			m.run(ctx)
		}
	}
}

// poll adopts a new change count and reports whether the clipboard
// changed and whether it now holds an image.
func (m *Monitor) poll() (changed, image bool) {
	cc := m.src.ChangeCount()

	m.mu.Lock()
	if cc == m.baseline {
		m.mu.Unlock()
		return false, false
	}
	m.baseline = cc
	m.mu.Unlock()

	if !clip.HasImage(m.src.Types()) {
		slog.Debug("clipboard changed, no image", "change_count", cc)
		return true, false
	}
	slog.Debug("clipboard image detected", "change_count", cc)
	return true, true
}

func (m *Monitor) run(ctx context.Context) {
	defer m.Rebaseline()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("shrink job panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	m.job(ctx)
}
