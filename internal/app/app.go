// Package app is the composition root of the daemon: it owns the single
// shrinker and clipboard monitor and keeps them in step with the settings.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.klb.dev/clipshrink/internal/clip"
	"go.klb.dev/clipshrink/internal/config"
	"go.klb.dev/clipshrink/internal/message"
	"go.klb.dev/clipshrink/internal/monitor"
	"go.klb.dev/clipshrink/internal/notify"
	"go.klb.dev/clipshrink/internal/pipeline"
	"go.klb.dev/clipshrink/internal/shrinker"
)

type Options struct {
	Version string
	// Sink receives notifications in addition to the status recorder.
	Sink    notify.Sink
	Monitor []monitor.Option
}

type App struct {
	ctx      context.Context
	store    clip.Store
	settings *config.Store
	shrinker *shrinker.Shrinker
	monitor  *monitor.Monitor
	last     *notify.Recorder
	version  string
	started  time.Time

	// mu orders Apply calls from the CLI and the settings watcher.
	mu     sync.Mutex
	closed bool
}

// New wires the components. Nothing runs until Start.
func New(ctx context.Context, store clip.Store, settings *config.Store, opts Options) *App {
	last := &notify.Recorder{Limit: 1}
	sinks := notify.Multi{last}
	if opts.Sink != nil {
		sinks = append(sinks, opts.Sink)
	}

	a := &App{
		ctx:      ctx,
		store:    store,
		settings: settings,
		last:     last,
		version:  opts.Version,
		started:  time.Now(),
	}
	a.monitor = monitor.New(store, func(ctx context.Context) {
		_, _ = a.shrinker.Run(ctx)
	}, opts.Monitor...)
	// Every write, manual or automatic, is adopted by the monitor before
	// the shrinker lets go of the clipboard.
	a.shrinker = shrinker.New(store, settings, sinks, shrinker.WithAfterWrite(a.monitor.Rebaseline))
	return a
}

// Start applies the current settings and follows later edits of the
// settings file.
func (a *App) Start() {
	a.Apply(a.settings.Snapshot())
	a.settings.Watch(a.Apply)
}

// Apply brings the monitor in line with cfg: watching when auto-shrink is
// on, stopped otherwise. The shrinker reads its own snapshot per run.
func (a *App) Apply(cfg config.Transcode) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	if cfg.AutoShrink {
		a.monitor.Start(a.ctx)
	} else {
		a.monitor.Stop()
	}
}

// UpdateConfig persists one setting and applies the result immediately.
func (a *App) UpdateConfig(key, value string) error {
	snap, err := a.settings.Set(key, value)
	if err != nil {
		return err
	}
	slog.Info("setting changed", "key", key, "value", value)
	a.Apply(snap)
	return nil
}

// ShrinkNow runs a manual shrink. The monitor never sees the result as a
// new copy, and a debounced shrink queued for the replaced image is dropped.
func (a *App) ShrinkNow(ctx context.Context) (pipeline.Result, error) {
	return a.shrinker.Run(ctx)
}

func (a *App) MonitorState() monitor.State { return a.monitor.State() }

func (a *App) MetricsHandler() http.Handler { return a.shrinker.MetricsHandler() }

func (a *App) Settings() []message.Setting {
	keys := a.settings.Keys()
	out := make([]message.Setting, 0, len(keys))
	for _, k := range keys {
		v, err := a.settings.Get(k)
		if err != nil {
			continue
		}
		out = append(out, message.Setting{Key: k, Value: v})
	}
	return out
}

func (a *App) Setting(key string) (string, error) { return a.settings.Get(key) }

func (a *App) Status() message.Status {
	st := a.shrinker.Stats()
	s := message.Status{
		Version:      a.version,
		StartedAt:    a.started,
		Backend:      a.store.Name(),
		MonitorState: a.monitor.State().String(),
		Baseline:     a.monitor.Baseline(),
		ChangeCount:  a.store.ChangeCount(),
		HEIC:         pipeline.HEICAvailable(),
		SettingsPath: a.settings.Path(),
		Settings:     a.Settings(),
		Attempts:     st.Attempts,
		Shrunk:       st.Shrunk,
		Failed:       st.Failed,
		BytesSaved:   st.BytesSaved,
	}
	if n, ok := a.last.Last(); ok {
		s.LastNotification = &message.Notification{Title: n.Title, Body: n.Body}
	}
	return s
}

// Close stops the settings watch and the monitor. Later Apply calls are
// ignored.
func (a *App) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	_ = a.settings.Close()
	a.monitor.Stop()
	a.store.Close()
}
