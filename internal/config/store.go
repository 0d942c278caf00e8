package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"go.klb.dev/clipshrink/internal/pipeline"
)

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("invalid setting value")
)

type field struct {
	parse func(string) (any, error)
	get   func(Transcode) string
}

var fields = map[string]field{
	"max_width": {
		parse: positiveFloat,
		get:   func(t Transcode) string { return formatFloat(t.MaxWidth) },
	},
	"use_custom_height": {
		parse: parseBool,
		get:   func(t Transcode) string { return strconv.FormatBool(t.UseCustomHeight) },
	},
	"max_height": {
		parse: positiveFloat,
		get:   func(t Transcode) string { return formatFloat(t.MaxHeight) },
	},
	"output_format": {
		parse: func(s string) (any, error) {
			f, err := pipeline.ParseFormat(s)
			if err != nil {
				return nil, err
			}
			return string(f), nil
		},
		get: func(t Transcode) string { return t.OutputFormat.String() },
	},
	"quality": {
		parse: func(s string) (any, error) {
			q, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, err
			}
			if !(q >= 0 && q <= 1) {
				return nil, fmt.Errorf("%v is outside [0,1]", q)
			}
			return q, nil
		},
		get: func(t Transcode) string { return formatFloat(t.Quality) },
	},
	"strip_metadata": {
		parse: parseBool,
		get:   func(t Transcode) string { return strconv.FormatBool(t.StripMetadata) },
	},
	"auto_shrink": {
		parse: parseBool,
		get:   func(t Transcode) string { return strconv.FormatBool(t.AutoShrink) },
	},
}

var keys = []string{
	"max_width",
	"use_custom_height",
	"max_height",
	"output_format",
	"quality",
	"strip_metadata",
	"auto_shrink",
}

// reloadDelay coalesces the burst of events a single save produces.
const reloadDelay = 100 * time.Millisecond

// Store is the settings file. Reads return snapshots; Set validates, writes
// the file and updates the snapshot. All access to the viper instance is
// under mu, including reloads triggered by Watch.
type Store struct {
	path string

	mu      sync.Mutex
	v       *viper.Viper
	cur     Transcode
	watcher *fsnotify.Watcher
}

// DefaultPath returns settings.toml under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "clipshrink", "settings.toml"), nil
}

// Open loads the settings at path. A missing file yields defaults; it is
// created on the first Set.
func Open(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	def := Default()
	v.SetDefault("max_width", def.MaxWidth)
	v.SetDefault("use_custom_height", def.UseCustomHeight)
	v.SetDefault("max_height", def.MaxHeight)
	v.SetDefault("output_format", string(def.OutputFormat))
	v.SetDefault("quality", def.Quality)
	v.SetDefault("strip_metadata", def.StripMetadata)
	v.SetDefault("auto_shrink", def.AutoShrink)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("settings %s: %w", path, err)
		}
	}

	s := &Store{path: path, v: v}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Keys lists the setting names in display order.
func (s *Store) Keys() []string { return append([]string(nil), keys...) }

// Snapshot returns the current settings.
func (s *Store) Snapshot() Transcode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Get renders one setting as text.
func (s *Store) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return f.get(s.Snapshot()), nil
}

// Set parses value for key, persists it and returns the new snapshot.
func (s *Store) Set(key, value string) (Transcode, error) {
	f, ok := fields[key]
	if !ok {
		return Transcode{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	parsed, err := f.parse(value)
	if err != nil {
		return Transcode{}, fmt.Errorf("%w: %s=%q: %v", ErrInvalidValue, key, value, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Merged into the file layer rather than v.Set so a later external
	// edit is not shadowed by an override.
	if err := s.v.MergeConfigMap(map[string]any{key: parsed}); err != nil {
		return Transcode{}, fmt.Errorf("merge setting: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Transcode{}, fmt.Errorf("settings dir: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return Transcode{}, fmt.Errorf("write settings: %w", err)
	}
	if err := s.reloadLocked(); err != nil {
		return Transcode{}, err
	}
	slog.Debug("setting updated", "key", key, "value", parsed, "path", s.path)
	return s.cur, nil
}

// Watch calls fn with a fresh snapshot whenever the file is changed on disk
// by someone else. Writes made through Set do not call fn. The file need
// not exist yet, but its directory is created so there is something to
// watch. A file that fails to parse leaves the previous settings in place.
func (s *Store) Watch(fn func(Transcode)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		slog.Warn("settings already watched", "path", s.path)
		return
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("settings dir unavailable, not watching", "path", s.path, "err", err)
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("settings watcher unavailable", "err", err)
		return
	}
	// The directory, not the file: editors that save by rename would
	// otherwise detach the watch.
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		slog.Warn("settings dir not watchable", "dir", dir, "err", err)
		return
	}
	s.watcher = w
	go s.watchLoop(w, fn)
}

// Close stops a running Watch. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}

func (s *Store) watchLoop(w *fsnotify.Watcher, fn func(Transcode)) {
	name := filepath.Clean(s.path)

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending == nil {
				pending = time.AfterFunc(reloadDelay, func() { s.reloadFromDisk(w, fn) })
			} else {
				pending.Reset(reloadDelay)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Warn("settings watcher error", "path", s.path, "err", err)
		}
	}
}

func (s *Store) reloadFromDisk(w *fsnotify.Watcher, fn func(Transcode)) {
	s.mu.Lock()
	if s.watcher != w {
		s.mu.Unlock()
		return
	}
	prev := s.cur
	if err := s.v.ReadInConfig(); err != nil {
		s.mu.Unlock()
		slog.Warn("settings reload failed, keeping previous", "path", s.path, "err", err)
		return
	}
	if err := s.reloadLocked(); err != nil {
		s.mu.Unlock()
		slog.Warn("settings reload failed, keeping previous", "path", s.path, "err", err)
		return
	}
	cur := s.cur
	s.mu.Unlock()

	if cur == prev {
		return
	}
	slog.Info("settings reloaded", "path", s.path)
	fn(cur)
}

func (s *Store) reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

func (s *Store) reloadLocked() error {
	var t Transcode
	if err := s.v.Unmarshal(&t); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	s.cur = t.Normalize()
	return nil
}

func positiveFloat(s string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, err
	}
	if !(f > 0) {
		return nil, fmt.Errorf("%v must be positive", f)
	}
	return f, nil
}

func parseBool(s string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
