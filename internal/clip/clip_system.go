//go:build linux || windows

package clip

import (
	"bytes"
	"log/slog"
	"sync"

	"golang.design/x/clipboard"

	"go.klb.dev/clipshrink/internal/pipeline"
)

// systemStore wraps golang.design/x/clipboard. The library exposes no change
// counter, so one is derived by comparing contents on each query and bumped
// directly when this process writes.
type systemStore struct {
	mu       sync.Mutex
	count    int64
	lastText []byte
	lastImg  []byte
}

// New returns the system clipboard store, or an in-memory headless store if
// the display environment is unavailable (e.g. a server without X11 or
// Wayland). clipboard.Init is called here rather than in init() so that CLI
// sub-commands that never touch the clipboard don't trigger the warning.
func New() Store {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return newHeadless()
	}
	s := &systemStore{
		lastText: clipboard.Read(clipboard.FmtText),
		lastImg:  clipboard.Read(clipboard.FmtImage),
	}
	return s
}

func (s *systemStore) Name() string { return "system clipboard (x/clipboard)" }

func (s *systemStore) ChangeCount() int64 {
	text := clipboard.Read(clipboard.FmtText)
	img := clipboard.Read(clipboard.FmtImage)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !bytes.Equal(text, s.lastText) || !bytes.Equal(img, s.lastImg) {
		s.lastText = text
		s.lastImg = img
		s.count++
	}
	return s.count
}

func (s *systemStore) Image() (Image, bool, error) {
	img := clipboard.Read(clipboard.FmtImage)
	if len(img) == 0 {
		return Image{}, false, nil
	}
	return Image{Data: img, Type: pipeline.MIMEPNG}, true, nil
}

func (s *systemStore) Types() []string {
	var types []string
	if img := clipboard.Read(clipboard.FmtImage); len(img) > 0 {
		types = append(types, pipeline.MIMEPNG)
	}
	if text := clipboard.Read(clipboard.FmtText); len(text) > 0 {
		types = append(types, "text/plain")
	}
	return types
}

// Clear is a no-op: taking clipboard ownership in SetPrimary replaces every
// representation at once.
func (s *systemStore) Clear() error { return nil }

func (s *systemStore) SetPrimary(data []byte, typ string) error {
	if typ != pipeline.MIMEPNG {
		return ErrUnsupportedType
	}
	clipboard.Write(clipboard.FmtImage, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastText = nil
	s.lastImg = bytes.Clone(data)
	s.count++
	return nil
}

// SetFallback only accepts PNG, which is also the only primary type, so
// clip.Replace never reaches it in practice.
func (s *systemStore) SetFallback(data []byte, typ string) error {
	return s.SetPrimary(data, typ)
}

func (s *systemStore) FallbackType() string { return pipeline.MIMEPNG }

func (s *systemStore) Close() {}
