package clip

import (
	"slices"
	"sync"

	"go.klb.dev/clipshrink/internal/pipeline"
)

// Memory is an in-process clipboard. Like NSPasteboard, Clear advances the
// change counter and the following sets join the same generation.
type Memory struct {
	name     string
	fallback string

	mu    sync.Mutex
	count int64
	types []string
	data  map[string][]byte
}

// NewMemory returns an empty store whose fallback type is uncompressed TIFF.
func NewMemory() *Memory {
	return &Memory{
		name:     "memory",
		fallback: pipeline.MIMETIFF,
		data:     make(map[string][]byte),
	}
}

func newHeadless() *Memory {
	m := NewMemory()
	m.name = "headless (in-memory)"
	return m
}

// Put replaces the contents with items as one change, the way another
// application copying to the clipboard would.
func (m *Memory) Put(items ...Image) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reset()
	for _, it := range items {
		m.set(it.Data, it.Type)
	}
}

// Items returns a copy of the current representations in write order.
func (m *Memory) Items() []Image {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Image, 0, len(m.types))
	for _, t := range m.types {
		out = append(out, Image{Data: slices.Clone(m.data[t]), Type: t})
	}
	return out
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) ChangeCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *Memory) Image() (Image, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := pickImage(m.types)
	if !ok {
		return Image{}, false, nil
	}
	return Image{Data: slices.Clone(m.data[t]), Type: t}, true, nil
}

func (m *Memory) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.types)
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

func (m *Memory) SetPrimary(data []byte, typ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(data, typ)
	return nil
}

func (m *Memory) SetFallback(data []byte, typ string) error {
	return m.SetPrimary(data, typ)
}

func (m *Memory) FallbackType() string { return m.fallback }

func (m *Memory) Close() {}

func (m *Memory) reset() {
	m.count++
	m.types = m.types[:0]
	clear(m.data)
}

func (m *Memory) set(data []byte, typ string) {
	if _, exists := m.data[typ]; !exists {
		m.types = append(m.types, typ)
	}
	m.data[typ] = slices.Clone(data)
}
