package clip

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipshrink/internal/pipeline"
)

func TestMemoryChangeCount(t *testing.T) {
	m := NewMemory()
	start := m.ChangeCount()

	m.Put(Image{Data: []byte("a"), Type: pipeline.MIMEPNG})
	assert.Equal(t, start+1, m.ChangeCount())

	// A replace is a single generation: clear bumps, sets join it.
	err := Replace(m,
		Image{Data: []byte("b"), Type: pipeline.MIMEJPEG},
		Image{Data: []byte("c"), Type: pipeline.MIMETIFF})
	require.NoError(t, err)
	assert.Equal(t, start+2, m.ChangeCount())

	assert.Equal(t, []string{pipeline.MIMEJPEG, pipeline.MIMETIFF}, m.Types())
}

func TestMemoryImage(t *testing.T) {
	m := NewMemory()

	_, ok, err := m.Image()
	require.NoError(t, err)
	assert.False(t, ok)

	m.Put(
		Image{Data: []byte("hello"), Type: "text/plain"},
		Image{Data: []byte("tiff"), Type: pipeline.MIMETIFF},
		Image{Data: []byte("png"), Type: pipeline.MIMEPNG},
	)
	img, ok, err := m.Image()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pipeline.MIMEPNG, img.Type)
	assert.Equal(t, []byte("png"), img.Data)

	// Returned bytes are a copy.
	img.Data[0] = 'X'
	again, _, _ := m.Image()
	assert.Equal(t, []byte("png"), again.Data)
}

func TestMemoryClear(t *testing.T) {
	m := NewMemory()
	m.Put(Image{Data: []byte("png"), Type: pipeline.MIMEPNG})

	require.NoError(t, m.Clear())
	assert.Empty(t, m.Types())
	assert.Empty(t, m.Items())
	assert.Equal(t, pipeline.MIMETIFF, m.FallbackType())
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if i%2 == 0 {
					m.Put(Image{Data: []byte{byte(i)}, Type: pipeline.MIMEPNG})
				} else {
					_, _, _ = m.Image()
					_ = m.ChangeCount()
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(4*50), m.ChangeCount())
}
