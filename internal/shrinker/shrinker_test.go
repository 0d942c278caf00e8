package shrinker

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipshrink/internal/clip"
	"go.klb.dev/clipshrink/internal/config"
	"go.klb.dev/clipshrink/internal/notify"
	"go.klb.dev/clipshrink/internal/pipeline"
)

type staticConfig config.Transcode

func (c staticConfig) Snapshot() config.Transcode { return config.Transcode(c) }

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dims(t *testing.T, data []byte) (int, int, string) {
	t.Helper()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height, format
}

func newTestShrinker(cfg config.Transcode) (*Shrinker, *clip.Memory, *notify.Recorder) {
	store := clip.NewMemory()
	rec := &notify.Recorder{}
	return New(store, staticConfig(cfg), rec), store, rec
}

func TestRunShrinksToWidthBound(t *testing.T) {
	s, store, rec := newTestShrinker(config.Default())
	src := buildTestPNG(t, 2000, 1000)
	store.Put(clip.Image{Data: src, Type: pipeline.MIMEPNG})

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000, res.Width)
	assert.Equal(t, 500, res.Height)
	assert.Equal(t, pipeline.FormatPNG, res.Format)
	assert.Equal(t, len(src), res.OriginalBytes)

	items := store.Items()
	require.Len(t, items, 2)
	assert.Equal(t, pipeline.MIMEPNG, items[0].Type)
	assert.Equal(t, res.Data, items[0].Data)
	assert.Equal(t, pipeline.MIMETIFF, items[1].Type)

	w, h, format := dims(t, items[1].Data)
	assert.Equal(t, "tiff", format)
	assert.Equal(t, 1000, w)
	assert.Equal(t, 500, h)

	assert.Equal(t, []notify.Note{{Title: TitleShrunk, Body: res.Summary()}}, rec.Notes())
	assert.Contains(t, rec.Notes()[0].Body, "2000×1000 → 1000×500")

	st := s.Stats()
	assert.Equal(t, int64(1), st.Attempts)
	assert.Equal(t, int64(1), st.Shrunk)
	assert.Zero(t, st.Failed)
}

func TestRunWritesJPEGWithFallback(t *testing.T) {
	cfg := config.Default()
	cfg.OutputFormat = pipeline.FormatJPEG
	cfg.Quality = 0.6
	s, store, _ := newTestShrinker(cfg)
	store.Put(clip.Image{Data: buildTestPNG(t, 300, 200), Type: pipeline.MIMEPNG})

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	items := store.Items()
	require.Len(t, items, 2)
	assert.Equal(t, pipeline.MIMEJPEG, items[0].Type)
	_, _, format := dims(t, items[0].Data)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, pipeline.MIMETIFF, items[1].Type)
}

func TestRunOriginalFollowsClipboardType(t *testing.T) {
	s, store, _ := newTestShrinker(config.Default())

	pngData := buildTestPNG(t, 40, 30)

	// A JPEG representation alongside a TIFF: original resolves to JPEG,
	// and the TIFF is chosen as the source because it is lossless.
	tiffData, err := pipeline.EncodeFallback(pngData, pipeline.MIMETIFF)
	require.NoError(t, err)
	jpegData, err := pipeline.Compress(mustDecode(t, pngData), pipeline.FormatJPEG, 0.9, true)
	require.NoError(t, err)
	store.Put(
		clip.Image{Data: jpegData, Type: pipeline.MIMEJPEG},
		clip.Image{Data: tiffData, Type: pipeline.MIMETIFF},
	)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.FormatJPEG, res.Format)
	assert.Equal(t, len(tiffData), res.OriginalBytes)
}

func mustDecode(t *testing.T, data []byte) *pipeline.ImageBuffer {
	t.Helper()

	buf, err := pipeline.Decode(data)
	require.NoError(t, err)
	return buf
}

func TestRunNoImage(t *testing.T) {
	s, store, rec := newTestShrinker(config.Default())
	store.Put(clip.Image{Data: []byte("hello"), Type: "text/plain"})
	before := store.ChangeCount()

	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrNoImage)

	assert.Equal(t, before, store.ChangeCount(), "clipboard untouched")
	assert.Equal(t, []notify.Note{{Title: TitleNoImage, Body: BodyNoImage}}, rec.Notes())
	assert.Equal(t, int64(1), s.Stats().Failed)
}

func TestRunUndecodableImage(t *testing.T) {
	s, store, rec := newTestShrinker(config.Default())
	store.Put(clip.Image{Data: []byte("not a png"), Type: pipeline.MIMEPNG})
	before := store.ChangeCount()

	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrDecode)

	assert.Equal(t, before, store.ChangeCount())
	assert.Equal(t, []byte("not a png"), store.Items()[0].Data)
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Note{Title: TitleFailed, Body: BodyDecodeError}, last)
}

type rejectingStore struct {
	*clip.Memory
}

func (rejectingStore) SetPrimary([]byte, string) error { return clip.ErrUnsupportedType }

func TestRunWriteFailure(t *testing.T) {
	store := rejectingStore{clip.NewMemory()}
	rec := &notify.Recorder{}
	s := New(store, staticConfig(config.Default()), rec)
	store.Put(clip.Image{Data: buildTestPNG(t, 20, 20), Type: pipeline.MIMEPNG})

	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrWrite)
	require.ErrorIs(t, err, clip.ErrUnsupportedType)

	last, _ := rec.Last()
	assert.Equal(t, notify.Note{Title: TitleFailed, Body: BodyWriteError}, last)
}

func TestShrinkHonoursCancelledContext(t *testing.T) {
	s, store, rec := newTestShrinker(config.Default())
	src := buildTestPNG(t, 20, 20)
	store.Put(clip.Image{Data: src, Type: pipeline.MIMEPNG})
	before := store.ChangeCount()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Shrink(ctx)
	require.ErrorIs(t, err, pipeline.ErrWrite)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, before, store.ChangeCount())
	assert.Empty(t, rec.Notes(), "Shrink itself never notifies")
}

func TestRunSerializesConcurrentCalls(t *testing.T) {
	s, store, rec := newTestShrinker(config.Default())
	store.Put(clip.Image{Data: buildTestPNG(t, 1200, 600), Type: pipeline.MIMEPNG})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Run(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, rec.Notes(), 4)
	items := store.Items()
	require.Len(t, items, 2)
	w, h, _ := dims(t, items[0].Data)
	assert.Equal(t, 1000, w)
	assert.Equal(t, 500, h)
}

func TestMetricsHandler(t *testing.T) {
	s, store, _ := newTestShrinker(config.Default())
	store.Put(clip.Image{Data: buildTestPNG(t, 10, 10), Type: pipeline.MIMEPNG})
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	s.MetricsHandler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rr.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `clipshrink_shrinks_total{format="png",outcome="ok"} 1`)
	assert.Contains(t, string(body), "clipshrink_shrink_duration_seconds")
}

func TestAfterWriteRunsInsideWrite(t *testing.T) {
	store := clip.NewMemory()
	var (
		calls  int
		counts []int64
	)
	s := New(store, staticConfig(config.Default()), &notify.Recorder{}, WithAfterWrite(func() {
		calls++
		counts = append(counts, store.ChangeCount())
	}))

	store.Put(clip.Image{Data: []byte("hello"), Type: "text/plain"})
	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrNoImage)
	assert.Zero(t, calls, "no write, no hook")

	store.Put(clip.Image{Data: buildTestPNG(t, 40, 20), Type: pipeline.MIMEPNG})
	_, err = s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	assert.Equal(t, store.ChangeCount(), counts[0], "hook sees the count of its own write")
}

func TestAfterWriteRunsOnWriteFailure(t *testing.T) {
	store := rejectingStore{clip.NewMemory()}
	var calls int
	s := New(store, staticConfig(config.Default()), &notify.Recorder{}, WithAfterWrite(func() { calls++ }))
	store.Put(clip.Image{Data: buildTestPNG(t, 20, 20), Type: pipeline.MIMEPNG})

	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrWrite)
	assert.Equal(t, 1, calls)
}

func TestRunStripsCameraMetadata(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 600; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 90, A: 255})
		}
	}
	var enc bytes.Buffer
	require.NoError(t, jpeg.Encode(&enc, img, &jpeg.Options{Quality: 90}))
	raw := enc.Bytes()

	const exif = "Exif\x00\x00MM\x00\x2a\x00\x00\x00\x08GPS:48.8584N,2.2945E"
	app1 := []byte{0xFF, 0xE1, byte((len(exif) + 2) >> 8), byte(len(exif) + 2)}
	src := append(append(append([]byte{}, raw[:2]...), append(app1, exif...)...), raw[2:]...)

	cfg := config.Default()
	cfg.MaxWidth = 300
	cfg.OutputFormat = pipeline.FormatJPEG
	s, store, _ := newTestShrinker(cfg)
	store.Put(clip.Image{Data: src, Type: pipeline.MIMEJPEG})

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	items := store.Items()
	require.Len(t, items, 2)
	for _, it := range items {
		assert.NotContains(t, string(it.Data), "Exif", it.Type)
		assert.NotContains(t, string(it.Data), "48.8584N", it.Type)
	}
	w, h, _ := dims(t, items[0].Data)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)
}
