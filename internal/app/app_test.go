package app

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipshrink/internal/clip"
	"go.klb.dev/clipshrink/internal/config"
	"go.klb.dev/clipshrink/internal/monitor"
	"go.klb.dev/clipshrink/internal/notify"
	"go.klb.dev/clipshrink/internal/pipeline"
	"go.klb.dev/clipshrink/internal/shrinker"
)

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	app      *App
	store    *clip.Memory
	settings *config.Store
	notes    *notify.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	settings, err := config.Open(filepath.Join(t.TempDir(), "settings.toml"))
	require.NoError(t, err)
	store := clip.NewMemory()
	notes := &notify.Recorder{}

	a := New(context.Background(), store, settings, Options{
		Version: "test",
		Sink:    notes,
		Monitor: []monitor.Option{
			monitor.WithInterval(5 * time.Millisecond),
			monitor.WithDebounce(20 * time.Millisecond),
		},
	})
	t.Cleanup(a.Close)
	return fixture{app: a, store: store, settings: settings, notes: notes}
}

func TestAutoShrinkTogglesMonitor(t *testing.T) {
	f := newFixture(t)
	f.app.Apply(f.settings.Snapshot())
	assert.Equal(t, monitor.Stopped, f.app.MonitorState())

	require.NoError(t, f.app.UpdateConfig("auto_shrink", "true"))
	assert.Equal(t, monitor.Watching, f.app.MonitorState())
	assert.True(t, f.settings.Snapshot().AutoShrink)

	require.NoError(t, f.app.UpdateConfig("auto_shrink", "false"))
	assert.Equal(t, monitor.Stopped, f.app.MonitorState())
}

func TestUpdateConfigRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.app.UpdateConfig("colour", "red"), config.ErrUnknownKey)
	require.ErrorIs(t, f.app.UpdateConfig("quality", "2"), config.ErrInvalidValue)
	assert.Equal(t, monitor.Stopped, f.app.MonitorState())
}

func TestAutoShrinkEndToEnd(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.UpdateConfig("max_width", "100"))
	require.NoError(t, f.app.UpdateConfig("auto_shrink", "on"))

	f.store.Put(clip.Image{Data: buildTestPNG(t, 400, 200), Type: pipeline.MIMEPNG})

	require.Eventually(t, func() bool { return len(f.notes.Notes()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, shrinker.TitleShrunk, f.notes.Notes()[0].Title)

	img, ok, err := f.store.Image()
	require.NoError(t, err)
	require.True(t, ok)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)

	// The shrinker's own write must not start another round.
	time.Sleep(150 * time.Millisecond)
	assert.Len(t, f.notes.Notes(), 1)
}

func TestShrinkNowRebaselines(t *testing.T) {
	f := newFixture(t)
	f.store.Put(clip.Image{Data: buildTestPNG(t, 50, 50), Type: pipeline.MIMEPNG})

	res, err := f.app.ShrinkNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, res.Width)
	assert.Equal(t, f.store.ChangeCount(), f.app.Status().Baseline)
}

func TestShrinkNowNoImage(t *testing.T) {
	f := newFixture(t)

	_, err := f.app.ShrinkNow(context.Background())
	require.ErrorIs(t, err, pipeline.ErrNoImage)

	st := f.app.Status()
	require.NotNil(t, st.LastNotification)
	assert.Equal(t, shrinker.TitleNoImage, st.LastNotification.Title)
	assert.Equal(t, int64(1), st.Failed)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	st := f.app.Status()

	assert.Equal(t, "test", st.Version)
	assert.Equal(t, "memory", st.Backend)
	assert.Equal(t, "stopped", st.MonitorState)
	assert.Equal(t, f.settings.Path(), st.SettingsPath)
	assert.Len(t, st.Settings, len(f.settings.Keys()))
	assert.Nil(t, st.LastNotification)

	v, err := f.app.Setting("max_width")
	require.NoError(t, err)
	assert.Equal(t, "1000", v)
}

func TestApplyAfterCloseIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.app.Close()

	cfg := config.Default()
	cfg.AutoShrink = true
	f.app.Apply(cfg)
	assert.Equal(t, monitor.Stopped, f.app.MonitorState())
}

type slowSink struct {
	delay time.Duration
	rec   *notify.Recorder
}

func (s slowSink) Notify(title, body string) {
	time.Sleep(s.delay)
	s.rec.Notify(title, body)
}

func TestShrinkNowWhileWatching(t *testing.T) {
	settings, err := config.Open(filepath.Join(t.TempDir(), "settings.toml"))
	require.NoError(t, err)
	store := clip.NewMemory()
	notes := &notify.Recorder{}

	const debounce = 300 * time.Millisecond
	a := New(context.Background(), store, settings, Options{
		Sink: slowSink{delay: 400 * time.Millisecond, rec: notes},
		Monitor: []monitor.Option{
			monitor.WithInterval(5 * time.Millisecond),
			monitor.WithDebounce(debounce),
		},
	})
	t.Cleanup(a.Close)
	require.NoError(t, a.UpdateConfig("auto_shrink", "on"))

	// The monitor has seen the copy and is waiting out the debounce.
	store.Put(clip.Image{Data: buildTestPNG(t, 400, 200), Type: pipeline.MIMEPNG})
	require.Eventually(t, func() bool { return a.Status().Baseline == store.ChangeCount() }, 2*time.Second, 5*time.Millisecond)

	_, err = a.ShrinkNow(context.Background())
	require.NoError(t, err)

	time.Sleep(debounce + 200*time.Millisecond)
	st := a.Status()
	assert.Equal(t, int64(1), st.Attempts)
	assert.Equal(t, store.ChangeCount(), st.Baseline)
	assert.Len(t, notes.Notes(), 1)
}
