package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.klb.dev/clipshrink/internal/pipeline"
)

func TestDefault(t *testing.T) {
	d := Default()
	assert.Equal(t, 1000.0, d.MaxWidth)
	assert.False(t, d.UseCustomHeight)
	assert.Equal(t, 1000.0, d.MaxHeight)
	assert.Equal(t, pipeline.FormatOriginal, d.OutputFormat)
	assert.Equal(t, 0.8, d.Quality)
	assert.True(t, d.StripMetadata)
	assert.False(t, d.AutoShrink)
	assert.Equal(t, d, d.Normalize())
}

func TestNormalize(t *testing.T) {
	got := Transcode{
		MaxWidth:     -4,
		MaxHeight:    math.Inf(1),
		OutputFormat: "bogus",
		Quality:      3,
	}.Normalize()

	assert.Equal(t, 1000.0, got.MaxWidth)
	assert.Equal(t, 1000.0, got.MaxHeight)
	assert.Equal(t, pipeline.FormatOriginal, got.OutputFormat)
	assert.Equal(t, 1.0, got.Quality)

	assert.Equal(t, 0.0, Transcode{Quality: -1}.Normalize().Quality)
	assert.Equal(t, 0.8, Transcode{Quality: math.NaN()}.Normalize().Quality)
	assert.Equal(t, pipeline.FormatJPEG, Transcode{OutputFormat: "JPG"}.Normalize().OutputFormat)
}

func TestOptionsHeightCap(t *testing.T) {
	c := Default()
	c.MaxHeight = 500

	assert.Zero(t, c.Options().MaxHeight, "height cap off unless enabled")

	c.UseCustomHeight = true
	opts := c.Options()
	assert.Equal(t, 500.0, opts.MaxHeight)
	assert.Equal(t, 1000.0, opts.MaxWidth)
	assert.Equal(t, 0.8, opts.Quality)
	assert.True(t, opts.StripMetadata)
	assert.Equal(t, pipeline.FormatOriginal, opts.Format)
}
