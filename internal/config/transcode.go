// Package config holds the user's persisted transcode settings.
//
// Settings live in a TOML file written through viper, separate from the
// process flags file read by the CLI. The file is watched so edits made while
// the daemon runs take effect without a restart.
package config

import (
	"math"

	"go.klb.dev/clipshrink/internal/pipeline"
)

// Transcode is one immutable snapshot of the settings.
type Transcode struct {
	MaxWidth        float64         `mapstructure:"max_width"`
	UseCustomHeight bool            `mapstructure:"use_custom_height"`
	MaxHeight       float64         `mapstructure:"max_height"`
	OutputFormat    pipeline.Format `mapstructure:"output_format"`
	Quality         float64         `mapstructure:"quality"`
	StripMetadata   bool            `mapstructure:"strip_metadata"`
	AutoShrink      bool            `mapstructure:"auto_shrink"`
}

// Default returns the settings used when nothing has been saved yet.
func Default() Transcode {
	return Transcode{
		MaxWidth:        1000,
		UseCustomHeight: false,
		MaxHeight:       1000,
		OutputFormat:    pipeline.FormatOriginal,
		Quality:         0.8,
		StripMetadata:   true,
		AutoShrink:      false,
	}
}

// Normalize replaces out-of-range values so the snapshot satisfies the
// pipeline's preconditions.
func (t Transcode) Normalize() Transcode {
	def := Default()
	if !(t.MaxWidth > 0) || math.IsInf(t.MaxWidth, 0) {
		t.MaxWidth = def.MaxWidth
	}
	if !(t.MaxHeight > 0) || math.IsInf(t.MaxHeight, 0) {
		t.MaxHeight = def.MaxHeight
	}
	switch {
	case math.IsNaN(t.Quality):
		t.Quality = def.Quality
	case t.Quality < 0:
		t.Quality = 0
	case t.Quality > 1:
		t.Quality = 1
	}
	f, err := pipeline.ParseFormat(string(t.OutputFormat))
	if err != nil {
		f = def.OutputFormat
	}
	t.OutputFormat = f
	return t
}

// Options converts the snapshot into pipeline options. The height bound is
// only applied when UseCustomHeight is set.
func (t Transcode) Options() pipeline.Options {
	t = t.Normalize()
	opts := pipeline.Options{
		MaxWidth:      t.MaxWidth,
		Format:        t.OutputFormat,
		Quality:       t.Quality,
		StripMetadata: t.StripMetadata,
	}
	if t.UseCustomHeight {
		opts.MaxHeight = t.MaxHeight
	}
	return opts
}
