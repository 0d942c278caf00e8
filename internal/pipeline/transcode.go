package pipeline

import (
	"fmt"
	"math"
)

// Options is the per-run view of the user's transcode settings.
type Options struct {
	MaxWidth float64
	// MaxHeight <= 0 disables the height bound.
	MaxHeight     float64
	Format        Format
	Quality       float64
	StripMetadata bool
}

// Result describes one completed transcode.
type Result struct {
	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int
	Format         Format
	Data           []byte
	OriginalBytes  int
	// ReductionPercent is always in [0,100]; output larger than the input
	// reports 0.
	ReductionPercent int
}

// Summary renders the dimensions and reduction for user-facing messages.
func (r Result) Summary() string {
	return fmt.Sprintf("%d×%d → %d×%d (%d%% smaller)",
		r.OriginalWidth, r.OriginalHeight, r.Width, r.Height, r.ReductionPercent)
}

// Transcode runs resize, format resolution and compression on buf.
// available is only consulted when opts.Format is FormatOriginal.
func Transcode(buf *ImageBuffer, opts Options, available []string) (Result, error) {
	if !buf.Valid() {
		return Result{}, fmt.Errorf("%w: invalid source bitmap", ErrDecode)
	}

	res := Result{
		OriginalWidth:  buf.Width(),
		OriginalHeight: buf.Height(),
		OriginalBytes:  buf.EncodedSize,
	}

	resized := Resize(buf, opts.MaxWidth, opts.MaxHeight)
	res.Width, res.Height = resized.Width(), resized.Height()

	res.Format = Resolve(opts.Format, available)
	data, err := Compress(resized, res.Format, opts.Quality, opts.StripMetadata)
	if err != nil {
		return Result{}, err
	}
	res.Data = data
	res.ReductionPercent = ReductionPercent(buf.EncodedSize, len(data))
	return res, nil
}

// ReductionPercent returns round((1 - newSize/originalSize) * 100) clamped
// to [0,100]. A zero or negative originalSize yields 0.
func ReductionPercent(originalSize, newSize int) int {
	if originalSize <= 0 {
		return 0
	}
	p := math.Round((1 - float64(newSize)/float64(originalSize)) * 100)
	return int(math.Max(0, math.Min(100, p)))
}
