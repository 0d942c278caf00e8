// Package pipeline implements the clipboard image transcoding pipeline:
// decode, aspect-preserving resize, output format resolution and
// format-specific compression.
//
// Codecs are split by build tag the same way as the rest of the repo's
// optional cgo dependencies:
//
//	runtime_govips.go: HEIC through libvips (build with -tags govips, cgo on)
//	runtime_stub.go:   pure Go; HEIC reports ErrFormatUnavailable
package pipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageBuffer is a decoded bitmap: a contiguous non-premultiplied RGBA8
// plane with origin (0,0) and stride Width*4, plus the size of the encoded
// representation it was decoded from.
type ImageBuffer struct {
	img *image.NRGBA

	// EncodedSize is the byte length of the source representation, used as
	// the baseline for the reduction statistic.
	EncodedSize int
}

// NewImageBuffer copies img into a fresh RGBA8 plane.
func NewImageBuffer(img image.Image, encodedSize int) (*ImageBuffer, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrDecode)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrDecode, b.Dx(), b.Dy())
	}
	return &ImageBuffer{img: imaging.Clone(img), EncodedSize: encodedSize}, nil
}

// Decode parses encoded clipboard bytes. HEIC is only understood when the
// libvips runtime is compiled in.
func Decode(data []byte) (*ImageBuffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		var herr error
		img, herr = decodeHEIC(data)
		if herr != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
	return NewImageBuffer(img, len(data))
}

func (b *ImageBuffer) Width() int {
	if b == nil || b.img == nil {
		return 0
	}
	return b.img.Rect.Dx()
}

func (b *ImageBuffer) Height() int {
	if b == nil || b.img == nil {
		return 0
	}
	return b.img.Rect.Dy()
}

// Pix returns the underlying plane. Callers must not retain it past the
// buffer's lifetime.
func (b *ImageBuffer) Pix() []uint8 {
	if b == nil || b.img == nil {
		return nil
	}
	return b.img.Pix
}

// Image exposes the plane as an image.Image for encoders.
func (b *ImageBuffer) Image() *image.NRGBA { return b.img }

// Valid reports whether the buffer satisfies its layout invariants.
func (b *ImageBuffer) Valid() bool {
	if b == nil || b.img == nil {
		return false
	}
	w, h := b.Width(), b.Height()
	return w > 0 && h > 0 &&
		b.img.Rect.Min == image.Point{} &&
		b.img.Stride == w*4 &&
		len(b.img.Pix) == w*h*4
}
