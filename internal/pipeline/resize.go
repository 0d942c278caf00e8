package pipeline

import (
	"math"

	"github.com/disintegration/imaging"
)

// TargetSize computes the output dimensions for a w×h image bounded by
// maxWidth and, when maxHeight > 0, maxHeight. The width bound is applied
// first; the height bound is then applied to the already width-scaled size,
// so both bounds hold at once. Dimensions are rounded half away from zero and
// never drop below 1. ok is false when the image already fits.
func TargetSize(w, h int, maxWidth, maxHeight float64) (nw, nh int, ok bool) {
	fw, fh := float64(w), float64(h)
	needW := fw > maxWidth
	needH := maxHeight > 0 && fh > maxHeight
	if !needW && !needH {
		return w, h, false
	}

	newW, newH := fw, fh
	if needW {
		ratio := maxWidth / fw
		newW = maxWidth
		newH = fh * ratio
	}
	if maxHeight > 0 && newH > maxHeight {
		ratio := maxHeight / newH
		newW *= ratio
		newH = maxHeight
	}

	return max(1, int(math.Round(newW))), max(1, int(math.Round(newH))), true
}

// Resize scales buf down to fit the bounds using a Lanczos filter. Images
// that already fit are returned as-is, as are invalid buffers.
func Resize(buf *ImageBuffer, maxWidth, maxHeight float64) *ImageBuffer {
	if !buf.Valid() || maxWidth <= 0 {
		return buf
	}
	w, h, ok := TargetSize(buf.Width(), buf.Height(), maxWidth, maxHeight)
	if !ok || (w == buf.Width() && h == buf.Height()) {
		return buf
	}
	return &ImageBuffer{
		img:         imaging.Resize(buf.img, w, h, imaging.Lanczos),
		EncodedSize: buf.EncodedSize,
	}
}
