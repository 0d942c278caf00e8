package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

// Compress encodes buf as format. quality in [0,1] drives lossy codecs and
// is ignored for PNG. When strip is set no EXIF, GPS or color profile data is
// written; the pure-Go PNG and JPEG encoders never emit any, so the flag only
// changes behavior on the libvips path.
func Compress(buf *ImageBuffer, format Format, quality float64, strip bool) ([]byte, error) {
	if !buf.Valid() {
		return nil, fmt.Errorf("%w: invalid bitmap", ErrEncode)
	}

	var out bytes.Buffer
	switch format {
	case FormatPNG, FormatOriginal:
		err := imaging.Encode(&out, buf.img, imaging.PNG,
			imaging.PNGCompressionLevel(png.BestCompression))
		if err != nil {
			return nil, fmt.Errorf("%w: png: %v", ErrEncode, err)
		}
	case FormatJPEG:
		err := imaging.Encode(&out, flatten(buf.img), imaging.JPEG,
			imaging.JPEGQuality(lossyQuality(quality)))
		if err != nil {
			return nil, fmt.Errorf("%w: jpeg: %v", ErrEncode, err)
		}
	case FormatHEIC:
		data, err := encodeHEIC(buf.img, quality, strip)
		if err != nil {
			return nil, fmt.Errorf("%w: heic: %w", ErrEncode, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: unsupported output format %q", ErrEncode, format)
	}
	return out.Bytes(), nil
}

// lossyQuality maps [0,1] onto the 1..100 encoder scale.
func lossyQuality(q float64) int {
	if math.IsNaN(q) {
		q = 0
	}
	q = math.Max(0, math.Min(1, q))
	return max(1, min(100, int(math.Round(q*100))))
}

// flatten composites translucent pixels over white; JPEG has no alpha and
// would otherwise render them black.
func flatten(img *image.NRGBA) image.Image {
	if img.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
