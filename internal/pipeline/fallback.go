package pipeline

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// EncodeFallback decodes freshly produced output bytes and re-encodes them
// as mime, the broadly readable representation written next to the primary
// one. Supported targets are uncompressed TIFF, PNG and BMP.
func EncodeFallback(data []byte, mime string) ([]byte, error) {
	buf, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: fallback: %w", ErrEncode, err)
	}

	var out bytes.Buffer
	switch mime {
	case MIMETIFF:
		err = tiff.Encode(&out, buf.img, &tiff.Options{Compression: tiff.Uncompressed})
	case MIMEPNG:
		err = imaging.Encode(&out, buf.img, imaging.PNG,
			imaging.PNGCompressionLevel(png.BestSpeed))
	case MIMEBMP:
		err = bmp.Encode(&out, buf.img)
	default:
		return nil, fmt.Errorf("%w: unsupported fallback type %q", ErrEncode, mime)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fallback %s: %v", ErrEncode, mime, err)
	}
	return out.Bytes(), nil
}
