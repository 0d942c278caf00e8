//go:build govips && cgo

package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	runtimeMu sync.Mutex
	started   bool
)

// Startup initialises libvips. It is safe to call repeatedly.
func Startup() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if started {
		return nil
	}
	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(&vips.Config{
		MaxCacheFiles: 0,
		MaxCacheMem:   64 * 1024 * 1024,
		MaxCacheSize:  16,
	})
	started = true
	return nil
}

func Shutdown() {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

// HEICAvailable reports whether HEIC encode/decode is compiled in.
func HEICAvailable() bool { return true }

// encodeHEIC hands the plane to libvips through a lossless PNG
// intermediate, which carries no metadata of its own.
func encodeHEIC(img *image.NRGBA, quality float64, strip bool) ([]byte, error) {
	if err := Startup(); err != nil {
		return nil, err
	}

	var intermediate bytes.Buffer
	if err := png.Encode(&intermediate, img); err != nil {
		return nil, fmt.Errorf("intermediate png: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(intermediate.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load intermediate: %w", err)
	}
	defer ref.Close()

	if strip {
		if err := ref.RemoveMetadata(); err != nil {
			return nil, fmt.Errorf("strip metadata: %w", err)
		}
	}

	params := vips.NewHeifExportParams()
	params.Quality = lossyQuality(quality)
	params.Lossless = false
	data, _, err := ref.ExportHeif(params)
	if err != nil {
		return nil, fmt.Errorf("export heif: %w", err)
	}
	return data, nil
}

func decodeHEIC(data []byte) (image.Image, error) {
	if vips.DetermineImageType(data) != vips.ImageTypeHEIF {
		return nil, fmt.Errorf("not a heif container")
	}
	if err := Startup(); err != nil {
		return nil, err
	}

	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("load heif: %w", err)
	}
	defer ref.Close()

	out, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("convert heif: %w", err)
	}
	return png.Decode(bytes.NewReader(out))
}
