//go:build !govips || !cgo

package pipeline

import "image"

func Startup() error {
	return nil
}

func Shutdown() {}

// HEICAvailable reports whether HEIC encode/decode is compiled in.
func HEICAvailable() bool { return false }

func encodeHEIC(_ *image.NRGBA, _ float64, _ bool) ([]byte, error) {
	return nil, ErrFormatUnavailable
}

func decodeHEIC(_ []byte) (image.Image, error) {
	return nil, ErrFormatUnavailable
}
