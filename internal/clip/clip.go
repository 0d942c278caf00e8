// Package clip provides clipboard stores across platforms. Build constraints
// select the system implementation returned by New:
//
//	clip_darwin.go:  macOS NSPasteboard via cgo, native changeCount
//	clip_system.go:  Linux and Windows via golang.design/x/clipboard
//	clip_other.go:   everything else, in-memory
//
// memory.go holds the in-memory store used headless and in tests.
package clip

import (
	"errors"
	"fmt"
	"strings"

	"go.klb.dev/clipshrink/internal/pipeline"
)

// ErrUnsupportedType is returned when a store cannot hold a representation
// of the requested type.
var ErrUnsupportedType = errors.New("unsupported clipboard type")

// Image is one encoded clipboard representation.
type Image struct {
	Data []byte
	Type string
}

// Store is the clipboard as seen by the shrinker and the monitor. Type
// identifiers are MIME types; backends translate native identifiers.
type Store interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// ChangeCount is a counter that moves whenever the clipboard contents
	// are replaced, including by this process.
	ChangeCount() int64

	// Image returns the preferred image representation. ok is false when
	// no image is present.
	Image() (img Image, ok bool, err error)

	// Types lists the representations currently on the clipboard.
	Types() []string

	Clear() error
	SetPrimary(data []byte, typ string) error
	SetFallback(data []byte, typ string) error

	// FallbackType is the broadly readable type written next to the
	// primary representation.
	FallbackType() string

	Close()
}

// imagePreference orders representations when picking the one to decode.
// PNG and TIFF first so the size baseline is the lossless copy.
var imagePreference = []string{
	pipeline.MIMEPNG,
	pipeline.MIMETIFF,
	pipeline.MIMEJPEG,
	pipeline.MIMEHEIC,
	pipeline.MIMEBMP,
	pipeline.MIMEGIF,
	pipeline.MIMEWebP,
}

// HasImage reports whether any of types is an image representation.
func HasImage(types []string) bool {
	for _, t := range types {
		if strings.HasPrefix(t, "image/") {
			return true
		}
	}
	return false
}

// pickImage returns the first preferred image type present in types.
func pickImage(types []string) (string, bool) {
	for _, want := range imagePreference {
		for _, t := range types {
			if t == want {
				return t, true
			}
		}
	}
	for _, t := range types {
		if strings.HasPrefix(t, "image/") {
			return t, true
		}
	}
	return "", false
}

// Replace clears s and writes primary followed by fallback. The fallback is
// skipped when it is empty or has the same type as primary.
func Replace(s Store, primary, fallback Image) error {
	if err := s.Clear(); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := s.SetPrimary(primary.Data, primary.Type); err != nil {
		return fmt.Errorf("set %s: %w", primary.Type, err)
	}
	if len(fallback.Data) == 0 || fallback.Type == primary.Type {
		return nil
	}
	if err := s.SetFallback(fallback.Data, fallback.Type); err != nil {
		return fmt.Errorf("set fallback %s: %w", fallback.Type, err)
	}
	return nil
}
