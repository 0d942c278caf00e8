package pipeline

import (
	"fmt"
	"strings"
)

// Format is an output codec choice.
type Format string

const (
	FormatOriginal Format = "original"
	FormatPNG      Format = "png"
	FormatJPEG     Format = "jpeg"
	FormatHEIC     Format = "heic"
)

// MIME type identifiers used for clipboard representations. Platform
// backends translate their native identifiers to these.
const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEHEIC = "image/heic"
	MIMETIFF = "image/tiff"
	MIMEBMP  = "image/bmp"
	MIMEGIF  = "image/gif"
	MIMEWebP = "image/webp"
)

// Formats lists every selectable output format.
var Formats = []Format{FormatOriginal, FormatPNG, FormatJPEG, FormatHEIC}

// resolveOrder is the priority used when the preference is "original".
var resolveOrder = []Format{FormatPNG, FormatJPEG, FormatHEIC}

// ParseFormat converts user input to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "original", "":
		return FormatOriginal, nil
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "heic", "heif":
		return FormatHEIC, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// MIME returns the clipboard type identifier for f. Original has no type of
// its own and maps to PNG, the resolver's default.
func (f Format) MIME() string {
	switch f {
	case FormatJPEG:
		return MIMEJPEG
	case FormatHEIC:
		return MIMEHEIC
	default:
		return MIMEPNG
	}
}

func (f Format) String() string { return string(f) }

// Resolve picks the concrete output format. A non-original preference wins
// outright; otherwise the first of PNG, JPEG, HEIC present in available is
// used, defaulting to PNG.
func Resolve(preferred Format, available []string) Format {
	if preferred != FormatOriginal && preferred != "" {
		return preferred
	}
	for _, f := range resolveOrder {
		for _, t := range available {
			if t == f.MIME() {
				return f
			}
		}
	}
	return FormatPNG
}
