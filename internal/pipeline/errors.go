package pipeline

import "errors"

var (
	// ErrNoImage means the clipboard holds no image. It is an outcome, not a
	// failure: callers report it and carry on.
	ErrNoImage = errors.New("no image on clipboard")

	// ErrDecode wraps failures to turn clipboard bytes into an ImageBuffer.
	ErrDecode = errors.New("decode image")

	// ErrEncode wraps failures to produce output bytes.
	ErrEncode = errors.New("encode image")

	// ErrWrite wraps clipboard write failures.
	ErrWrite = errors.New("write clipboard")

	// ErrFormatUnavailable is returned when a codec is not compiled in.
	ErrFormatUnavailable = errors.New("format unavailable in this build")
)
