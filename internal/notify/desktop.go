package notify

import (
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// ErrNoNotifier is returned by NewDesktop when the platform has no desktop
// notification service.
var ErrNoNotifier = errors.New("no desktop notifier available")

// Desktop shows notifications through beeep: D-Bus or notify-send on Linux
// and the BSDs, terminal-notifier or osascript on macOS, toast notifications
// on Windows.
type Desktop struct {
	send     func(title, body string) error
	inflight sync.WaitGroup
}

// NewDesktop returns a notifier for the running platform.
func NewDesktop() (*Desktop, error) {
	switch runtime.GOOS {
	case "linux", "freebsd", "netbsd", "openbsd", "illumos", "darwin", "windows":
	default:
		return nil, errors.Join(ErrNoNotifier, beeep.ErrUnsupported)
	}
	beeep.AppName = "clipshrink"
	return &Desktop{send: func(title, body string) error {
		return beeep.Notify(title, body, "")
	}}, nil
}

// Notify hands the message to the platform and returns immediately;
// delivery errors are logged.
func (d *Desktop) Notify(title, body string) {
	d.inflight.Go(func() {
		if err := d.send(title, body); err != nil {
			slog.Warn("desktop notification failed", "title", title, "err", err)
		}
	})
}

// Flush waits up to timeout for notifications still being handed over. A
// short-lived process calls it before exiting.
func (d *Desktop) Flush(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
