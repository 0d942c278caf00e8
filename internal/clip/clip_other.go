//go:build !darwin && !windows && !linux

package clip

// New returns an in-memory store; there is no system clipboard to attach to
// on this platform.
func New() Store {
	return newHeadless()
}
