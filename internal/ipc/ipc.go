// Package ipc locates and opens the control socket of the clipshrink daemon.
// The CLI sub-commands (shrink, status, config) dial it to hand their work
// to a running daemon and do it in-process when nothing answers.
//
// The socket grants control over one user's clipboard and settings, so it
// is only reachable by the user that started the daemon.
package ipc

import (
	"net"
	"os"
)

// SocketPath returns where the daemon listens.
//
//   - Linux:   $XDG_RUNTIME_DIR/clipshrink.sock
//   - others:  $TMPDIR/clipshrink-<uid>/clipshrink.sock
//   - Windows: \\.\pipe\clipshrink-<user>
//
// $CLIPSHRINK_SOCKET overrides all of these.
func SocketPath() string {
	if s := os.Getenv("CLIPSHRINK_SOCKET"); s != "" {
		return s
	}
	return defaultControlPath()
}

// IsRunning reports whether a daemon answers on the control socket. It
// connects and hangs up without sending a request.
func IsRunning() bool {
	c, err := Dial()
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen opens the control socket for the daemon. A socket file left by a
// daemon that did not shut down cleanly is replaced; callers check
// IsRunning first.
func Listen() (net.Listener, error) {
	return listenControl(SocketPath())
}

// Dial connects to the daemon's control socket.
func Dial() (net.Conn, error) {
	return dialControl(SocketPath())
}
