//go:build windows

package ipc

import (
	"fmt"
	"net"
	"os/user"
	"strings"

	"github.com/Microsoft/go-winio"
)

const controlPipePrefix = `\\.\pipe\clipshrink`

// defaultControlPath gives each user their own pipe; pipe names are global
// to the machine.
func defaultControlPath() string {
	u, err := user.Current()
	if err != nil {
		return controlPipePrefix
	}
	return controlPipePrefix + "-" + strings.ReplaceAll(u.Username, `\`, ".")
}

// listenControl opens the pipe with a DACL granting access to the current
// user only.
func listenControl(path string) (net.Listener, error) {
	cfg := &winio.PipeConfig{}
	if u, err := user.Current(); err == nil {
		cfg.SecurityDescriptor = fmt.Sprintf("D:P(A;;GA;;;%s)", u.Uid)
	}
	return winio.ListenPipe(path, cfg)
}

func dialControl(path string) (net.Conn, error) {
	return winio.DialPipe(path, nil)
}
