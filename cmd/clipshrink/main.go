// clipshrink: shrink images on the clipboard in place.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/clipshrink/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipshrink",
		Short: "Shrink clipboard images in place",
		Long: `clipshrink replaces images on the clipboard with a resized and
recompressed copy, bounded by a maximum width (and optionally height) and
encoded as PNG, JPEG or HEIC.

Run "clipshrink watch" to keep a daemon that shrinks every newly copied image
while auto_shrink is on. "clipshrink shrink" shrinks the current image once;
"clipshrink config" edits the persisted settings. Both talk to the daemon over
a local socket when it is running.

Config file search order (first found wins):
  /etc/clipshrink/clipshrink.toml
  $HOME/.config/clipshrink/clipshrink.toml
  path supplied via --config

All flags can be set via CLIPSHRINK_<FLAG> env vars or config-file keys.
Transcode settings live separately in settings.toml; see "clipshrink config".`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newWatchCmd(),
		newShrinkCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipshrink %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
