package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipshrink/internal/clip"
	"go.klb.dev/clipshrink/internal/control"
	"go.klb.dev/clipshrink/internal/ipc"
	"go.klb.dev/clipshrink/internal/message"
	"go.klb.dev/clipshrink/internal/notify"
	"go.klb.dev/clipshrink/internal/pipeline"
	"go.klb.dev/clipshrink/internal/shrinker"
)

func newShrinkCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "shrink",
		Short: "Shrink the image currently on the clipboard",
		Long: `Shrink the clipboard image once, regardless of auto_shrink.

When a daemon is running the request is forwarded to it so that the daemon
does not shrink the result a second time. Otherwise the clipboard is
processed in this process using settings.toml.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindViper(cmd, v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(v)
			return runShrink(cmd.Context(), v)
		},
	}

	f := cmd.Flags()
	f.Bool("local", false, "shrink in this process even if a daemon is running")
	f.Bool("json", false, "print the result as JSON")
	f.String("notify", "log", "notifications: desktop|log|none")
	f.Duration("timeout", 30*time.Second, "give up after this long")
	addSettingsFlag(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runShrink(ctx context.Context, v *viper.Viper) error {
	ctx, cancel := context.WithTimeout(ctx, v.GetDuration("timeout"))
	defer cancel()

	var (
		res *message.Result
		err error
	)
	if !v.GetBool("local") && ipc.IsRunning() {
		slog.Debug("forwarding shrink to daemon", "socket", ipc.SocketPath())
		res, err = control.NewClient().Shrink(ctx)
	} else {
		res, err = shrinkLocal(ctx, v)
	}
	if err != nil {
		return err
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(enc))
		return nil
	}
	fmt.Printf("%s, %s, %s → %s\n", res.Summary, res.Format, fmtBytes(res.OriginalBytes), fmtBytes(res.Bytes))
	return nil
}

func shrinkLocal(ctx context.Context, v *viper.Viper) (*message.Result, error) {
	if err := pipeline.Startup(); err != nil {
		return nil, fmt.Errorf("codec runtime: %w", err)
	}
	defer pipeline.Shutdown()

	settings, err := openSettings(v)
	if err != nil {
		return nil, err
	}

	store := clip.New()
	defer store.Close()

	sink := newSink(v.GetString("notify"))
	if f, ok := sink.(notify.Flusher); ok {
		defer f.Flush(3 * time.Second)
	}

	r, err := shrinker.New(store, settings, sink).Run(ctx)
	if errors.Is(err, pipeline.ErrNoImage) {
		return nil, fmt.Errorf("no image on the clipboard (%s)", store.Name())
	}
	if err != nil {
		return nil, err
	}
	return control.ResultOf(r), nil
}

func fmtBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := int64(n) / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
