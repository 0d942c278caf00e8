package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/clipshrink/internal/app"
	"go.klb.dev/clipshrink/internal/clip"
	"go.klb.dev/clipshrink/internal/control"
	"go.klb.dev/clipshrink/internal/ipc"
	"go.klb.dev/clipshrink/internal/monitor"
	"go.klb.dev/clipshrink/internal/pipeline"
	"go.klb.dev/clipshrink/internal/telemetry"
)

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the clipboard and shrink new images",
		Long: `Run the clipshrink daemon.

The daemon polls the clipboard change counter and, while auto_shrink is on,
shrinks each newly copied image once the clipboard has been quiet for the
debounce window. Edits to settings.toml (by hand or via "clipshrink config
set") take effect without a restart.

The daemon also serves a local control socket used by "clipshrink shrink",
"clipshrink status" and "clipshrink config". Prometheus metrics are exposed
on --metrics-addr when set.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindViper(cmd, v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(v)
			return runWatch(cmd.Context(), v)
		},
	}

	f := cmd.Flags()
	f.Duration("interval", monitor.DefaultInterval, "clipboard poll interval")
	f.Duration("debounce", monitor.DefaultDebounce, "quiet period before an automatic shrink")
	f.String("notify", "desktop", "notifications: desktop|log|none")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	f.String("trace-exporter", "none", "trace exporter: none|stdout|otlp")
	f.String("otlp-endpoint", "", "OTLP/HTTP collector endpoint (host:port)")
	f.Bool("otlp-insecure", false, "use plain HTTP for the OTLP exporter")
	addSettingsFlag(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runWatch(ctx context.Context, v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "clipshrink",
		Version:      Version,
		Exporter:     v.GetString("trace-exporter"),
		OTLPEndpoint: v.GetString("otlp-endpoint"),
		OTLPInsecure: v.GetBool("otlp-insecure"),
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracing shutdown", "err", err)
		}
	}()

	if err := pipeline.Startup(); err != nil {
		return fmt.Errorf("codec runtime: %w", err)
	}
	defer pipeline.Shutdown()

	settings, err := openSettings(v)
	if err != nil {
		return err
	}

	if ipc.IsRunning() {
		return fmt.Errorf("another clipshrink daemon is already listening on %s", ipc.SocketPath())
	}
	ln, err := ipc.Listen()
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}

	store := clip.New()
	a := app.New(ctx, store, settings, app.Options{
		Version: Version,
		Sink:    newSink(v.GetString("notify")),
		Monitor: []monitor.Option{
			monitor.WithInterval(v.GetDuration("interval")),
			monitor.WithDebounce(v.GetDuration("debounce")),
		},
	})
	defer a.Close()

	cfg := settings.Snapshot()
	slog.Info("clipshrink starting",
		"version", Version,
		"backend", store.Name(),
		"settings", settings.Path(),
		"socket", ipc.SocketPath(),
		"auto_shrink", cfg.AutoShrink,
		"max_width", cfg.MaxWidth,
		"format", cfg.OutputFormat,
		"heic", pipeline.HEICAvailable(),
	)
	a.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return control.Serve(gctx, ln, a)
	})

	if addr := v.GetString("metrics-addr"); addr != "" {
		srv := newMetricsServer(addr, a.MetricsHandler())
		g.Go(func() error {
			slog.Info("metrics listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err = g.Wait()
	slog.Info("clipshrink stopping")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newMetricsServer(addr string, metrics http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
