// Package shrinker replaces the clipboard image with a resized, recompressed
// copy. Shrink does the work; Run wraps it as the single place where every
// outcome turns into exactly one user notification.
package shrinker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"go.klb.dev/clipshrink/internal/clip"
	"go.klb.dev/clipshrink/internal/config"
	"go.klb.dev/clipshrink/internal/notify"
	"go.klb.dev/clipshrink/internal/pipeline"
)

// Notification texts.
const (
	TitleShrunk  = "Image Shrunk"
	TitleNoImage = "No Image Found"
	TitleFailed  = "Processing Failed"

	BodyNoImage     = "There's no image on the clipboard to shrink."
	BodyEncodeError = "Failed to compress the clipboard image."
	BodyDecodeError = "Failed to read the clipboard image."
	BodyWriteError  = "Failed to write the shrunk image to the clipboard."
)

// ConfigSource yields the settings snapshot for one run.
type ConfigSource interface {
	Snapshot() config.Transcode
}

// Stats are cumulative counters since the shrinker was created.
type Stats struct {
	Attempts   int64
	Shrunk     int64
	Failed     int64
	BytesSaved int64
}

type Shrinker struct {
	store   clip.Store
	config  ConfigSource
	sink    notify.Sink
	metrics *metrics
	tracer  trace.Tracer

	afterWrite func()

	// mu serializes the clipboard read-modify-write.
	mu sync.Mutex

	attempts   atomic.Int64
	shrunk     atomic.Int64
	failed     atomic.Int64
	bytesSaved atomic.Int64
}

type Option func(*Shrinker)

// WithAfterWrite sets a hook run after every clipboard write attempt, while
// the write is still exclusive. Whoever watches the clipboard uses it to
// adopt the new change count before anyone else can observe it.
func WithAfterWrite(fn func()) Option {
	return func(s *Shrinker) { s.afterWrite = fn }
}

func New(store clip.Store, cfg ConfigSource, sink notify.Sink, opts ...Option) *Shrinker {
	s := &Shrinker{
		store:   store,
		config:  cfg,
		sink:    sink,
		metrics: newMetrics(),
		tracer:  otel.Tracer("clipshrink/shrinker"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Shrinker) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Shrinker) Stats() Stats {
	return Stats{
		Attempts:   s.attempts.Load(),
		Shrunk:     s.shrunk.Load(),
		Failed:     s.failed.Load(),
		BytesSaved: s.bytesSaved.Load(),
	}
}

// Shrink reads the current clipboard image, transcodes it with the current
// settings and writes it back as the primary representation plus the
// store's fallback representation. Nothing is written unless both encodes
// succeed. Errors wrap one of the pipeline sentinels.
func (s *Shrinker) Shrink(ctx context.Context) (pipeline.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "shrinker.shrink", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	res, err := s.shrink(ctx, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
		return pipeline.Result{}, err
	}
	span.SetStatus(codes.Ok, "shrunk")
	return res, nil
}

func (s *Shrinker) shrink(ctx context.Context, span trace.Span) (pipeline.Result, error) {
	opts := s.config.Snapshot().Options()

	src, ok, err := s.store.Image()
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("%w: read clipboard: %v", pipeline.ErrDecode, err)
	}
	if !ok {
		return pipeline.Result{}, pipeline.ErrNoImage
	}
	span.SetAttributes(
		attribute.String("clip.source_type", src.Type),
		attribute.Int("clip.source_bytes", len(src.Data)),
	)

	buf, err := pipeline.Decode(src.Data)
	if err != nil {
		return pipeline.Result{}, err
	}

	res, err := pipeline.Transcode(buf, opts, s.store.Types())
	if err != nil {
		return pipeline.Result{}, err
	}
	span.SetAttributes(
		attribute.String("shrink.format", res.Format.String()),
		attribute.Int("shrink.width", res.Width),
		attribute.Int("shrink.height", res.Height),
		attribute.Int("shrink.reduction_percent", res.ReductionPercent),
	)

	primary := clip.Image{Data: res.Data, Type: res.Format.MIME()}
	var fallback clip.Image
	if ft := s.store.FallbackType(); ft != "" && ft != primary.Type {
		data, err := pipeline.EncodeFallback(res.Data, ft)
		if err != nil {
			// The input is our own output, so any failure here is an encode
			// failure even when the fallback decoder reports it.
			return pipeline.Result{}, fmt.Errorf("%w: %v", pipeline.ErrEncode, err)
		}
		fallback = clip.Image{Data: data, Type: ft}
	}

	if err := ctx.Err(); err != nil {
		return pipeline.Result{}, fmt.Errorf("%w: %w", pipeline.ErrWrite, err)
	}
	err = clip.Replace(s.store, primary, fallback)
	// A failed Replace may still have cleared the clipboard.
	if s.afterWrite != nil {
		s.afterWrite()
	}
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("%w: %w", pipeline.ErrWrite, err)
	}
	return res, nil
}

// Run is the error boundary around Shrink: it notifies, logs and records
// metrics for every outcome. The error is returned for callers that report
// it elsewhere (the control channel); the monitor ignores it.
func (s *Shrinker) Run(ctx context.Context) (pipeline.Result, error) {
	start := time.Now()
	s.attempts.Add(1)

	res, err := s.Shrink(ctx)
	out := outcome(err)
	s.metrics.shrinkDuration.WithLabelValues(out).Observe(time.Since(start).Seconds())

	if err != nil {
		s.failed.Add(1)
		s.metrics.shrinksTotal.WithLabelValues("", out).Inc()
		title, body := failureText(err)
		if errors.Is(err, pipeline.ErrNoImage) {
			slog.Info("nothing to shrink", "err", err)
		} else {
			slog.Error("shrink failed", "outcome", out, "err", err)
		}
		s.sink.Notify(title, body)
		return res, err
	}

	saved := max(0, res.OriginalBytes-len(res.Data))
	s.shrunk.Add(1)
	s.bytesSaved.Add(int64(saved))
	s.metrics.shrinksTotal.WithLabelValues(res.Format.String(), out).Inc()
	s.metrics.bytesSavedTotal.Add(float64(saved))
	s.metrics.pixelsProcessedTotal.Add(float64(res.OriginalWidth * res.OriginalHeight))
	s.metrics.lastReduction.Set(float64(res.ReductionPercent))

	slog.Info("image shrunk",
		"format", res.Format,
		"from", fmt.Sprintf("%dx%d", res.OriginalWidth, res.OriginalHeight),
		"to", fmt.Sprintf("%dx%d", res.Width, res.Height),
		"bytes_in", res.OriginalBytes,
		"bytes_out", len(res.Data),
		"reduction_percent", res.ReductionPercent,
		"elapsed", time.Since(start),
	)
	s.sink.Notify(TitleShrunk, res.Summary())
	return res, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, pipeline.ErrNoImage):
		return "no_image"
	case errors.Is(err, pipeline.ErrDecode):
		return "decode_error"
	case errors.Is(err, pipeline.ErrWrite):
		return "write_error"
	default:
		return "encode_error"
	}
}

func failureText(err error) (title, body string) {
	switch {
	case errors.Is(err, pipeline.ErrNoImage):
		return TitleNoImage, BodyNoImage
	case errors.Is(err, pipeline.ErrDecode):
		return TitleFailed, BodyDecodeError
	case errors.Is(err, pipeline.ErrWrite):
		return TitleFailed, BodyWriteError
	default:
		return TitleFailed, BodyEncodeError
	}
}
