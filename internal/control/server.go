// Package control serves the daemon's local control channel and provides the
// matching client used by the CLI.
package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"go.klb.dev/clipshrink/internal/config"
	"go.klb.dev/clipshrink/internal/message"
	"go.klb.dev/clipshrink/internal/pipeline"
	"go.klb.dev/clipshrink/internal/wire"
)

const readTimeout = 10 * time.Second

// Controller is the daemon surface exposed over the socket.
type Controller interface {
	ShrinkNow(ctx context.Context) (pipeline.Result, error)
	Status() message.Status
	Settings() []message.Setting
	Setting(key string) (string, error)
	UpdateConfig(key, value string) error
}

// Serve accepts connections on ln until ctx is done or ln is closed.
func Serve(ctx context.Context, ln net.Listener, c Controller) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go handleConn(ctx, conn, c)
	}
}

func handleConn(ctx context.Context, conn net.Conn, c Controller) {
	wc := wire.New(conn)
	defer wc.Close()

	wc.SetReadDeadline(readTimeout)
	msg, err := wc.ReadMsg()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			slog.Debug("ipc: read failed", "err", err)
		}
		return
	}
	wc.SetReadDeadline(0)

	reply := dispatch(ctx, msg, c)
	if err := wc.WriteMsg(reply); err != nil {
		slog.Debug("ipc: reply failed", "type", reply.Type, "err", err)
	}
}

func dispatch(ctx context.Context, msg *message.Message, c Controller) *message.Message {
	slog.Debug("ipc: request", "type", msg.Type, "key", msg.Key)

	switch msg.Type {
	case message.TypeShrink:
		res, err := c.ShrinkNow(ctx)
		if err != nil {
			return message.Errorf(shrinkKind(err), "%v", err)
		}
		return &message.Message{Type: message.TypeResult, Result: ResultOf(res)}

	case message.TypeStatus:
		st := c.Status()
		return &message.Message{Type: message.TypeStatusResponse, Status: &st}

	case message.TypeConfigList:
		return &message.Message{Type: message.TypeConfigResponse, Settings: c.Settings()}

	case message.TypeConfigGet:
		v, err := c.Setting(msg.Key)
		if err != nil {
			return message.Errorf(configKind(err), "%v", err)
		}
		return &message.Message{
			Type:     message.TypeConfigResponse,
			Settings: []message.Setting{{Key: msg.Key, Value: v}},
		}

	case message.TypeConfigSet:
		if err := c.UpdateConfig(msg.Key, msg.Value); err != nil {
			return message.Errorf(configKind(err), "%v", err)
		}
		v, err := c.Setting(msg.Key)
		if err != nil {
			return message.Errorf(configKind(err), "%v", err)
		}
		return &message.Message{
			Type:     message.TypeConfigResponse,
			Settings: []message.Setting{{Key: msg.Key, Value: v}},
		}

	default:
		return message.Errorf(message.KindInternal, "unsupported request %q", msg.Type)
	}
}

// ResultOf converts a pipeline result for the wire.
func ResultOf(r pipeline.Result) *message.Result {
	return &message.Result{
		OriginalWidth:    r.OriginalWidth,
		OriginalHeight:   r.OriginalHeight,
		Width:            r.Width,
		Height:           r.Height,
		Format:           r.Format.String(),
		OriginalBytes:    r.OriginalBytes,
		Bytes:            len(r.Data),
		ReductionPercent: r.ReductionPercent,
		Summary:          r.Summary(),
	}
}

func shrinkKind(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrNoImage):
		return message.KindNoImage
	case errors.Is(err, pipeline.ErrDecode):
		return message.KindDecode
	case errors.Is(err, pipeline.ErrEncode):
		return message.KindEncode
	case errors.Is(err, pipeline.ErrWrite):
		return message.KindWrite
	default:
		return message.KindInternal
	}
}

func configKind(err error) string {
	switch {
	case errors.Is(err, config.ErrUnknownKey):
		return message.KindUnknownKey
	case errors.Is(err, config.ErrInvalidValue):
		return message.KindInvalid
	default:
		return message.KindInternal
	}
}
