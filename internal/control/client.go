package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.klb.dev/clipshrink/internal/ipc"
	"go.klb.dev/clipshrink/internal/message"
	"go.klb.dev/clipshrink/internal/wire"
)

// RemoteError is an ERROR reply from the daemon.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Client issues one request per connection.
type Client struct {
	dial func() (net.Conn, error)
}

// NewClient dials the daemon's IPC socket for each request.
func NewClient() *Client {
	return &Client{dial: ipc.Dial}
}

// NewClientWithDialer is used when the transport is not the IPC socket.
func NewClientWithDialer(dial func() (net.Conn, error)) *Client {
	return &Client{dial: dial}
}

func (c *Client) Shrink(ctx context.Context) (*message.Result, error) {
	reply, err := c.do(ctx, &message.Message{Type: message.TypeShrink}, message.TypeResult)
	if err != nil {
		return nil, err
	}
	return reply.Result, nil
}

func (c *Client) Status(ctx context.Context) (*message.Status, error) {
	reply, err := c.do(ctx, &message.Message{Type: message.TypeStatus}, message.TypeStatusResponse)
	if err != nil {
		return nil, err
	}
	if reply.Status == nil {
		return nil, fmt.Errorf("empty status reply")
	}
	return reply.Status, nil
}

func (c *Client) ConfigList(ctx context.Context) ([]message.Setting, error) {
	reply, err := c.do(ctx, &message.Message{Type: message.TypeConfigList}, message.TypeConfigResponse)
	if err != nil {
		return nil, err
	}
	return reply.Settings, nil
}

func (c *Client) ConfigGet(ctx context.Context, key string) (string, error) {
	reply, err := c.do(ctx, &message.Message{Type: message.TypeConfigGet, Key: key}, message.TypeConfigResponse)
	if err != nil {
		return "", err
	}
	return single(reply)
}

func (c *Client) ConfigSet(ctx context.Context, key, value string) (string, error) {
	req := &message.Message{Type: message.TypeConfigSet, Key: key, Value: value}
	reply, err := c.do(ctx, req, message.TypeConfigResponse)
	if err != nil {
		return "", err
	}
	return single(reply)
}

func (c *Client) do(ctx context.Context, req *message.Message, want message.Type) (*message.Message, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	wc := wire.New(conn)
	defer wc.Close()

	// ctx owns the deadline for the whole exchange.
	dl, _ := ctx.Deadline()
	_ = wc.SetDeadline(dl)
	stop := context.AfterFunc(ctx, func() { _ = wc.SetDeadline(time.Now()) })
	defer stop()

	if err := wc.WriteMsg(req); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("send %s: %w", req.Type, err)
	}
	reply, err := wc.ReadMsg()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			// Only ctx sets deadlines on this conn.
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if reply.Type == message.TypeError {
		return nil, &RemoteError{Kind: reply.Kind, Message: reply.Error}
	}
	if reply.Type != want {
		return nil, fmt.Errorf("unexpected reply %s to %s", reply.Type, req.Type)
	}
	return reply, nil
}

func single(reply *message.Message) (string, error) {
	if len(reply.Settings) != 1 {
		return "", fmt.Errorf("expected one setting, got %d", len(reply.Settings))
	}
	return reply.Settings[0].Value, nil
}
