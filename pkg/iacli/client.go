// Package iacli is the client library for the download daemon. It
// speaks JSON-RPC 2.0 over a WebSocket connection and dispatches the
// daemon's push notifications to registered handlers.
package iacli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
)

type Client struct {
	mu       sync.RWMutex
	conn     *cws.Conn
	rpc      *jrpc2.Client
	handlers map[string]Handler
}

// NewClient dials the daemon's /ws endpoint. The secret, when set, is
// sent as a Bearer token on the upgrade request.
func NewClient(ctx context.Context, addr, secret string) (*Client, error) {
	opts := &cws.DialOptions{}
	if secret != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + secret}}
	}
	conn, _, err := cws.Dial(ctx, fmt.Sprintf("ws://%s/ws", addr), opts)
	if err != nil {
		return nil, fmt.Errorf("error connecting to server: %s", err.Error())
	}

	c := &Client{
		conn:     conn,
		handlers: make(map[string]Handler),
	}
	ch := &wsChannel{conn: conn, ctx: context.Background()}
	c.rpc = jrpc2.NewClient(ch, &jrpc2.ClientOptions{
		OnNotify: c.dispatch,
	})
	return c, nil
}

// Handle registers a handler for a push notification method. Passing a
// nil handler removes the registration.
func (c *Client) Handle(method string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h == nil {
		delete(c.handlers, method)
		return
	}
	c.handlers[method] = h
}

func (c *Client) dispatch(req *jrpc2.Request) {
	c.mu.RLock()
	h, ok := c.handlers[req.Method()]
	c.mu.RUnlock()
	if !ok {
		return
	}
	var params json.RawMessage
	if err := req.UnmarshalParams(&params); err != nil {
		return
	}
	_ = h.Handle(params)
}

func (c *Client) Close() error {
	c.rpc.Close()
	return c.conn.Close(cws.StatusNormalClosure, "")
}

// wsChannel adapts the WebSocket connection to the jrpc2 Channel
// interface.
type wsChannel struct {
	conn *cws.Conn
	ctx  context.Context
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsChannel) Close() error {
	return c.conn.Close(cws.StatusNormalClosure, "")
}
