package server

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"

	"github.com/Gameaday/ia-helper-sub003/common"
)

// newPushServer wires a push-enabled jrpc2 server to an in-memory pipe
// and returns it together with the client side of the channel.
func newPushServer(t *testing.T) (*jrpc2.Server, channel.Channel) {
	t.Helper()
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	cli := channel.Line(cr, cw)
	srvCh := channel.Line(sr, sw)

	srv := jrpc2.NewServer(handler.Map{}, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(srvCh)
	t.Cleanup(func() {
		cli.Close()
		srv.Wait()
	})
	return srv, cli
}

// recvNotification reads one message off the client channel and
// decodes it as a JSON-RPC notification.
func recvNotification(t *testing.T, cli channel.Channel) (string, json.RawMessage) {
	t.Helper()
	type notification struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}

	done := make(chan notification, 1)
	go func() {
		data, err := cli.Recv()
		if err != nil {
			return
		}
		var n notification
		if json.Unmarshal(data, &n) == nil {
			done <- n
		}
	}()

	select {
	case n := <-done:
		return n.Method, n.Params
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a push notification")
		return "", nil
	}
}

func TestRPCNotifier_Broadcast(t *testing.T) {
	n := NewRPCNotifier(nil)
	srv, cli := newPushServer(t)
	n.Register(srv)

	if n.Count() != 1 {
		t.Fatalf("expected 1 registered server, got %d", n.Count())
	}

	n.Broadcast(common.NotifyProgress, &common.ProgressNotification{
		Tasks: map[string]common.ProgressEntry{
			"t1": {Fraction: 0.5, Speed: 1024, ETASeconds: 10, Done: 512, Total: 1024},
		},
	})

	method, params := recvNotification(t, cli)
	if method != common.NotifyProgress {
		t.Fatalf("expected %s, got %s", common.NotifyProgress, method)
	}
	var pn common.ProgressNotification
	if err := json.Unmarshal(params, &pn); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	entry, ok := pn.Tasks["t1"]
	if !ok {
		t.Fatal("notification missing task t1")
	}
	if entry.Fraction != 0.5 || entry.Done != 512 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestRPCNotifier_Unregister(t *testing.T) {
	n := NewRPCNotifier(nil)
	srv, _ := newPushServer(t)

	n.Register(srv)
	n.Unregister(srv)
	if n.Count() != 0 {
		t.Fatalf("expected 0 registered servers, got %d", n.Count())
	}

	// Broadcasting to an empty set is a no-op.
	n.Broadcast(common.NotifyStateChanged, &common.StateChangedNotification{})
}

func TestRPCNotifier_DropsDeadServer(t *testing.T) {
	n := NewRPCNotifier(nil)
	srv, cli := newPushServer(t)
	n.Register(srv)

	// Killing the transport makes the next Notify fail, which evicts
	// the server from the broadcast set.
	cli.Close()
	srv.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for n.Count() > 0 && time.Now().Before(deadline) {
		n.Broadcast(common.NotifyStateChanged, &common.StateChangedNotification{})
		time.Sleep(10 * time.Millisecond)
	}
	if n.Count() != 0 {
		t.Fatalf("expected dead server to be dropped, count=%d", n.Count())
	}
}

// The WebSocket adapter must satisfy the jrpc2 transport interface.
var _ channel.Channel = (*wsChannel)(nil)
