// Package server exposes the scheduler over HTTP: a JSON-RPC 2.0
// bridge at /rpc for one-shot calls and a WebSocket endpoint at /ws
// carrying JSON-RPC plus push notifications for state and progress
// events.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"

	"github.com/Gameaday/ia-helper-sub003/common"
	"github.com/Gameaday/ia-helper-sub003/internal/schedule"
	"github.com/Gameaday/ia-helper-sub003/pkg/ialib"
	"github.com/Gameaday/ia-helper-sub003/pkg/logger"
)

// Server ties the scheduler, the schedule timer and the RPC surface to
// one HTTP listener.
type Server struct {
	port     int
	cfg      *RPCConfig
	log      logger.Logger
	sched    *ialib.Scheduler
	notifier *RPCNotifier

	mu      sync.Mutex
	rpc     *RPCServer
	timer   *schedule.Timer
	httpSrv *http.Server
}

// NewServer creates a Server. Nothing listens until Start is called.
func NewServer(l logger.Logger, sched *ialib.Scheduler, cfg *RPCConfig, port int) *Server {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Server{
		port:     port,
		cfg:      cfg,
		log:      l,
		sched:    sched,
		notifier: NewRPCNotifier(l),
	}
}

// Start arms the schedule timer, begins forwarding scheduler events to
// connected clients and serves HTTP until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.timer = schedule.New(ctx, s.onScheduleFire)
	s.rpc = NewRPCServer(s.cfg, s.sched, s.timer)

	// Missed schedules start right away; future ones go on the heap.
	missed, future := schedule.LoadPending(s.sched.List(), time.Now())
	for _, id := range missed {
		if err := s.sched.Resume(id); err != nil {
			s.log.Warning("missed schedule %s: %s", id, err.Error())
		}
	}
	for _, ev := range future {
		s.timer.Add(ev)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", requireToken(s.cfg.Secret, s.rpc.bridge))
	mux.Handle("/ws", requireToken(s.cfg.Secret, http.HandlerFunc(s.handleWS)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: mux,
	}
	s.mu.Unlock()

	go s.forwardEvents(ctx)
	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	s.log.Info("listening on %s", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// onScheduleFire is the timer callback: a deferred start is a plain
// resume.
func (s *Server) onScheduleFire(id string) {
	if err := s.sched.Resume(id); err != nil {
		s.log.Warning("scheduled start %s: %s", id, err.Error())
	}
}

// forwardEvents translates the scheduler's broadcast channels into
// JSON-RPC push notifications for all connected WebSocket clients.
func (s *Server) forwardEvents(ctx context.Context) {
	stateCh, cancelState := s.sched.Events().SubscribeState()
	defer cancelState()
	progressCh, cancelProgress := s.sched.Events().SubscribeProgress()
	defer cancelProgress()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stateCh:
			s.notifier.Broadcast(common.NotifyStateChanged, &common.StateChangedNotification{})
		case snap := <-progressCh:
			s.notifier.Broadcast(common.NotifyProgress, progressNotification(snap))
		}
	}
}

func progressNotification(snap ialib.Snapshot) *common.ProgressNotification {
	n := &common.ProgressNotification{Tasks: make(map[string]common.ProgressEntry, len(snap))}
	for id, pr := range snap {
		n.Tasks[id] = common.ProgressEntry{
			Fraction:   pr.Fraction,
			Speed:      pr.Speed,
			ETASeconds: pr.ETASeconds,
			Done:       pr.Done,
			Total:      pr.Total,
		}
	}
	return n
}

// handleWS upgrades the connection and runs a jrpc2 server over it
// with push enabled. The server joins the notifier's broadcast set for
// the lifetime of the connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		s.log.Warning("ws accept: %s", err.Error())
		return
	}

	ch := &wsChannel{conn: conn, ctx: r.Context()}
	srv := jrpc2.NewServer(s.rpc.methods, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(ch)

	s.notifier.Register(srv)
	defer s.notifier.Unregister(srv)
	srv.Wait()
}

// Shutdown stops the HTTP listener and the RPC bridge. Scheduler
// shutdown is the caller's concern.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.log.Warning("http shutdown: %s", err.Error())
		}
		s.httpSrv = nil
	}
	if s.rpc != nil {
		s.rpc.Close()
	}
	return nil
}
