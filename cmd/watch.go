package cmd

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"

	"github.com/Gameaday/ia-helper-sub003/cmd/common"
	cmn "github.com/Gameaday/ia-helper-sub003/common"
	"github.com/Gameaday/ia-helper-sub003/pkg/iacli"
)

// watcher owns one progress bar per running task and feeds it from the
// daemon's push notifications.
type watcher struct {
	mu       sync.Mutex
	p        *mpb.Progress
	bars     map[string]*mpb.Bar
	names    map[string]string
	lastTick map[string]time.Time
}

func (w *watcher) update(n *cmn.ProgressNotification) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	for id, entry := range n.Tasks {
		bar, ok := w.bars[id]
		if !ok {
			name := w.names[id]
			if name == "" {
				name = id
			}
			bar = common.InitBar(w.p, name, entry.Total, entry.Done)
			w.bars[id] = bar
			w.lastTick[id] = now
			continue
		}
		if entry.Total > 0 {
			bar.SetTotal(entry.Total, false)
		}
		bar.EwmaSetCurrent(entry.Done, now.Sub(w.lastTick[id]))
		w.lastTick[id] = now
	}
	// Tasks that left the snapshot are done or stopped.
	for id, bar := range w.bars {
		if _, ok := n.Tasks[id]; !ok {
			bar.Abort(true)
			delete(w.bars, id)
			delete(w.lastTick, id)
		}
	}
	return nil
}

func watch(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	runCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := newClient(runCtx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "watch", "new_client", err)
		return nil
	}
	defer client.Close()

	w := &watcher{
		p:        mpb.New(mpb.WithWidth(64), mpb.WithRefreshRate(100*time.Millisecond)),
		bars:     make(map[string]*mpb.Bar),
		names:    make(map[string]string),
		lastTick: make(map[string]time.Time),
	}

	// Seed file names so bars carry labels instead of raw ids.
	refreshNames := func() error {
		l, err := client.List(runCtx, "")
		if err != nil {
			return err
		}
		w.mu.Lock()
		for _, task := range l.Tasks {
			w.names[task.ID] = task.FileName
		}
		w.mu.Unlock()
		return nil
	}
	if err := refreshNames(); err != nil {
		common.PrintRuntimeErr(ctx, "watch", "get_list", err)
		return nil
	}

	client.Handle(cmn.NotifyProgress, iacli.NewProgressHandler(w.update))
	client.Handle(cmn.NotifyStateChanged, iacli.NewStateHandler(refreshNames))

	<-runCtx.Done()
	return nil
}
