package schedule

import (
	"container/heap"
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/Gameaday/ia-helper-sub003/pkg/ialib"
)

const maxSleepCap = 60 * time.Second

// Timer fires deferred-start events. It runs a background goroutine
// that sleeps until the next event's trigger time, then calls the
// onTrigger callback with the task id. The goroutine exits when ctx is
// cancelled.
type Timer struct {
	addChan    chan Event
	removeChan chan string
	ctx        context.Context
}

// New creates and starts a Timer.
func New(ctx context.Context, onTrigger func(string)) *Timer {
	t := &Timer{
		addChan:    make(chan Event, 64),
		removeChan: make(chan string, 64),
		ctx:        ctx,
	}
	go t.run(onTrigger)
	return t
}

// Add enqueues a deferred start.
func (t *Timer) Add(event Event) {
	select {
	case t.addChan <- event:
	case <-t.ctx.Done():
	}
}

// Remove cancels the deferred start for a task id, if any.
func (t *Timer) Remove(taskID string) {
	select {
	case t.removeChan <- taskID:
	case <-t.ctx.Done():
	}
}

// run is the timer goroutine. It keeps a min-heap of events and sleeps
// at most maxSleepCap before re-evaluating, so clock steps are picked
// up within a minute.
func (t *Timer) run(onTrigger func(string)) {
	h := &eventHeap{}
	heap.Init(h)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			// No events; block on the channels alone.
			return nil
		}
		dur := time.Until((*h)[0].TriggerAt)
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-t.ctx.Done():
			return

		case event := <-t.addChan:
			heapPush(h, event)
			timerCh = resetTimer()

		case taskID := <-t.removeChan:
			heapRemoveByID(h, taskID)
			timerCh = resetTimer()

		case <-timerCh:
			now := time.Now()
			for h.Len() > 0 && !(*h)[0].TriggerAt.After(now) {
				onTrigger(heapPop(h).TaskID)
			}
			timerCh = resetTimer()
		}
	}
}

// NextCronOccurrence returns the first time the cron expression fires
// strictly after start. The expression is only used to compute a
// concrete start time; nothing recurs.
func NextCronOccurrence(expr string, start time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, start, false)
}

// ValidCronExpr reports whether the expression parses.
func ValidCronExpr(expr string) bool {
	return gronx.New().IsValid(expr)
}

// LoadPending scans persisted tasks at daemon startup. Paused tasks
// whose ScheduledAt already passed are returned in missed for an
// immediate resume; ones still in the future come back as events ready
// for the heap.
func LoadPending(tasks []ialib.Task, now time.Time) (missed []string, future []Event) {
	for _, task := range tasks {
		if task.Status != ialib.StatusPaused || task.ScheduledAt.IsZero() {
			continue
		}
		if task.ScheduledAt.After(now) {
			future = append(future, Event{TaskID: task.ID, TriggerAt: task.ScheduledAt})
		} else {
			missed = append(missed, task.ID)
		}
	}
	return missed, future
}
