package ialib

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/Gameaday/ia-helper-sub003/pkg/logger"
)

// stopReason records why an active worker was signalled to stop, so the
// exit path knows which status transition to apply.
type stopReason int

const (
	reasonNone stopReason = iota
	reasonPause
	reasonCancel
	reasonShutdown
)

// slot is one occupied unit of bounded worker-pool concurrency. It is
// owned by the scheduler; workers never touch it.
type slot struct {
	cancel    context.CancelFunc
	done      chan struct{}
	reason    stopReason
	unflushed int64
	lastFlush time.Time
}

// SchedulerOpts configures a Scheduler. Zero fields take defaults.
type SchedulerOpts struct {
	// MaxConcurrent bounds the number of simultaneously downloading
	// tasks. Defaults to DefMaxConcurrent.
	MaxConcurrent int
	// DownloadDir is where finished and partial files are written.
	DownloadDir string
	// Client is the HTTP client used for all transfers.
	Client *http.Client
	// FS is the filesystem used for partial and finished files.
	FS afero.Fs
	// ChunkSize is the per-copy-cycle read size.
	ChunkSize int
	// FlushBytes and FlushInterval bound how often partialBytes is
	// persisted mid-transfer (whichever threshold trips first).
	FlushBytes    int64
	FlushInterval time.Duration
	// ProgressInterval is the snapshot publish cadence.
	ProgressInterval time.Duration
	// Retry is the transient-failure retry policy.
	Retry *RetryConfig
	// UserAgent overrides the transfer User-Agent header.
	UserAgent string
	// Logger receives scheduler and worker events.
	Logger logger.Logger
}

// Scheduler is the single coordinating authority over the pending queue
// and the active-slot table. Every queue-mutating command runs through
// its one mutex-guarded command path; workers report back through
// callbacks that re-enter the same path. No lock is held across I/O on
// the transfer path, only short critical sections around the queue and
// slot table.
type Scheduler struct {
	mu      sync.Mutex
	store   TaskStore
	tasks   map[string]*Task
	pending pendingQueue
	active  map[string]*slot
	limit   int
	closed  bool

	dir           string
	client        *http.Client
	fs            afero.Fs
	chunk         int
	flushBytes    int64
	flushInterval time.Duration
	progInterval  time.Duration
	retry         RetryConfig
	userAgent     string

	tracker  *ProgressTracker
	events   *Broadcaster
	log      logger.Logger
	lastSnap Snapshot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler loads all persisted tasks from the store and rebinds
// their state: tasks found downloading are necessarily stale (their
// worker died with the process) and are downgraded to queued; paused,
// completed, error and cancelled tasks are left untouched. No worker
// starts until Start is called.
func NewScheduler(store TaskStore, opts *SchedulerOpts) (*Scheduler, error) {
	if opts == nil {
		opts = &SchedulerOpts{}
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefMaxConcurrent
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = int(DefChunkSize)
	}
	if opts.FlushBytes <= 0 {
		opts.FlushBytes = DefFlushBytes
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefFlushInterval
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefProgressInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefUserAgent
	}
	retry := DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		store:         store,
		tasks:         make(map[string]*Task),
		active:        make(map[string]*slot),
		limit:         opts.MaxConcurrent,
		dir:           opts.DownloadDir,
		client:        opts.Client,
		fs:            opts.FS,
		chunk:         opts.ChunkSize,
		flushBytes:    opts.FlushBytes,
		flushInterval: opts.FlushInterval,
		progInterval:  opts.ProgressInterval,
		retry:         retry,
		userAgent:     opts.UserAgent,
		tracker:       NewProgressTracker(),
		events:        NewBroadcaster(),
		log:           opts.Logger,
		ctx:           ctx,
		cancel:        cancel,
	}

	tasks, err := store.All()
	if err != nil {
		cancel()
		return nil, &StorageError{Op: "load tasks", Err: err}
	}
	for _, t := range tasks {
		if t.Status == StatusDownloading {
			t.Status = StatusQueued
			if perr := s.persistLocked(t); perr != nil {
				s.log.Warning("rebind %s: %s", t.ID, perr.Error())
			}
		}
		s.tasks[t.ID] = t
		if t.Status == StatusQueued {
			s.pending.push(t)
		}
	}
	return s, nil
}

// Events returns the scheduler's broadcast channels.
func (s *Scheduler) Events() *Broadcaster { return s.events }

// Start begins admitting queued tasks and publishing progress
// snapshots. It returns immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.admitLocked()
	s.mu.Unlock()
	s.events.PublishState()
	go s.progressLoop()
}

// progressLoop publishes the batched snapshot on a fixed cadence,
// never on individual chunks, to bound observer load.
func (s *Scheduler) progressLoop() {
	ticker := time.NewTicker(s.progInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			snap := s.tracker.Sample()
			s.mu.Lock()
			s.lastSnap = snap
			s.mu.Unlock()
			if len(snap) > 0 {
				s.events.PublishProgress(snap)
			}
		}
	}
}

// Close stops all workers and waits for them to exit. Active tasks keep
// the downloading status on disk; the next startup downgrades them to
// queued, so no progress is lost across restarts.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, sl := range s.active {
		if sl.reason == reasonNone {
			sl.reason = reasonShutdown
		}
	}
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
	return nil
}

// Enqueue adds a task to the queue. It is a no-op when the id is
// already known. The task is persisted as queued and admitted
// immediately if a slot is free; partial bytes are seeded from any
// existing on-disk partial file. A task with a future ScheduledAt rests
// as paused until the schedule timer resumes it.
func (s *Scheduler) Enqueue(t *Task) error {
	if t.URL == "" {
		return ErrEmptyURL
	}
	if t.ID == "" {
		t.ID = NewTaskID()
	}
	if t.FileName == "" {
		t.FileName = path.Base(t.URL)
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	if _, exists := s.tasks[t.ID]; exists {
		s.mu.Unlock()
		return nil
	}
	if t.TotalBytes == 0 {
		t.TotalBytes = SizeUnknown
	}
	if fi, err := s.fs.Stat(t.SavePath(s.dir)); err == nil {
		t.PartialBytes = fi.Size()
	}
	if !t.ScheduledAt.IsZero() && t.ScheduledAt.After(now) {
		t.Status = StatusPaused
	} else {
		t.Status = StatusQueued
	}
	err := s.persistLocked(t)
	s.tasks[t.ID] = t
	if t.Status == StatusQueued {
		s.pending.push(t)
		s.admitLocked()
	}
	s.mu.Unlock()
	s.events.PublishState()
	return err
}

// Pause stops a task at the next chunk boundary, persists its latest
// byte count and frees its slot for the next queued task. Pausing an
// already-paused task succeeds with no effect.
func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	switch t.Status {
	case StatusPaused:
		s.mu.Unlock()
		return nil
	case StatusQueued:
		s.pending.remove(id)
		t.Status = StatusPaused
		err := s.persistLocked(t)
		s.mu.Unlock()
		s.events.PublishState()
		return err
	case StatusDownloading:
		done := s.stopActiveLocked(id, reasonPause)
		s.mu.Unlock()
		if done != nil {
			<-done
		}
		s.mu.Lock()
		st := t.Status
		s.mu.Unlock()
		// The worker may have raced to a terminal state before the stop
		// signal reached it; a nil return must mean the task is paused.
		if st != StatusPaused {
			return fmt.Errorf("%w: task finished as %s while pausing", ErrConflict, st)
		}
		return nil
	case StatusCompleted, StatusError, StatusCancelled:
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot pause a %s task", ErrInvalidTransition, t.Status)
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, t.Status)
	}
}

// Resume returns a paused task to the queue, or admits it immediately
// when a slot is free. The transfer continues from the persisted byte
// offset. Resuming a queued or downloading task is a no-op.
func (s *Scheduler) Resume(id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	switch t.Status {
	case StatusPaused:
		t.Status = StatusQueued
		t.ScheduledAt = time.Time{}
		err := s.persistLocked(t)
		s.pending.push(t)
		s.admitLocked()
		s.mu.Unlock()
		s.events.PublishState()
		return err
	case StatusQueued, StatusDownloading:
		s.mu.Unlock()
		return nil
	case StatusCompleted, StatusError, StatusCancelled:
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot resume a %s task", ErrInvalidTransition, t.Status)
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, t.Status)
	}
}

// Retry re-queues a task that ended in the error state, resetting its
// retry counter to zero.
func (s *Scheduler) Retry(id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.Status != StatusError {
		s.mu.Unlock()
		return fmt.Errorf("%w: can only retry an error task, not %s", ErrInvalidTransition, t.Status)
	}
	t.Status = StatusQueued
	t.RetryCount = 0
	t.ErrorMessage = ""
	err := s.persistLocked(t)
	s.pending.push(t)
	s.admitLocked()
	s.mu.Unlock()
	s.events.PublishState()
	return err
}

// Remove cancels a task. An active worker is interrupted with bounded
// latency and its partial file kept; a queued task is simply dequeued.
// The persisted record survives with status cancelled; Delete removes
// it for good.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	switch t.Status {
	case StatusDownloading:
		done := s.stopActiveLocked(id, reasonCancel)
		s.mu.Unlock()
		if done != nil {
			<-done
		}
		s.mu.Lock()
		st := t.Status
		s.mu.Unlock()
		if st != StatusCancelled {
			return fmt.Errorf("%w: task finished as %s before removal", ErrConflict, st)
		}
		return nil
	case StatusQueued:
		s.pending.remove(id)
		t.Status = StatusCancelled
		err := s.persistLocked(t)
		s.mu.Unlock()
		s.events.PublishState()
		return err
	case StatusPaused, StatusError:
		t.Status = StatusCancelled
		err := s.persistLocked(t)
		s.mu.Unlock()
		s.events.PublishState()
		return err
	case StatusCancelled:
		s.mu.Unlock()
		return nil
	case StatusCompleted:
		s.mu.Unlock()
		return fmt.Errorf("%w: completed tasks can only be deleted", ErrInvalidTransition)
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, t.Status)
	}
}

// Delete removes a task's persisted record. The task must not be
// actively downloading; cancel or pause it first.
func (s *Scheduler) Delete(id string) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	if _, running := s.active[id]; running || t.Status == StatusDownloading {
		s.mu.Unlock()
		return ErrTaskActive
	}
	s.pending.remove(id)
	if err := s.store.Delete(id); err != nil {
		s.mu.Unlock()
		return &StorageError{Op: "delete task", Err: err}
	}
	delete(s.tasks, id)
	s.mu.Unlock()
	s.events.PublishState()
	return nil
}

// PauseAll pauses every queued and downloading task. It is serialized
// against the per-task operations, so no task is double-admitted or
// left slot-less. Per-task failures are aggregated.
func (s *Scheduler) PauseAll() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	var errs *multierror.Error
	for {
		t := s.pending.pop()
		if t == nil {
			break
		}
		t.Status = StatusPaused
		if err := s.persistLocked(t); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	dones := make([]chan struct{}, 0, len(s.active))
	for id := range s.active {
		if done := s.stopActiveLocked(id, reasonPause); done != nil {
			dones = append(dones, done)
		}
	}
	s.mu.Unlock()
	for _, done := range dones {
		<-done
	}
	s.events.PublishState()
	return errs.ErrorOrNil()
}

// ResumeAll re-queues every paused task, preserving priority ordering,
// and fills the free slots.
func (s *Scheduler) ResumeAll() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	var errs *multierror.Error
	for _, t := range s.tasks {
		if t.Status != StatusPaused {
			continue
		}
		t.Status = StatusQueued
		t.ScheduledAt = time.Time{}
		if err := s.persistLocked(t); err != nil {
			errs = multierror.Append(errs, err)
		}
		s.pending.push(t)
	}
	s.admitLocked()
	s.mu.Unlock()
	s.events.PublishState()
	return errs.ErrorOrNil()
}

// SetPriority updates a task's admission priority and re-sorts the
// pending queue. A task that is already downloading is never preempted.
func (s *Scheduler) SetPriority(id string, p Priority) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	t.Priority = p
	if t.Status == StatusQueued {
		s.pending.resort()
	}
	err := s.persistLocked(t)
	s.mu.Unlock()
	s.events.PublishState()
	return err
}

// Flush deletes completed task records last updated before the given
// age and returns how many were removed.
func (s *Scheduler) Flush(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	n, err := s.store.DeleteCompletedBefore(cutoff)
	if err != nil {
		return 0, &StorageError{Op: "flush", Err: err}
	}
	s.mu.Lock()
	for id, t := range s.tasks {
		if t.Status == StatusCompleted && t.UpdatedAt.Before(cutoff) {
			delete(s.tasks, id)
		}
	}
	s.mu.Unlock()
	if n > 0 {
		s.events.PublishState()
	}
	return n, nil
}

// Get returns a copy of the task with the given id.
func (s *Scheduler) Get(id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return t.clone(), nil
}

// List returns copies of all known tasks ordered by creation time.
func (s *Scheduler) List() []Task {
	s.mu.Lock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.clone())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ProgressSnapshot returns the most recently published progress
// snapshot. It never triggers a new sample, so reading it does not
// disturb the speed average.
func (s *Scheduler) ProgressSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSnap
}

// ActiveCount returns the number of occupied slots.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// QueuedCount returns the number of tasks waiting in the pending queue.
func (s *Scheduler) QueuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.len()
}

// stopActiveLocked signals the worker of an active task to stop for the
// given reason and returns its done channel. A worker that is already
// stopping keeps its original reason; callers wait on done and re-check
// the task's final status, which serializes conflicting control
// operations behind the in-flight transition.
func (s *Scheduler) stopActiveLocked(id string, reason stopReason) chan struct{} {
	sl, ok := s.active[id]
	if !ok {
		return nil
	}
	if sl.reason == reasonNone {
		sl.reason = reason
		sl.cancel()
	}
	return sl.done
}

// admitLocked fills free slots from the head of the pending queue.
func (s *Scheduler) admitLocked() {
	if s.closed {
		return
	}
	for len(s.active) < s.limit {
		t := s.pending.pop()
		if t == nil {
			return
		}
		s.startLocked(t)
	}
}

// startLocked transitions a task to downloading and launches its
// worker. A persistence failure is fatal to the task only.
func (s *Scheduler) startLocked(t *Task) {
	t.Status = StatusDownloading
	t.ErrorMessage = ""
	if err := s.persistLocked(t); err != nil {
		t.Status = StatusError
		t.ErrorMessage = err.Error()
		s.log.Error("admit %s: %s", t.ID, err.Error())
		return
	}

	wctx, cancel := context.WithCancel(s.ctx)
	sl := &slot{
		cancel:    cancel,
		done:      make(chan struct{}),
		lastFlush: time.Now(),
	}
	s.active[t.ID] = sl
	s.tracker.Track(t.ID, t.TotalBytes, t.PartialBytes)

	id := t.ID
	w := &worker{
		id:       id,
		url:      t.URL,
		dest:     t.SavePath(s.dir),
		offset:   t.PartialBytes,
		total:    t.TotalBytes,
		checksum: t.Checksum,
		retries:  t.RetryCount,
		client:   s.client,
		fs:       s.fs,
		chunk:    s.chunk,
		retry:    s.retry,
		ua:       s.userAgent,
		cb: workerCallbacks{
			onDelta: func(n int64) { s.noteDelta(id, n) },
			onRetry: func(attempt int, err error) { s.noteRetry(id, attempt, err) },
			onSize:  func(total int64) { s.noteSize(id, total) },
		},
	}
	s.log.Info("start %s: %s (offset %d)", id, t.FileName, t.PartialBytes)
	s.wg.Add(1)
	go func() {
		res := w.run(wctx)
		s.onWorkerExit(id, res)
	}()
}

// noteDelta applies a worker's byte delta to the task record and
// persists it when the batching threshold trips. Byte-count writes are
// ordered before status transitions for the same task because both run
// under the scheduler lock and the worker has stopped by the time a
// transition lands.
func (s *Scheduler) noteDelta(id string, n int64) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	sl := s.active[id]
	if !ok || sl == nil {
		s.mu.Unlock()
		return
	}
	t.PartialBytes += n
	sl.unflushed += n
	if sl.unflushed >= s.flushBytes || time.Since(sl.lastFlush) >= s.flushInterval {
		if err := s.persistLocked(t); err != nil {
			s.log.Warning("flush %s: %s", id, err.Error())
		}
		sl.unflushed = 0
		sl.lastFlush = time.Now()
	}
	s.mu.Unlock()
	s.tracker.Add(id, n)
}

// noteRetry records one failed attempt. retryCount grows by exactly one
// per failure and resets only through an explicit Retry call.
func (s *Scheduler) noteRetry(id string, attempt int, err error) {
	s.mu.Lock()
	if t, ok := s.tasks[id]; ok {
		t.RetryCount = attempt
		t.ErrorMessage = err.Error()
		if perr := s.persistLocked(t); perr != nil {
			s.log.Warning("retry persist %s: %s", id, perr.Error())
		}
	}
	s.mu.Unlock()
	s.log.Warning("retry %s attempt %d: %s", id, attempt, err.Error())
	s.events.PublishState()
}

// noteSize records the total size discovered from the first response.
func (s *Scheduler) noteSize(id string, total int64) {
	s.mu.Lock()
	if t, ok := s.tasks[id]; ok {
		t.TotalBytes = total
		if err := s.persistLocked(t); err != nil {
			s.log.Warning("size persist %s: %s", id, err.Error())
		}
	}
	s.mu.Unlock()
	s.tracker.SetTotal(id, total)
}

// onWorkerExit applies the terminal transition for a finished worker,
// frees its slot exactly once and admits the next queued task. The done
// channel closes only after the new status is persisted, so callers
// waiting on a control operation observe the final state.
func (s *Scheduler) onWorkerExit(id string, res workerResult) {
	s.mu.Lock()
	sl := s.active[id]
	delete(s.active, id)
	if t, ok := s.tasks[id]; ok {
		switch res.outcome {
		case outcomeCompleted:
			if t.TotalBytes >= 0 {
				t.PartialBytes = t.TotalBytes
			}
			t.Status = StatusCompleted
			t.ErrorMessage = ""
			s.log.Info("completed %s: %s", id, t.FileName)
		case outcomeFailed:
			t.Status = StatusError
			t.ErrorMessage = res.err.Error()
			s.log.Error("failed %s: %s", id, res.err.Error())
		case outcomeStopped:
			reason := reasonShutdown
			if sl != nil {
				reason = sl.reason
			}
			switch reason {
			case reasonPause:
				t.Status = StatusPaused
			case reasonCancel:
				t.Status = StatusCancelled
			default:
				// Shutdown: keep downloading on disk; the next startup
				// downgrades it to queued and the transfer resumes.
			}
		}
		if err := s.persistLocked(t); err != nil {
			s.log.Error("persist %s: %s", id, err.Error())
		}
	}
	s.tracker.Remove(id)
	s.admitLocked()
	if sl != nil {
		close(sl.done)
	}
	s.mu.Unlock()
	s.events.PublishState()
	s.wg.Done()
}

// persistLocked saves one task record, stamping UpdatedAt. Failures are
// wrapped as StorageError and never crash the scheduler.
func (s *Scheduler) persistLocked(t *Task) error {
	t.UpdatedAt = time.Now()
	if err := s.store.Save(t); err != nil {
		return &StorageError{Op: "save task", Err: err}
	}
	return nil
}
