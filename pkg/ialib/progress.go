package ialib

import (
	"sync"
	"time"

	"github.com/VividCortex/ewma"
)

// Progress is the transient view of one active task's transfer. It is
// rebuilt from live samples and never persisted.
type Progress struct {
	// Fraction is completion in [0,1], or 0 while the size is unknown.
	Fraction float64 `json:"fraction"`
	// Speed is the smoothed transfer rate in bytes per second.
	Speed float64 `json:"speed"`
	// ETASeconds is the estimated time to completion, -1 when undefined.
	ETASeconds float64 `json:"eta_seconds"`
	// Done and Total mirror the task's byte counters for display.
	Done  int64 `json:"done"`
	Total int64 `json:"total"`
}

// Snapshot maps active task ids to their current Progress.
type Snapshot map[string]Progress

// ProgressTracker aggregates raw byte-delta samples per active task and
// computes smoothed speed and ETA. Speed uses an exponential moving
// average to suppress jitter from bursty chunks.
type ProgressTracker struct {
	mu     sync.Mutex
	active map[string]*taskMeter
	last   time.Time
}

type taskMeter struct {
	total   int64
	done    int64
	pending int64 // bytes accumulated since the last sample
	avg     ewma.MovingAverage
}

// NewProgressTracker creates an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		active: make(map[string]*taskMeter),
		last:   time.Now(),
	}
}

// Track registers a task that just entered the downloading state.
func (p *ProgressTracker) Track(id string, total, done int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[id] = &taskMeter{
		total: total,
		done:  done,
		avg:   ewma.NewMovingAverage(),
	}
}

// Add records a byte delta for an active task. Deltas from unknown ids
// are dropped (the task already left the downloading state).
func (p *ProgressTracker) Add(id string, n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.active[id]
	if !ok {
		return
	}
	m.done += n
	m.pending += n
}

// SetTotal updates the expected size once the first response reveals it.
func (p *ProgressTracker) SetTotal(id string, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.active[id]; ok {
		m.total = total
	}
}

// Remove drops a task from tracking; its id is absent from the next
// snapshot.
func (p *ProgressTracker) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, id)
}

// ActiveCount returns the number of tracked tasks.
func (p *ProgressTracker) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Sample folds the bytes accumulated since the previous call into each
// task's moving average and returns the resulting snapshot. It is meant
// to be called on a fixed cadence, never per chunk.
func (p *ProgressTracker) Sample() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(p.last).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-3
	}
	p.last = now

	snap := make(Snapshot, len(p.active))
	for id, m := range p.active {
		m.avg.Add(float64(m.pending) / elapsed)
		m.pending = 0

		pr := Progress{
			Speed:      m.avg.Value(),
			ETASeconds: -1,
			Done:       m.done,
			Total:      m.total,
		}
		if m.total > 0 {
			pr.Fraction = float64(m.done) / float64(m.total)
			if pr.Speed > 0 {
				pr.ETASeconds = float64(m.total-m.done) / pr.Speed
			}
		}
		snap[id] = pr
	}
	return snap
}
