package ialib

import "sync"

// Broadcaster fans out two event streams to any number of observers:
// coarse state-change pings (consumers re-fetch the task list) and
// periodic progress snapshots. Emission never blocks the producer; a
// subscriber that is not keeping up misses intermediate events, which
// is safe because both streams are re-fetchable or superseded by the
// next snapshot.
type Broadcaster struct {
	mu       sync.Mutex
	nextID   int
	state    map[int]chan struct{}
	progress map[int]chan Snapshot
}

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		state:    make(map[int]chan struct{}),
		progress: make(map[int]chan Snapshot),
	}
}

// SubscribeState returns a channel that receives a ping whenever any
// task's status or set membership changes, plus a cancel func that
// releases the subscription.
func (b *Broadcaster) SubscribeState() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan struct{}, 1)
	b.state[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.state, id)
	}
}

// SubscribeProgress returns a channel that receives the batched
// progress snapshot on the tracker's cadence, plus a cancel func.
func (b *Broadcaster) SubscribeProgress() (<-chan Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Snapshot, 1)
	b.progress[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.progress, id)
	}
}

// PublishState notifies all state subscribers without blocking. Pings
// carry no payload, so coalescing pending ones loses nothing.
func (b *Broadcaster) PublishState() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.state {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// PublishProgress delivers the snapshot to all progress subscribers
// without blocking. A full buffer is drained first so a slow consumer
// always sees the newest snapshot next.
func (b *Broadcaster) PublishProgress(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.progress {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
