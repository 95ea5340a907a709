package ialib

import (
	"testing"
	"time"
)

func TestBroadcaster_StatePing(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.SubscribeState()
	defer cancel()

	b.PublishState()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected state ping")
	}
}

func TestBroadcaster_PublishNeverBlocks(t *testing.T) {
	b := NewBroadcaster()
	_, cancel := b.SubscribeState()
	defer cancel()

	// Nobody reads; repeated publishes must coalesce, not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.PublishState()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishState blocked on a slow subscriber")
	}
}

func TestBroadcaster_SlowConsumerSeesNewestSnapshot(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.SubscribeProgress()
	defer cancel()

	b.PublishProgress(Snapshot{"t1": {Done: 1}})
	b.PublishProgress(Snapshot{"t1": {Done: 2}})
	b.PublishProgress(Snapshot{"t1": {Done: 3}})

	select {
	case snap := <-ch:
		if snap["t1"].Done != 3 {
			t.Fatalf("expected newest snapshot (done=3), got done=%d", snap["t1"].Done)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot")
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.SubscribeState()
	cancel()

	b.PublishState()

	select {
	case <-ch:
		t.Fatal("cancelled subscriber should not receive events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1, cancel1 := b.SubscribeProgress()
	defer cancel1()
	ch2, cancel2 := b.SubscribeProgress()
	defer cancel2()

	b.PublishProgress(Snapshot{"t1": {Done: 7}})

	for i, ch := range []<-chan Snapshot{ch1, ch2} {
		select {
		case snap := <-ch:
			if snap["t1"].Done != 7 {
				t.Errorf("subscriber %d: unexpected snapshot %v", i+1, snap)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: expected a snapshot", i+1)
		}
	}
}
