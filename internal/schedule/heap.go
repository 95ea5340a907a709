package schedule

import "container/heap"

// eventHeap implements container/heap.Interface for Event, earliest
// TriggerAt first.
type eventHeap []Event

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].TriggerAt.Before(h[j].TriggerAt) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func heapPush(h *eventHeap, e Event) {
	heap.Push(h, e)
}

// heapPop removes and returns the earliest event. Panics when empty.
func heapPop(h *eventHeap) Event {
	return heap.Pop(h).(Event)
}

// heapRemoveByID removes the first event for the given task id,
// reporting whether one was found.
func heapRemoveByID(h *eventHeap, taskID string) bool {
	for i, e := range *h {
		if e.TaskID == taskID {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}
