package ialib

import "sort"

// pendingQueue holds queued tasks ordered by priority descending, then
// by CreatedAt ascending within equal priority. It is owned exclusively
// by the Scheduler and mutated only under the scheduler lock.
type pendingQueue struct {
	items []*Task
}

// push inserts t in order: before the first entry with lower priority,
// or with equal priority but a later CreatedAt. Re-queued tasks keep
// their original creation-order position among equals.
func (q *pendingQueue) push(t *Task) {
	idx := len(q.items)
	for i, it := range q.items {
		if it.Priority < t.Priority ||
			(it.Priority == t.Priority && it.CreatedAt.After(t.CreatedAt)) {
			idx = i
			break
		}
	}
	q.items = append(q.items, nil)
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = t
}

// pop removes and returns the head of the queue, or nil when empty.
func (q *pendingQueue) pop() *Task {
	if len(q.items) == 0 {
		return nil
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t
}

// remove drops the task with the given id, reporting whether it was queued.
func (q *pendingQueue) remove(id string) bool {
	for i, it := range q.items {
		if it.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

func (q *pendingQueue) contains(id string) bool {
	for _, it := range q.items {
		if it.ID == id {
			return true
		}
	}
	return false
}

// resort restores queue order after a priority change. The sort is
// stable so equal-priority tasks keep their CreatedAt order.
func (q *pendingQueue) resort() {
	sort.SliceStable(q.items, func(i, j int) bool {
		a, b := q.items[i], q.items[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (q *pendingQueue) len() int { return len(q.items) }

// ids returns the queued task ids in admission order.
func (q *pendingQueue) ids() []string {
	out := make([]string, len(q.items))
	for i, it := range q.items {
		out[i] = it.ID
	}
	return out
}
