package schedule

import "time"

// Event is a pending deferred start in the timer heap.
type Event struct {
	// TaskID identifies the task to resume when TriggerAt is reached.
	TaskID string
	// TriggerAt is the wall-clock time the task should start.
	TriggerAt time.Time
}
