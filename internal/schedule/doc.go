// Package schedule provides deferred-start timing for the ia-helper
// daemon. A single goroutine owns a min-heap of events sorted by
// trigger time and sleeps with a 60-second cap, so NTP steps, DST
// transitions and system sleep never push a firing far past its
// wall-clock time.
//
// The heap is in-memory only: it is rebuilt at startup from the
// ScheduledAt fields of persisted tasks. Firing an event is a plain
// scheduler resume through the registered callback.
package schedule
