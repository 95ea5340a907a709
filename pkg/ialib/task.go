// Package ialib provides the core download engine for ia-helper: the
// task model, the bounded-concurrency scheduler, the resumable transfer
// worker, progress tracking and event broadcasting.
package ialib

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

const (
	// StatusQueued means the task is waiting for a free worker slot.
	StatusQueued Status = "queued"
	// StatusDownloading means a worker is actively transferring bytes.
	StatusDownloading Status = "downloading"
	// StatusPaused means the task was stopped by the user and can resume.
	StatusPaused Status = "paused"
	// StatusCompleted means all bytes were received and verified.
	StatusCompleted Status = "completed"
	// StatusError means the transfer failed after exhausting retries.
	StatusError Status = "error"
	// StatusCancelled means the task was removed by the user.
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the defined states.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusDownloading, StatusPaused,
		StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal state. Terminal tasks are
// only ever removed by an explicit delete, never restarted implicitly.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Priority is an admission-order hint for queued tasks. It never
// preempts a task that is already running.
type Priority int

const (
	// PriorityLow is the lowest admission priority.
	PriorityLow Priority = iota
	// PriorityNormal is the default admission priority.
	PriorityNormal
	// PriorityHigh is the highest admission priority.
	PriorityHigh
)

// String returns the enumerated string form used in the task store.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// ParsePriority converts the enumerated string form back to a Priority.
// Unknown values map to PriorityNormal.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// SizeUnknown is the sentinel for TotalBytes before the first response
// reveals the real content length.
const SizeUnknown int64 = -1

// Task is one file's download job and its persisted state.
type Task struct {
	// ID is the stable identifier of the task.
	ID string `json:"id"`
	// Source is the archive item or collection key the file belongs to.
	Source string `json:"source"`
	// FileName is the name the file is saved under.
	FileName string `json:"file_name"`
	// URL is the remote location of the file.
	URL string `json:"url"`
	// TotalBytes is the expected size, or SizeUnknown.
	TotalBytes int64 `json:"total_bytes"`
	// PartialBytes is the number of bytes durably received so far.
	PartialBytes int64 `json:"partial_bytes"`
	// Status is the current lifecycle state.
	Status Status `json:"status"`
	// Priority orders admission from the pending queue.
	Priority Priority `json:"priority"`
	// RetryCount is the number of failed attempts of the current run.
	RetryCount int `json:"retry_count"`
	// ErrorMessage holds the last failure, empty when none.
	ErrorMessage string `json:"error_message,omitempty"`
	// Checksum is an optional expected digest in "algo:hex" form.
	// Empty when the source does not supply one.
	Checksum string `json:"checksum,omitempty"`
	// ScheduledAt defers admission until the given time, if set. The
	// task rests in the paused state until the schedule timer fires.
	ScheduledAt time.Time `json:"scheduled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SavePath returns the destination path of the task below dir.
func (t *Task) SavePath(dir string) string {
	return filepath.Join(dir, SanitizeFilename(t.FileName))
}

// Remaining returns the bytes left to transfer, or SizeUnknown when the
// total size has not been discovered yet.
func (t *Task) Remaining() int64 {
	if t.TotalBytes < 0 {
		return SizeUnknown
	}
	return t.TotalBytes - t.PartialBytes
}

// clone returns a shallow copy safe to hand out to callers.
func (t *Task) clone() Task {
	return *t
}

// NewTaskID returns a fresh stable task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// TaskStore is the persistence boundary for task records. The scheduler
// treats it as the single source of truth across restarts.
type TaskStore interface {
	// Save atomically creates or updates one task record.
	Save(t *Task) error
	// All returns every persisted task.
	All() ([]*Task, error)
	// Get returns the task with the given id, or ErrTaskNotFound.
	Get(id string) (*Task, error)
	// Delete removes the record with the given id.
	Delete(id string) error
	// DeleteCompletedBefore removes completed records last updated
	// before the cutoff and returns how many were removed.
	DeleteCompletedBefore(cutoff time.Time) (int, error)
}
