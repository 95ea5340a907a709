package common

import "time"

// AddParams is the input for task.add.
type AddParams struct {
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Checksum    string    `json:"checksum,omitempty"`
	ScheduledAt time.Time `json:"scheduledAt,omitempty"`
}

// AddResult is the response for task.add.
type AddResult struct {
	ID string `json:"id"`
}

// TaskIDParam is the common input naming one task.
type TaskIDParam struct {
	ID string `json:"id"`
}

// SetPriorityParams is the input for task.setPriority.
type SetPriorityParams struct {
	ID       string `json:"id"`
	Priority string `json:"priority"`
}

// TaskInfo is the wire form of one task record.
type TaskInfo struct {
	ID           string    `json:"id"`
	Source       string    `json:"source,omitempty"`
	FileName     string    `json:"fileName"`
	URL          string    `json:"url"`
	TotalBytes   int64     `json:"totalBytes"`
	PartialBytes int64     `json:"partialBytes"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	RetryCount   int       `json:"retryCount"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	ScheduledAt  time.Time `json:"scheduledAt,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ListParams is the input for task.list.
type ListParams struct {
	// Status filters by lifecycle state; empty means all.
	Status string `json:"status,omitempty"`
}

// ListResult is the response for task.list.
type ListResult struct {
	Tasks []*TaskInfo `json:"tasks"`
}

// StatusResult is the response for task.status: the stored record plus
// the live progress view when the task is actively downloading.
type StatusResult struct {
	Task       *TaskInfo `json:"task"`
	Fraction   float64   `json:"fraction"`
	Speed      float64   `json:"speed"`
	ETASeconds float64   `json:"etaSeconds"`
}

// FlushParams is the input for queue.flush.
type FlushParams struct {
	// OlderThanHours keeps completed records newer than this many
	// hours. Zero flushes all completed records.
	OlderThanHours int `json:"olderThanHours,omitempty"`
}

// FlushResult is the response for queue.flush.
type FlushResult struct {
	Removed int `json:"removed"`
}

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

// EmptyResult is the placeholder for methods that return no data.
type EmptyResult struct{}

// ProgressEntry is one task's live transfer view inside a progress
// notification.
type ProgressEntry struct {
	Fraction   float64 `json:"fraction"`
	Speed      float64 `json:"speed"`
	ETASeconds float64 `json:"etaSeconds"`
	Done       int64   `json:"done"`
	Total      int64   `json:"total"`
}

// ProgressNotification is the task.progress push payload: the batched
// snapshot of all actively downloading tasks.
type ProgressNotification struct {
	Tasks map[string]ProgressEntry `json:"tasks"`
}

// StateChangedNotification is the task.stateChanged push payload.
// It carries no detail; clients re-fetch the list.
type StateChangedNotification struct{}
