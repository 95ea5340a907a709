package iacli

import (
	"context"
	"time"

	"github.com/Gameaday/ia-helper-sub003/common"
)

func invoke[T any](ctx context.Context, c *Client, method string, params any) (*T, error) {
	var d T
	if err := c.rpc.CallResult(ctx, method, params, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// AddOpts carries the optional fields of a task submission.
type AddOpts struct {
	Source      string
	FileName    string
	Priority    string
	Checksum    string
	ScheduledAt time.Time
}

// Add submits a new download and returns its id.
func (c *Client) Add(ctx context.Context, url string, opts *AddOpts) (*common.AddResult, error) {
	if opts == nil {
		opts = &AddOpts{}
	}
	return invoke[common.AddResult](ctx, c, common.MethodTaskAdd, &common.AddParams{
		URL:         url,
		Source:      opts.Source,
		FileName:    opts.FileName,
		Priority:    opts.Priority,
		Checksum:    opts.Checksum,
		ScheduledAt: opts.ScheduledAt,
	})
}

func (c *Client) Pause(ctx context.Context, id string) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodTaskPause, &common.TaskIDParam{ID: id})
	return err
}

func (c *Client) Resume(ctx context.Context, id string) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodTaskResume, &common.TaskIDParam{ID: id})
	return err
}

func (c *Client) Remove(ctx context.Context, id string) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodTaskRemove, &common.TaskIDParam{ID: id})
	return err
}

func (c *Client) Retry(ctx context.Context, id string) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodTaskRetry, &common.TaskIDParam{ID: id})
	return err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodTaskDelete, &common.TaskIDParam{ID: id})
	return err
}

func (c *Client) SetPriority(ctx context.Context, id, priority string) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodTaskSetPriority, &common.SetPriorityParams{
		ID:       id,
		Priority: priority,
	})
	return err
}

func (c *Client) PauseAll(ctx context.Context) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodTaskPauseAll, nil)
	return err
}

func (c *Client) ResumeAll(ctx context.Context) error {
	_, err := invoke[common.EmptyResult](ctx, c, common.MethodTaskResumeAll, nil)
	return err
}

// List returns all tasks, optionally filtered by status.
func (c *Client) List(ctx context.Context, status string) (*common.ListResult, error) {
	return invoke[common.ListResult](ctx, c, common.MethodTaskList, &common.ListParams{Status: status})
}

// Status returns one task's record plus its live progress figures.
func (c *Client) Status(ctx context.Context, id string) (*common.StatusResult, error) {
	return invoke[common.StatusResult](ctx, c, common.MethodTaskStatus, &common.TaskIDParam{ID: id})
}

// Flush removes completed task records older than the given number of
// hours. Zero flushes all completed records.
func (c *Client) Flush(ctx context.Context, olderThanHours int) (*common.FlushResult, error) {
	return invoke[common.FlushResult](ctx, c, common.MethodQueueFlush, &common.FlushParams{
		OlderThanHours: olderThanHours,
	})
}

func (c *Client) Version(ctx context.Context) (*common.VersionResult, error) {
	return invoke[common.VersionResult](ctx, c, common.MethodGetVersion, nil)
}
