package server

import (
	"context"
	"errors"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/Gameaday/ia-helper-sub003/common"
	"github.com/Gameaday/ia-helper-sub003/internal/schedule"
	"github.com/Gameaday/ia-helper-sub003/pkg/ialib"
)

// Custom JSON-RPC error codes for task operations.
const (
	codeTaskNotFound      = jrpc2.Code(-32001)
	codeTaskActive        = jrpc2.Code(-32002)
	codeInvalidTransition = jrpc2.Code(-32003)
	codeConflict          = jrpc2.Code(-32004)
	codeInvalidParams     = jrpc2.Code(-32602)
	codeInternal          = jrpc2.Code(-32603)
)

// RPCConfig holds configuration for the JSON-RPC endpoint.
type RPCConfig struct {
	Secret    string // Auth token (empty disables the token check)
	Version   string // Daemon version
	Commit    string // Git commit
	BuildType string // Build type
}

// RPCServer holds the method handlers, the HTTP bridge for /rpc and
// the shared handler map the WebSocket endpoint binds per connection.
type RPCServer struct {
	bridge    jhttp.Bridge
	methods   handler.Map
	version   string
	commit    string
	buildType string
	sched     *ialib.Scheduler
	timer     *schedule.Timer
}

// NewRPCServer creates an RPCServer bound to the given scheduler. The
// timer may be nil, in which case deferred starts rest paused until
// resumed by hand.
func NewRPCServer(cfg *RPCConfig, sched *ialib.Scheduler, timer *schedule.Timer) *RPCServer {
	rs := &RPCServer{
		version:   cfg.Version,
		commit:    cfg.Commit,
		buildType: cfg.BuildType,
		sched:     sched,
		timer:     timer,
	}

	rs.methods = handler.Map{
		common.MethodTaskAdd:         handler.New(rs.taskAdd),
		common.MethodTaskPause:       handler.New(rs.taskPause),
		common.MethodTaskResume:      handler.New(rs.taskResume),
		common.MethodTaskRemove:      handler.New(rs.taskRemove),
		common.MethodTaskRetry:       handler.New(rs.taskRetry),
		common.MethodTaskDelete:      handler.New(rs.taskDelete),
		common.MethodTaskSetPriority: handler.New(rs.taskSetPriority),
		common.MethodTaskPauseAll:    handler.New(rs.taskPauseAll),
		common.MethodTaskResumeAll:   handler.New(rs.taskResumeAll),
		common.MethodTaskList:        handler.New(rs.taskList),
		common.MethodTaskStatus:      handler.New(rs.taskStatus),
		common.MethodQueueFlush:      handler.New(rs.queueFlush),
		common.MethodGetVersion:      handler.New(rs.systemGetVersion),
	}

	rs.bridge = jhttp.NewBridge(rs.methods, nil)
	return rs
}

// rpcError maps scheduler errors onto JSON-RPC error codes.
func rpcError(err error) error {
	switch {
	case errors.Is(err, ialib.ErrTaskNotFound):
		return &jrpc2.Error{Code: codeTaskNotFound, Message: "task not found"}
	case errors.Is(err, ialib.ErrTaskActive):
		return &jrpc2.Error{Code: codeTaskActive, Message: err.Error()}
	case errors.Is(err, ialib.ErrInvalidTransition):
		return &jrpc2.Error{Code: codeInvalidTransition, Message: err.Error()}
	case errors.Is(err, ialib.ErrConflict):
		return &jrpc2.Error{Code: codeConflict, Message: err.Error()}
	case errors.Is(err, ialib.ErrEmptyURL):
		return &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	default:
		return &jrpc2.Error{Code: codeInternal, Message: err.Error()}
	}
}

func (rs *RPCServer) systemGetVersion(_ context.Context) (*common.VersionResult, error) {
	return &common.VersionResult{
		Version:   rs.version,
		Commit:    rs.commit,
		BuildType: rs.buildType,
	}, nil
}

// taskAdd enqueues a new download.
func (rs *RPCServer) taskAdd(_ context.Context, p *common.AddParams) (*common.AddResult, error) {
	if p.URL == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: url"}
	}
	task := &ialib.Task{
		ID:          ialib.NewTaskID(),
		Source:      p.Source,
		FileName:    p.FileName,
		URL:         p.URL,
		Priority:    ialib.ParsePriority(p.Priority),
		Checksum:    p.Checksum,
		ScheduledAt: p.ScheduledAt,
	}
	if err := rs.sched.Enqueue(task); err != nil {
		return nil, rpcError(err)
	}
	if rs.timer != nil && !task.ScheduledAt.IsZero() {
		// Arm the timer only when the scheduler actually parked the
		// task; re-reading the clock here could miss a start instant
		// that passed between classification and this point.
		if rec, err := rs.sched.Get(task.ID); err == nil && rec.Status == ialib.StatusPaused {
			rs.timer.Add(schedule.Event{TaskID: rec.ID, TriggerAt: rec.ScheduledAt})
		}
	}
	return &common.AddResult{ID: task.ID}, nil
}

func (rs *RPCServer) taskPause(_ context.Context, p *common.TaskIDParam) (*common.EmptyResult, error) {
	if err := rs.sched.Pause(p.ID); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) taskResume(_ context.Context, p *common.TaskIDParam) (*common.EmptyResult, error) {
	if rs.timer != nil {
		rs.timer.Remove(p.ID)
	}
	if err := rs.sched.Resume(p.ID); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) taskRemove(_ context.Context, p *common.TaskIDParam) (*common.EmptyResult, error) {
	if rs.timer != nil {
		rs.timer.Remove(p.ID)
	}
	if err := rs.sched.Remove(p.ID); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) taskRetry(_ context.Context, p *common.TaskIDParam) (*common.EmptyResult, error) {
	if err := rs.sched.Retry(p.ID); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) taskDelete(_ context.Context, p *common.TaskIDParam) (*common.EmptyResult, error) {
	if rs.timer != nil {
		rs.timer.Remove(p.ID)
	}
	if err := rs.sched.Delete(p.ID); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) taskSetPriority(_ context.Context, p *common.SetPriorityParams) (*common.EmptyResult, error) {
	if err := rs.sched.SetPriority(p.ID, ialib.ParsePriority(p.Priority)); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) taskPauseAll(_ context.Context) (*common.EmptyResult, error) {
	if err := rs.sched.PauseAll(); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) taskResumeAll(_ context.Context) (*common.EmptyResult, error) {
	if err := rs.sched.ResumeAll(); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

// taskList returns all task records, optionally filtered by status.
func (rs *RPCServer) taskList(_ context.Context, p *common.ListParams) (*common.ListResult, error) {
	tasks := rs.sched.List()
	out := make([]*common.TaskInfo, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if p.Status != "" && string(t.Status) != p.Status {
			continue
		}
		out = append(out, taskInfo(t))
	}
	return &common.ListResult{Tasks: out}, nil
}

// taskStatus returns one record plus its live progress view.
func (rs *RPCServer) taskStatus(_ context.Context, p *common.TaskIDParam) (*common.StatusResult, error) {
	task, err := rs.sched.Get(p.ID)
	if err != nil {
		return nil, rpcError(err)
	}
	res := &common.StatusResult{Task: taskInfo(&task), ETASeconds: -1}
	if pr, ok := rs.sched.ProgressSnapshot()[task.ID]; ok {
		res.Fraction = pr.Fraction
		res.Speed = pr.Speed
		res.ETASeconds = pr.ETASeconds
	} else if task.TotalBytes > 0 {
		res.Fraction = float64(task.PartialBytes) / float64(task.TotalBytes)
	}
	return res, nil
}

func (rs *RPCServer) queueFlush(_ context.Context, p *common.FlushParams) (*common.FlushResult, error) {
	n, err := rs.sched.Flush(time.Duration(p.OlderThanHours) * time.Hour)
	if err != nil {
		return nil, rpcError(err)
	}
	return &common.FlushResult{Removed: n}, nil
}

func taskInfo(t *ialib.Task) *common.TaskInfo {
	return &common.TaskInfo{
		ID:           t.ID,
		Source:       t.Source,
		FileName:     t.FileName,
		URL:          t.URL,
		TotalBytes:   t.TotalBytes,
		PartialBytes: t.PartialBytes,
		Status:       string(t.Status),
		Priority:     t.Priority.String(),
		RetryCount:   t.RetryCount,
		ErrorMessage: t.ErrorMessage,
		Checksum:     t.Checksum,
		ScheduledAt:  t.ScheduledAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// Close shuts down the jrpc2 bridge, releasing its goroutines.
func (rs *RPCServer) Close() {
	rs.bridge.Close()
}
