package common

// JSON-RPC method names served by the daemon.
const (
	MethodTaskAdd         = "task.add"
	MethodTaskPause       = "task.pause"
	MethodTaskResume      = "task.resume"
	MethodTaskRemove      = "task.remove"
	MethodTaskRetry       = "task.retry"
	MethodTaskDelete      = "task.delete"
	MethodTaskSetPriority = "task.setPriority"
	MethodTaskPauseAll    = "task.pauseAll"
	MethodTaskResumeAll   = "task.resumeAll"
	MethodTaskList        = "task.list"
	MethodTaskStatus      = "task.status"
	MethodQueueFlush      = "queue.flush"
	MethodGetVersion      = "system.getVersion"
)

// Push notification methods sent to WebSocket clients.
const (
	NotifyStateChanged = "task.stateChanged"
	NotifyProgress     = "task.progress"
)

// DefaultPort is the daemon's default HTTP listen port.
const DefaultPort = 3849
