package cmd

const DESCRIPTION = `
ia-helper is a download scheduler for bulk archive retrieval.
It queues large batches of file transfers, runs a bounded number
of them in parallel and survives restarts by resuming partially
downloaded files from where they left off.
`

const (
	AddDescription = `The add command queues a file for download. The daemon
picks it up as soon as a transfer slot frees up, or at the
scheduled time when one is set.

Example:
        ia-helper add https://archive.org/download/item/file.zip

`
	ListDescription = `The list command displays all queued, running and finished
downloads along with their ids, which the other commands
take as argument.

Example:
        ia-helper list
        ia-helper list --status error

`
	StatusDescription = `The status command shows one download in detail: its state,
bytes transferred, current speed and estimated time left.

Example:
        ia-helper status <id>

`
	PauseDescription = `The pause command stops a running or queued download. The
partial file stays on disk and the transfer continues from
the same byte offset on resume.

Example:
        ia-helper pause <id>

`
	ResumeDescription = `The resume command puts a paused download back into the
queue.

Example:
        ia-helper resume <id>

`
	RetryDescription = `The retry command re-queues a failed download with a fresh
retry budget.

Example:
        ia-helper retry <id>

`
	RemoveDescription = `The remove command cancels a download. The task record is
kept with a cancelled status until deleted.

Example:
        ia-helper remove <id>

`
	DeleteDescription = `The delete command erases a task record entirely. Running
downloads must be removed or paused first.

Example:
        ia-helper delete <id>

`
	PriorityDescription = `The priority command changes a task's priority. Queued
tasks are reordered immediately; running ones are not
interrupted.

Example:
        ia-helper priority <id> high

`
	FlushDescription = `The flush command deletes the records of completed
downloads. With --older-than only records past the given
age are removed.

Example:
        ia-helper flush
        ia-helper flush --older-than 24

`
	WatchDescription = `The watch command attaches to the daemon and renders live
progress bars for all running downloads until interrupted.

Example:
        ia-helper watch

`
	DaemonDescription = `The daemon command runs the download scheduler in the
foreground: it opens the task database, restores unfinished
work and serves the RPC endpoint the other commands talk to.

Example:
        ia-helper daemon
        ia-helper daemon --config ~/.ia-helper/config.json

`
)
