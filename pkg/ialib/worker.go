package ialib

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/afero"
)

// outcome is the terminal result of one worker run.
type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeStopped
	outcomeFailed
)

type workerResult struct {
	outcome outcome
	err     error
}

// workerCallbacks carry the worker's asynchronous messages back to the
// scheduler. The worker never touches the queue, the slot table or the
// task record directly.
type workerCallbacks struct {
	// onDelta reports bytes durably written to the partial file.
	onDelta func(n int64)
	// onRetry reports one failed attempt before the backoff wait.
	onRetry func(attempt int, err error)
	// onSize reports the total size once the first response reveals it.
	onSize func(total int64)
}

// worker performs one task's resumable transfer. It requests bytes
// starting at the persisted offset, streams fixed-size chunks to the
// destination file and stops within one chunk of a cancellation signal.
type worker struct {
	id       string
	url      string
	dest     string
	offset   int64 // advances as chunks land
	total    int64 // SizeUnknown until discovered
	checksum string
	retries  int // retryCount carried over from the task record

	client *http.Client
	fs     afero.Fs
	chunk  int
	retry  RetryConfig
	ua     string
	cb     workerCallbacks
}

// run drives the transfer to a terminal result. Transient failures are
// retried in place with capped exponential backoff while the attempt
// budget lasts; the backoff wait observes cancellation.
func (w *worker) run(ctx context.Context) workerResult {
	attempt := w.retries
	for {
		if w.total >= 0 && w.offset >= w.total {
			// Every byte is already on disk, as after a pause landing
			// exactly on the final chunk. Requesting the empty range
			// would draw a 416, so skip straight to verification.
			if verr := w.verify(); verr != nil {
				return workerResult{outcome: outcomeFailed, err: verr}
			}
			return workerResult{outcome: outcomeCompleted}
		}
		err := w.transferOnce(ctx)
		if err == nil {
			if verr := w.verify(); verr != nil {
				return workerResult{outcome: outcomeFailed, err: verr}
			}
			return workerResult{outcome: outcomeCompleted}
		}
		if ctx.Err() != nil {
			return workerResult{outcome: outcomeStopped}
		}
		if IsTransient(err) && attempt < w.retry.MaxRetries {
			attempt++
			w.cb.onRetry(attempt, err)
			if werr := w.retry.Wait(ctx, attempt); werr != nil {
				return workerResult{outcome: outcomeStopped}
			}
			continue
		}
		return workerResult{outcome: outcomeFailed, err: err}
	}
}

// transferOnce performs a single ranged GET attempt, streaming from the
// current offset until the body ends or an error interrupts it. Bytes
// written before an interruption stay counted; a retry resumes from the
// advanced offset.
func (w *worker) transferOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return err
	}
	ua := w.ua
	if ua == "" {
		ua = DefUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if w.offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", w.offset))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case w.offset > 0 && resp.StatusCode == http.StatusOK:
		// Serving the full body would restart from zero and shrink
		// partialBytes, which is never allowed.
		return ErrRangeNotSupported
	case w.offset > 0 && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// The server has no byte at this offset. When its reported size
		// matches the offset exactly, the file is already complete and
		// only verification remains.
		var size int64
		if n, _ := fmt.Sscanf(resp.Header.Get("Content-Range"), "bytes */%d", &size); n == 1 && size == w.offset {
			if w.total < 0 {
				w.total = size
				w.cb.onSize(size)
			}
			return nil
		}
		return &HTTPStatusError{Code: resp.StatusCode}
	case w.offset > 0 && resp.StatusCode != http.StatusPartialContent:
		return &HTTPStatusError{Code: resp.StatusCode}
	case w.offset == 0 && resp.StatusCode != http.StatusOK &&
		resp.StatusCode != http.StatusPartialContent:
		return &HTTPStatusError{Code: resp.StatusCode}
	}

	if w.total < 0 && resp.ContentLength >= 0 {
		w.total = w.offset + resp.ContentLength
		w.cb.onSize(w.total)
	}

	f, err := w.fs.OpenFile(w.dest, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &StorageError{Op: "open", Err: err}
	}
	defer f.Close()
	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return &StorageError{Op: "seek", Err: err}
	}

	buf := make([]byte, w.chunk)
	for {
		limit := len(buf)
		if w.total >= 0 {
			rem := w.total - w.offset
			if rem <= 0 {
				// The known total is fully on disk. Any further byte
				// means the remote file grew past the recorded size;
				// report it without writing or counting the excess.
				n, rerr := resp.Body.Read(buf[:1])
				switch {
				case n > 0:
					return &IntegrityError{
						Reason:   "size mismatch",
						Expected: strconv.FormatInt(w.total, 10),
						Actual:   strconv.FormatInt(w.offset+int64(n), 10),
					}
				case rerr == io.EOF:
					return nil
				case rerr != nil:
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return &TransientError{Op: "read", Err: rerr}
				}
				continue
			}
			if rem < int64(limit) {
				limit = int(rem)
			}
		}
		n, rerr := io.ReadFull(resp.Body, buf[:limit])
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return &StorageError{Op: "write", Err: werr}
			}
			w.offset += int64(n)
			w.cb.onDelta(int64(n))
		}
		switch rerr {
		case nil:
			continue
		case io.EOF, io.ErrUnexpectedEOF:
			// End of stream. A short body against a known total is a
			// dropped connection, not completion.
			if w.total >= 0 && w.offset < w.total {
				return &TransientError{Op: "body", Err: io.ErrUnexpectedEOF}
			}
			return nil
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransientError{Op: "read", Err: rerr}
		}
	}
}

// verify checks the finished transfer: byte count against the known
// total, and the optional source-supplied digest over the whole file.
func (w *worker) verify() error {
	if w.total >= 0 && w.offset != w.total {
		return &IntegrityError{
			Reason:   "size mismatch",
			Expected: strconv.FormatInt(w.total, 10),
			Actual:   strconv.FormatInt(w.offset, 10),
		}
	}
	if w.checksum == "" {
		return nil
	}
	exp, err := ParseChecksum(w.checksum)
	if err != nil {
		return &IntegrityError{
			Reason:   "unusable expected checksum: " + err.Error(),
			Expected: w.checksum,
			Actual:   "",
		}
	}
	return VerifyFile(w.fs, w.dest, exp)
}
