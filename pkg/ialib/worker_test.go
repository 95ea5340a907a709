package ialib

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// fastRetry keeps worker tests quick.
var fastRetry = RetryConfig{
	MaxRetries:    2,
	BaseDelay:     time.Millisecond,
	MaxDelay:      5 * time.Millisecond,
	BackoffFactor: 2.0,
}

func testPayload(n int) []byte {
	buf := make([]byte, n)
	rng := rand.New(rand.NewSource(42))
	rng.Read(buf)
	return buf
}

// rangeServer serves the payload honoring Range requests, like the
// archive's file endpoints do.
func rangeServer(payload []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(payload))
	}))
}

func newTestWorker(url, dest string, fs afero.Fs) *worker {
	return &worker{
		id:     "t1",
		url:    url,
		dest:   dest,
		total:  SizeUnknown,
		client: http.DefaultClient,
		fs:     fs,
		chunk:  int(DefChunkSize),
		retry:  fastRetry,
	}
}

func TestWorker_FullTransfer(t *testing.T) {
	payload := testPayload(300 * 1024)
	ts := rangeServer(payload)
	defer ts.Close()

	fs := afero.NewMemMapFs()
	w := newTestWorker(ts.URL, "/dl/file.bin", fs)

	var sized int64
	var delta int64
	w.cb = workerCallbacks{
		onDelta: func(n int64) { delta += n },
		onRetry: func(int, error) {},
		onSize:  func(total int64) { sized = total },
	}

	res := w.run(context.Background())
	if res.outcome != outcomeCompleted {
		t.Fatalf("expected completion, got outcome %d err %v", res.outcome, res.err)
	}
	if sized != int64(len(payload)) {
		t.Errorf("expected size discovery %d, got %d", len(payload), sized)
	}
	if delta != int64(len(payload)) {
		t.Errorf("expected %d delta bytes, got %d", len(payload), delta)
	}

	got, err := afero.ReadFile(fs, "/dl/file.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("downloaded content differs from payload")
	}
}

func TestWorker_ResumeFromOffset(t *testing.T) {
	// 400k of 1M already transferred; the retry must request exactly
	// the remaining range and leave the earlier bytes untouched.
	payload := testPayload(1_000_000)
	const offset = 400_000

	var gotRange atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange.Store(r.Header.Get("Range"))
		http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(payload))
	}))
	defer ts.Close()

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/dl/file.bin", payload[:offset], 0o644); err != nil {
		t.Fatal(err)
	}

	w := newTestWorker(ts.URL, "/dl/file.bin", fs)
	w.offset = offset
	w.total = int64(len(payload))
	var delta int64
	w.cb = workerCallbacks{
		onDelta: func(n int64) { delta += n },
		onRetry: func(int, error) {},
		onSize:  func(int64) {},
	}

	res := w.run(context.Background())
	if res.outcome != outcomeCompleted {
		t.Fatalf("expected completion, got outcome %d err %v", res.outcome, res.err)
	}
	if want := fmt.Sprintf("bytes=%d-", offset); gotRange.Load() != want {
		t.Errorf("expected range header %q, got %q", want, gotRange.Load())
	}
	if delta != int64(len(payload))-offset {
		t.Errorf("expected %d new bytes, got %d", len(payload)-offset, delta)
	}

	got, err := afero.ReadFile(fs, "/dl/file.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("resumed content differs from payload")
	}
}

func TestWorker_RangeNotSupported(t *testing.T) {
	// A 200 against a nonzero offset would restart from scratch and
	// shrink the byte counter; the worker must fail instead.
	payload := testPayload(64)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
	}))
	defer ts.Close()

	w := newTestWorker(ts.URL, "/dl/file.bin", afero.NewMemMapFs())
	w.offset = 32
	w.cb = workerCallbacks{
		onDelta: func(int64) {},
		onRetry: func(int, error) {},
		onSize:  func(int64) {},
	}

	res := w.run(context.Background())
	if res.outcome != outcomeFailed {
		t.Fatalf("expected failure, got outcome %d", res.outcome)
	}
	if !errors.Is(res.err, ErrRangeNotSupported) {
		t.Fatalf("expected ErrRangeNotSupported, got %v", res.err)
	}
}

func TestWorker_RetriesTransientFailure(t *testing.T) {
	payload := testPayload(4096)
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(payload))
	}))
	defer ts.Close()

	w := newTestWorker(ts.URL, "/dl/file.bin", afero.NewMemMapFs())
	var retries []int
	w.cb = workerCallbacks{
		onDelta: func(int64) {},
		onRetry: func(attempt int, err error) { retries = append(retries, attempt) },
		onSize:  func(int64) {},
	}

	res := w.run(context.Background())
	if res.outcome != outcomeCompleted {
		t.Fatalf("expected completion after retry, got outcome %d err %v", res.outcome, res.err)
	}
	if len(retries) != 1 || retries[0] != 1 {
		t.Fatalf("expected one retry at attempt 1, got %v", retries)
	}
}

func TestWorker_FatalStatusDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	w := newTestWorker(ts.URL, "/dl/file.bin", afero.NewMemMapFs())
	w.cb = workerCallbacks{
		onDelta: func(int64) {},
		onRetry: func(int, error) {},
		onSize:  func(int64) {},
	}

	res := w.run(context.Background())
	if res.outcome != outcomeFailed {
		t.Fatalf("expected failure, got outcome %d", res.outcome)
	}
	var se *HTTPStatusError
	if !errors.As(res.err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", res.err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestWorker_RetryBudgetExhausted(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	w := newTestWorker(ts.URL, "/dl/file.bin", afero.NewMemMapFs())
	var retries int
	w.cb = workerCallbacks{
		onDelta: func(int64) {},
		onRetry: func(int, error) { retries++ },
		onSize:  func(int64) {},
	}

	res := w.run(context.Background())
	if res.outcome != outcomeFailed {
		t.Fatalf("expected failure, got outcome %d", res.outcome)
	}
	if retries != fastRetry.MaxRetries {
		t.Fatalf("expected %d retries, got %d", fastRetry.MaxRetries, retries)
	}
}

func TestWorker_CancelStopsWithinChunk(t *testing.T) {
	// The handler trickles data forever; cancellation must stop the
	// worker without waiting for the body to end.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		buf := testPayload(1024)
		for {
			if _, err := w.Write(buf); err != nil {
				return
			}
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer ts.Close()

	w := newTestWorker(ts.URL, "/dl/file.bin", afero.NewMemMapFs())
	w.chunk = 1024
	var delta atomic.Int64
	w.cb = workerCallbacks{
		onDelta: func(n int64) { delta.Add(n) },
		onRetry: func(int, error) {},
		onSize:  func(int64) {},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for delta.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	done := make(chan workerResult, 1)
	go func() { done <- w.run(ctx) }()

	select {
	case res := <-done:
		if res.outcome != outcomeStopped {
			t.Fatalf("expected stopped, got outcome %d err %v", res.outcome, res.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorker_ResumeAtEndSkipsRequest(t *testing.T) {
	// A pause can land exactly on the final chunk. On resume every byte
	// is already on disk and a ranged request would ask for an empty
	// range, which compliant servers answer with 416; the worker must
	// verify and complete without touching the network.
	payload := testPayload(4096)
	sum := sha256.Sum256(payload)

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(payload))
	}))
	defer ts.Close()

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/dl/file.bin", payload, 0o644); err != nil {
		t.Fatal(err)
	}

	w := newTestWorker(ts.URL, "/dl/file.bin", fs)
	w.offset = int64(len(payload))
	w.total = int64(len(payload))
	w.checksum = "sha256:" + hex.EncodeToString(sum[:])
	w.cb = workerCallbacks{onDelta: func(int64) {}, onRetry: func(int, error) {}, onSize: func(int64) {}}

	res := w.run(context.Background())
	if res.outcome != outcomeCompleted {
		t.Fatalf("expected completion, got outcome %d err %v", res.outcome, res.err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no requests for a finished transfer, got %d", calls.Load())
	}
}

func TestWorker_UnknownTotalFullFileCompletes(t *testing.T) {
	// A record re-added over an already complete partial file starts
	// with an unknown total, so the request goes out and the server
	// answers the empty range with a 416. Its Content-Range still
	// reports the size, which matches the offset: the transfer is done.
	payload := testPayload(4096)
	ts := rangeServer(payload)
	defer ts.Close()

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/dl/file.bin", payload, 0o644); err != nil {
		t.Fatal(err)
	}

	w := newTestWorker(ts.URL, "/dl/file.bin", fs)
	w.offset = int64(len(payload))
	var sized int64
	w.cb = workerCallbacks{
		onDelta: func(int64) {},
		onRetry: func(int, error) {},
		onSize:  func(total int64) { sized = total },
	}

	res := w.run(context.Background())
	if res.outcome != outcomeCompleted {
		t.Fatalf("expected completion, got outcome %d err %v", res.outcome, res.err)
	}
	if sized != int64(len(payload)) {
		t.Errorf("expected size discovery %d, got %d", len(payload), sized)
	}
}

func TestWorker_RemoteGrowthPastKnownTotal(t *testing.T) {
	// The server now holds more bytes than the recorded total. The
	// worker must report the mismatch without writing or counting any
	// byte beyond the known size.
	payload := testPayload(2048)
	const total = 1000
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer ts.Close()

	fs := afero.NewMemMapFs()
	w := newTestWorker(ts.URL, "/dl/file.bin", fs)
	w.total = total
	var delta int64
	w.cb = workerCallbacks{
		onDelta: func(n int64) { delta += n },
		onRetry: func(int, error) {},
		onSize:  func(int64) {},
	}

	res := w.run(context.Background())
	if res.outcome != outcomeFailed {
		t.Fatalf("expected failure, got outcome %d", res.outcome)
	}
	var ie *IntegrityError
	if !errors.As(res.err, &ie) {
		t.Fatalf("expected IntegrityError, got %v", res.err)
	}
	if delta != total {
		t.Fatalf("expected exactly %d counted bytes, got %d", total, delta)
	}

	got, err := afero.ReadFile(fs, "/dl/file.bin")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != total {
		t.Fatalf("expected %d bytes on disk, got %d", total, len(got))
	}
}

func TestWorker_DigestVerification(t *testing.T) {
	payload := testPayload(2048)
	sum := sha256.Sum256(payload)
	good := "sha256:" + hex.EncodeToString(sum[:])
	bad := "sha256:" + hex.EncodeToString(bytes.Repeat([]byte{0xab}, sha256.Size))

	t.Run("match", func(t *testing.T) {
		ts := rangeServer(payload)
		defer ts.Close()
		w := newTestWorker(ts.URL, "/dl/file.bin", afero.NewMemMapFs())
		w.checksum = good
		w.cb = workerCallbacks{onDelta: func(int64) {}, onRetry: func(int, error) {}, onSize: func(int64) {}}

		if res := w.run(context.Background()); res.outcome != outcomeCompleted {
			t.Fatalf("expected completion, got outcome %d err %v", res.outcome, res.err)
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		ts := rangeServer(payload)
		defer ts.Close()
		w := newTestWorker(ts.URL, "/dl/file.bin", afero.NewMemMapFs())
		w.checksum = bad
		w.cb = workerCallbacks{onDelta: func(int64) {}, onRetry: func(int, error) {}, onSize: func(int64) {}}

		res := w.run(context.Background())
		if res.outcome != outcomeFailed {
			t.Fatalf("expected failure, got outcome %d", res.outcome)
		}
		var ie *IntegrityError
		if !errors.As(res.err, &ie) {
			t.Fatalf("expected IntegrityError, got %v", res.err)
		}
	})
}
