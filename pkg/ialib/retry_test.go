package ialib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"
)

func TestIsTransient_Classification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"transient wrapper", &TransientError{Op: "read", Err: io.EOF}, true},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"http 503", &HTTPStatusError{Code: 503}, true},
		{"http 429", &HTTPStatusError{Code: 429}, true},
		{"http 404", &HTTPStatusError{Code: 404}, false},
		{"http 403", &HTTPStatusError{Code: 403}, false},
		{"integrity", &IntegrityError{Reason: "digest mismatch"}, false},
		{"storage", &StorageError{Op: "write", Err: errors.New("disk full")}, false},
		{"wrapped pattern", fmt.Errorf("dial: connection reset by peer"), true},
		{"unrelated", errors.New("parse failure"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	c := RetryConfig{
		MaxRetries:    10,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		// No jitter so the growth is deterministic.
		JitterFactor: 0,
	}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 4; attempt++ {
		d := c.Backoff(attempt)
		if d <= prev {
			t.Fatalf("attempt %d: expected growth beyond %v, got %v", attempt, prev, d)
		}
		prev = d
	}
	for attempt := 5; attempt <= 10; attempt++ {
		if d := c.Backoff(attempt); d > c.MaxDelay {
			t.Fatalf("attempt %d: delay %v exceeds cap %v", attempt, d, c.MaxDelay)
		}
	}
}

func TestBackoff_JitterStaysBounded(t *testing.T) {
	c := DefaultRetryConfig()
	for i := 0; i < 100; i++ {
		d := c.Backoff(3)
		if d <= 0 || d > c.MaxDelay {
			t.Fatalf("jittered delay %v outside (0, %v]", d, c.MaxDelay)
		}
	}
}

func TestWait_ObservesCancellation(t *testing.T) {
	c := RetryConfig{
		MaxRetries:    1,
		BaseDelay:     time.Minute,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := c.Wait(ctx, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("Wait did not return promptly on cancellation")
	}
}
