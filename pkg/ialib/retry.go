package ialib

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"
)

// Default retry configuration values.
const (
	DefMaxRetries    = 5
	DefBaseDelay     = 500 * time.Millisecond
	DefMaxDelay      = 30 * time.Second
	DefJitterFactor  = 0.5
	DefBackoffFactor = 2.0
)

// RetryConfig holds the retry policy for transient transport failures.
type RetryConfig struct {
	MaxRetries    int           // Maximum retry attempts per run
	BaseDelay     time.Duration // Delay before the first retry
	MaxDelay      time.Duration // Cap on the delay between retries
	JitterFactor  float64       // Random jitter factor (0-1)
	BackoffFactor float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns a RetryConfig with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    DefMaxRetries,
		BaseDelay:     DefBaseDelay,
		MaxDelay:      DefMaxDelay,
		JitterFactor:  DefJitterFactor,
		BackoffFactor: DefBackoffFactor,
	}
}

// IsTransient reports whether err is a transport failure worth retrying.
// Context cancellation is never transient (the user stopped the task),
// and integrity failures are never retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return false
	}
	var sterr *StorageError
	if errors.As(err, &sterr) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	// Dropped connections surface as EOF mid-body.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	var se *HTTPStatusError
	if errors.As(err, &se) {
		// 5xx and throttling responses are worth another attempt.
		return se.Code >= 500 || se.Code == 429
	}
	// Pattern match for errors wrapped beyond recognition.
	msg := strings.ToLower(err.Error())
	for _, pat := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"timeout",
		"temporary failure",
		"no such host",
		"network is unreachable",
	} {
		if strings.Contains(msg, pat) {
			return true
		}
	}
	return false
}

// Backoff computes the delay before the given retry attempt (1-based),
// with exponential growth, jitter and the configured cap.
func (c *RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if c.JitterFactor > 0 {
		jitter := c.JitterFactor * (2*rand.Float64() - 1)
		delay *= 1 + jitter
	}
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if delay < 0 {
		delay = float64(c.BaseDelay)
	}
	return time.Duration(delay)
}

// Wait blocks until the backoff for attempt has elapsed or ctx is
// cancelled, in which case the context error is returned.
func (c *RetryConfig) Wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(c.Backoff(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
