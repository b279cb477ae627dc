// Package retry runs provider calls under a bounded exponential backoff
// policy, retrying only failures classified as transient.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrExhausted wraps the last transient error once every attempt has failed.
var ErrExhausted = errors.New("retries exhausted")

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatusCode() int
}

// RetryAfterer is implemented by errors that carry a server-requested delay.
type RetryAfterer interface {
	RetryAfter() time.Duration
}

// Policy bounds the number of attempts and the delay between them.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// DefaultPolicy allows five attempts with delays of 1s, 2s, 4s, 8s capped at
// 32s, each varied by up to ±20%.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    32 * time.Second,
		Jitter:      0.2,
	}
}

// Backoff returns the delay before the attempt following attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}

	return jitter(d, p.Jitter)
}

// Do calls fn until it succeeds, returns a non-transient error, the context
// ends, or MaxAttempts is reached. onRetry, when non-nil, is called before
// each wait.
func Do(
	ctx context.Context,
	p Policy,
	fn func(ctx context.Context) error,
	onRetry func(attempt int, delay time.Duration, err error),
) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, onRetry)
	return err
}

// DoValue is Do for functions that return a value.
func DoValue[T any](
	ctx context.Context,
	p Policy,
	fn func(ctx context.Context) (T, error),
	onRetry func(attempt int, delay time.Duration, err error),
) (T, error) {
	attempts := max(p.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsTransient(err) || ctx.Err() != nil {
			return v, err
		}
		if attempt >= attempts {
			return v, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}

		delay := p.Backoff(attempt)
		if ra := RetryAfter(err); ra > delay {
			delay = ra
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		if onRetry != nil {
			onRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return v, ctx.Err()
		case <-timer.C:
		}
	}
}

// IsRetryableStatus reports whether an HTTP status is worth retrying:
// request timeout, too many requests, or any server error.
func IsRetryableStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// IsTransient classifies err. Cancellation is never transient; deadlines,
// network timeouts and retryable HTTP statuses are.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return IsRetryableStatus(sc.HTTPStatusCode())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsRateLimited reports whether err carries a 429 status.
func IsRateLimited(err error) bool {
	var sc StatusCoder
	return errors.As(err, &sc) && sc.HTTPStatusCode() == http.StatusTooManyRequests
}

// RetryAfter extracts a server-requested delay from err, or zero.
func RetryAfter(err error) time.Duration {
	var ra RetryAfterer
	if errors.As(err, &ra) {
		return ra.RetryAfter()
	}
	return 0
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func ParseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

func jitter(d time.Duration, frac float64) time.Duration {
	if d <= 0 || frac <= 0 {
		return d
	}
	delta := float64(d) * frac
	low := float64(d) - delta
	return time.Duration(low + rand.Float64()*2*delta)
}
