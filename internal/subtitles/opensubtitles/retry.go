package opensubtitles

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"muteguard/internal/logging"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// RetryPolicy retries transient failures with exponential backoff. The delay
// after failed attempt n (0-based) is BaseDelay * 2^n.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	sleep  func(context.Context, time.Duration) error
	logger *slog.Logger
}

// DefaultRetryPolicy returns three attempts starting at a one second delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultMaxAttempts, BaseDelay: defaultBaseDelay}
}

// WithSleep returns a copy of p that waits through fn. Tests use it to avoid
// real delays.
func (p RetryPolicy) WithSleep(fn func(context.Context, time.Duration) error) RetryPolicy {
	p.sleep = fn
	return p
}

// Delay returns the wait after the given failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	return base << attempt
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
// Exhausted or permanent transport failures are returned as *NetworkError.
func (p RetryPolicy) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = SleepWithContext
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return classify(operation, attempt, lastErr)
			}
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetriable(lastErr) || attempt == attempts-1 {
			return classify(operation, attempt+1, lastErr)
		}
		delay := p.Delay(attempt)
		if p.logger != nil {
			p.logger.Debug("opensubtitles request retry",
				logging.String("operation", operation),
				logging.Int("attempt", attempt+1),
				logging.Duration("delay", delay),
				logging.Error(lastErr),
			)
		}
		if err := sleep(ctx, delay); err != nil {
			return classify(operation, attempt+1, lastErr)
		}
	}
	return classify(operation, attempts, lastErr)
}

// SleepWithContext blocks for d, returning early if ctx is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetriable reports whether err represents a transient condition such as
// rate limiting, server errors, timeouts or dropped connections. Certificate
// and handshake failures are not retried.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if kind, _, ok := kindOf(err); ok && kind == KindTLS {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 429 || statusErr.Code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, token := range []string{
		"timeout",
		"connection reset",
		"connection refused",
		"temporary failure",
		"awaiting headers",
	} {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}
