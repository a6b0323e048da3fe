package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return code >= 500 && code <= 599 && code != http.StatusNotImplemented
}

// IsRetryableError reports whether a transport-level retry may succeed.
// Context expiry is never retryable here: the caller's deadline already governs the call.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return IsRetryableStatus(sc.HTTPStatusCode())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// IsTimeout reports whether err came from an expired deadline, at context or network level.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

/*
Backoff computes the wait before a retry:
	- an upstream Retry-After (seconds or HTTP date) wins when present
	- otherwise Initial doubles per attempt
	- the result is capped at Max, then spread by ±Jitter
*/
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64

	now    func() time.Time
	random func() float64
}

func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 10 * time.Second, Jitter: 0.2}
}

// Delay returns the wait before retry number attempt (0 for the first retry).
func (b Backoff) Delay(attempt int, resp *http.Response) time.Duration {
	d, ok := b.retryAfter(resp)
	if !ok {
		d = b.Initial
		for i := 0; i < attempt && (b.Max <= 0 || d < b.Max); i++ {
			d *= 2
		}
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return b.spread(d)
}

func (b Backoff) retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if ra == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(ra); err == nil {
		now := time.Now
		if b.now != nil {
			now = b.now
		}
		if d := at.Sub(now()); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func (b Backoff) spread(d time.Duration) time.Duration {
	if d <= 0 || b.Jitter <= 0 {
		return d
	}
	random := rand.Float64
	if b.random != nil {
		random = b.random
	}
	f := 1 - b.Jitter + random()*2*b.Jitter
	return time.Duration(float64(d) * f)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
