package httpx

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", statusErr(429), true},
		{"503", statusErr(503), true},
		{"501", statusErr(501), false},
		{"400", statusErr(400), false},
		{"wrapped 502", fmt.Errorf("call: %w", statusErr(502)), true},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(fmt.Errorf("llm: %w", context.DeadlineExceeded)) {
		t.Fatalf("wrapped deadline should be a timeout")
	}
	if IsTimeout(statusErr(500)) {
		t.Fatalf("http 500 is not a timeout")
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 10 * time.Second}
	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second} {
		if got := b.Delay(attempt, nil); got != want {
			t.Fatalf("attempt %d: want=%s got=%s", attempt, want, got)
		}
	}

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "30")
	if got := b.Delay(0, resp); got != 10*time.Second {
		t.Fatalf("retry-after capped: want=10s got=%s", got)
	}
	resp.Header.Set("Retry-After", "3")
	if got := b.Delay(4, resp); got != 3*time.Second {
		t.Fatalf("retry-after seconds: want=3s got=%s", got)
	}

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.now = func() time.Time { return now }
	resp.Header.Set("Retry-After", now.Add(5*time.Second).Format(http.TimeFormat))
	if got := b.Delay(0, resp); got != 5*time.Second {
		t.Fatalf("retry-after date: want=5s got=%s", got)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := Backoff{Initial: 10 * time.Second, Jitter: 0.2}
	b.random = func() float64 { return 0 }
	if got := b.Delay(0, nil); got != 8*time.Second {
		t.Fatalf("low bound: want=8s got=%s", got)
	}
	b.random = func() float64 { return 0.999999 }
	if got := b.Delay(0, nil); got < 11*time.Second || got > 12*time.Second {
		t.Fatalf("high bound: got=%s", got)
	}
}
