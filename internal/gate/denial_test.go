package gate

import (
	"testing"
	"time"
)

func TestBackoffSchedule(t *testing.T) {
	cases := []struct {
		count int
		want  time.Duration
	}{
		{1, 0}, {2, 0}, {3, 5 * time.Second}, {4, 15 * time.Second},
		{5, 60 * time.Second}, {6, 300 * time.Second}, {50, 300 * time.Second},
	}
	for _, c := range cases {
		if got := backoffFor(c.count); got != c.want {
			t.Errorf("backoffFor(%d) = %v, want %v", c.count, got, c.want)
		}
	}
}

func TestDenialTrackerRateLimiting(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewDenialTracker()
	tr.nowFunc = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		tr.RecordDenial("exec")
	}
	if tr.IsRateLimited("exec") {
		t.Fatal("first two denials should not rate limit")
	}

	tr.RecordDenial("exec") // count=3 -> 5s
	if !tr.IsRateLimited("exec") {
		t.Fatal("third denial should trigger backoff")
	}
	if got := tr.RetryAfterSeconds("exec"); got != 5 {
		t.Errorf("RetryAfterSeconds = %d, want 5", got)
	}

	now = now.Add(6 * time.Second)
	if tr.IsRateLimited("exec") {
		t.Fatal("backoff should have expired")
	}
}

func TestDenialTrackerReset(t *testing.T) {
	tr := NewDenialTracker()
	tr.RecordDenial("exec")
	tr.RecordDenial("exec")
	tr.RecordDenial("exec")
	tr.Reset("exec")
	if tr.IsRateLimited("exec") {
		t.Fatal("reset should clear backoff")
	}
}
