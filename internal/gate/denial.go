package gate

import (
	"sync"
	"time"
)

// backoffSchedule maps consecutive-denial count to backoff duration, per
// spec.md §4.6. Counts 1-2 carry no backoff; counts 6 and above are not in
// the map and all get backoffCeiling (300s).
var backoffSchedule = map[int]time.Duration{
	3: 5 * time.Second,
	4: 15 * time.Second,
	5: 60 * time.Second,
}

const backoffCeiling = 300 * time.Second

func backoffFor(count int) time.Duration {
	if count <= 2 {
		return 0
	}
	if d, ok := backoffSchedule[count]; ok {
		return d
	}
	return backoffCeiling
}

// DenialTracker maps tool name to its DenialCounter. now is injectable for
// deterministic tests.
type DenialTracker struct {
	mu      sync.Mutex
	counts  map[string]*DenialCounter
	nowFunc func() time.Time
}

// NewDenialTracker returns an empty tracker using the real clock.
func NewDenialTracker() *DenialTracker {
	return &DenialTracker{counts: make(map[string]*DenialCounter), nowFunc: time.Now}
}

func (t *DenialTracker) now() time.Time {
	if t.nowFunc != nil {
		return t.nowFunc()
	}
	return time.Now()
}

// IsRateLimited reports whether tool is currently under backoff.
func (t *DenialTracker) IsRateLimited(tool string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counts[tool]
	if !ok {
		return false
	}
	return t.now().Before(c.BackoffUntil)
}

// RetryAfterSeconds returns the remaining backoff in whole seconds,
// rounding up so a 1ms remainder still reports "1", never "0" (which would
// read as "not rate limited" to a caller checking for >0).
func (t *DenialTracker) RetryAfterSeconds(tool string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counts[tool]
	if !ok {
		return 0
	}
	remaining := c.BackoffUntil.Sub(t.now())
	if remaining <= 0 {
		return 0
	}
	secs := int(remaining / time.Second)
	if remaining%time.Second != 0 {
		secs++
	}
	return secs
}

// RecordDenial increments tool's counter and recomputes its backoff.
func (t *DenialTracker) RecordDenial(tool string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counts[tool]
	if !ok {
		c = &DenialCounter{Tool: tool}
		t.counts[tool] = c
	}
	c.Count++
	now := t.now()
	c.LastDenialAt = now
	c.BackoffUntil = now.Add(backoffFor(c.Count))
}

// Reset clears tool's counter. Called on any approval or batch-session end.
func (t *DenialTracker) Reset(tool string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, tool)
}

// ResetAll clears every counter, for batch-session end.
func (t *DenialTracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = make(map[string]*DenialCounter)
}
