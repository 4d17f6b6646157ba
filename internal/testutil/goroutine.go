// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"runtime"
	"testing"
	"time"
)

// LeakCheck compares goroutine counts around a test body. Strategies and
// host channels start pumps and timers; every one of them must be gone once
// the owner disconnects.
type LeakCheck struct {
	t             testing.TB
	baseline      int
	allowedGrowth int
	settle        time.Duration
}

// NewLeakCheck records the current goroutine count after a short settle.
func NewLeakCheck(t testing.TB) *LeakCheck {
	l := &LeakCheck{t: t, settle: 100 * time.Millisecond}
	time.Sleep(l.settle)
	l.baseline = runtime.NumGoroutine()
	return l
}

// AllowGrowth tolerates n extra goroutines, e.g. from net/http keep-alives.
func (l *LeakCheck) AllowGrowth(n int) *LeakCheck {
	l.allowedGrowth = n
	return l
}

// Verify polls until the count drops back to the baseline or the deadline
// passes, then fails the test with a full stack dump.
func (l *LeakCheck) Verify() {
	l.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	count := runtime.NumGoroutine()
	for count-l.baseline > l.allowedGrowth && time.Now().Before(deadline) {
		time.Sleep(l.settle)
		count = runtime.NumGoroutine()
	}

	if leaked := count - l.baseline; leaked > l.allowedGrowth {
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		l.t.Errorf("goroutine leak: baseline %d, now %d (allowed growth %d)\n%s",
			l.baseline, count, l.allowedGrowth, buf[:n])
	}
}
