package engine

import (
	"testing"
	"time"
)

func TestJitteredBackoffWithinBounds(t *testing.T) {
	base := 1000 * time.Millisecond
	max := 30000 * time.Millisecond

	for attempt := 1; attempt <= 8; attempt++ {
		nominal := base << (attempt - 1)
		if nominal > max {
			nominal = max
		}
		low := time.Duration(float64(nominal) * 0.8)
		if low < minRetryDelay {
			low = minRetryDelay
		}
		high := time.Duration(float64(nominal) * 1.2)

		for i := 0; i < 200; i++ {
			got := jitteredBackoff(attempt, base, max)
			if got < low || got > high {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, got, low, high)
			}
		}
	}
}

func TestJitteredBackoffCapsAtMax(t *testing.T) {
	base := 1000 * time.Millisecond
	max := 30000 * time.Millisecond

	for i := 0; i < 100; i++ {
		got := jitteredBackoff(50, base, max)
		if got > time.Duration(float64(max)*1.2) {
			t.Fatalf("delay %v exceeds jittered cap", got)
		}
	}
}

func TestJitteredBackoffFloor(t *testing.T) {
	for i := 0; i < 100; i++ {
		got := jitteredBackoff(1, 10*time.Millisecond, 100*time.Millisecond)
		if got < minRetryDelay {
			t.Fatalf("delay %v below the one second floor", got)
		}
	}
}

func TestJitteredBackoffDefendsAgainstBadInputs(t *testing.T) {
	if got := jitteredBackoff(0, 0, 0); got < minRetryDelay {
		t.Fatalf("delay %v below the one second floor", got)
	}
}
