package engine

import (
	"math/rand/v2"
	"time"
)

const minRetryDelay = time.Second

// backoffDelay computes the wait before retry attempt n (1-based):
// exponential growth from the configured base, capped at the configured
// maximum, with a symmetric ±20% jitter, never below one second.
func (e *Engine) backoffDelay(attempt int) time.Duration {
	base := time.Duration(e.cfg.Queue.BaseBackoffMs) * time.Millisecond
	max := time.Duration(e.cfg.Queue.MaxBackoffMs) * time.Millisecond
	return jitteredBackoff(attempt, base, max)
}

func jitteredBackoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = minRetryDelay
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			delay = max
			break
		}
	}
	if max > 0 && delay > max {
		delay = max
	}

	// Jitter spreads simultaneous retries so they do not hammer the
	// server in lockstep.
	jitter := time.Duration((rand.Float64() - 0.5) * 0.4 * float64(delay))
	delay += jitter

	if delay < minRetryDelay {
		delay = minRetryDelay
	}
	return delay
}
