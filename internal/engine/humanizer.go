package engine

import (
	"math/rand"
	"time"
)

// ResponseDelay picks a simulated think time inside the preset's window.
// This is the only randomness in the opponent; move choice never uses it.
func ResponseDelay(p DifficultyPreset, r *rand.Rand) time.Duration {
	lo, hi := p.DelayMinMillis, p.DelayMaxMillis
	if hi <= lo || r == nil {
		return time.Duration(lo) * time.Millisecond
	}
	return time.Duration(lo+r.Intn(hi-lo+1)) * time.Millisecond
}

// Remaining subtracts time already spent searching from a delay, so the
// opponent answers after roughly delay in total.
func Remaining(delay, spent time.Duration) time.Duration {
	if spent >= delay {
		return 0
	}
	return delay - spent
}
