package resilience

import (
	"math/rand/v2"
	"time"
)

// Backoff returns base doubled per attempt, capped at ceiling when ceiling > 0, with
// up to jitterPct of random spread either way.
func Backoff(base time.Duration, attempt int, jitterPct float64, ceiling time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if ceiling > 0 && d >= ceiling {
			d = ceiling
			break
		}
	}
	if ceiling > 0 && d > ceiling {
		d = ceiling
	}
	if jitterPct <= 0 {
		return d
	}
	spread := float64(d) * jitterPct
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
