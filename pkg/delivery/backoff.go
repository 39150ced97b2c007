package delivery

import "time"

// ExponentialBackoff doubles the delay per attempt, starting at Initial and
// capped at Max. Zero values default to 1s and 30s.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

// NextDelay returns the wait before the attempt following the given number of
// failed attempts (1-based).
func (b ExponentialBackoff) NextDelay(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := b.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	return min(delay, maximum)
}
