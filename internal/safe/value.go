package safe

import (
	"math"
	"time"
)

// SubUint64 returns end - start for a cumulative counter, clamping to zero when the counter
// went backwards (wrap, reset or interface removal).
// Returns the delta and a boolean indicating whether clamping occurred.
func SubUint64(end, start uint64) (uint64, bool) {
	if end < start {
		return 0, true
	}
	return end - start, false
}

// NonNegative clamps negative or NaN float values to zero.
func NonNegative(val float64) float64 {
	if math.IsNaN(val) || val < 0 {
		return 0
	}
	return val
}

// Seconds converts a duration to float seconds, clamping negative durations to zero.
func Seconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return d.Seconds()
}
