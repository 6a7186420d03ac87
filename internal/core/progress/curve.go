// Package progress computes displayed progress for waits of unknown length.
// All functions are pure.
package progress

import (
	"math"
	"time"
)

// DefaultCeiling is the fraction of the total a curve may show before the
// wait reaches a terminal state.
const DefaultCeiling = 0.99

// Curve maps elapsed time to a progress value that rises quickly at first and
// approaches, without reaching, Total.
//
//	progress(t) = Total * (1 - e^(-t/Expected))
//
// Expected is the duration after which about 63% of Total is shown. The value
// is clamped to Total*Ceiling so only a terminal state can show completion.
type Curve struct {
	Expected time.Duration
	Total    float64
	Ceiling  float64
}

// NewCurve returns a Curve with the default ceiling.
func NewCurve(expected time.Duration, total float64) Curve {
	return Curve{Expected: expected, Total: total, Ceiling: DefaultCeiling}
}

// At returns the progress to display after elapsed.
func (c Curve) At(elapsed time.Duration) float64 {
	if c.Total <= 0 || elapsed <= 0 {
		return 0
	}
	ceiling := c.Ceiling
	if ceiling <= 0 || ceiling >= 1 {
		ceiling = DefaultCeiling
	}
	expected := c.Expected
	if expected <= 0 {
		expected = time.Minute
	}
	v := c.Total * (1 - math.Exp(-float64(elapsed)/float64(expected)))
	return math.Min(v, c.Total*ceiling)
}

// Percent returns value as a fraction of total in [0, 1].
func Percent(value, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, value/total))
}
