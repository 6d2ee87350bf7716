package tempo

import (
	"math"
	"time"
)

// TapTimeout ends a tap run after this much inactivity.
const TapTimeout = 2 * time.Second

// Tapper turns a run of taps into a tempo by averaging the intervals between
// them. A tap that arrives more than TapTimeout after the previous one starts
// a new run.
type Tapper struct {
	now   func() time.Time
	taps  []time.Time
	reset time.Duration
}

// NewTapper returns a Tapper reading the wall clock.
func NewTapper() *Tapper {
	return &Tapper{now: time.Now, reset: TapTimeout}
}

// Tap records a tap. It reports the rounded tempo once the current run holds
// at least two taps.
func (t *Tapper) Tap() (bpm int, ok bool) {
	return t.TapAt(t.now())
}

// TapAt is Tap with an explicit timestamp.
func (t *Tapper) TapAt(at time.Time) (bpm int, ok bool) {
	if n := len(t.taps); n > 0 && at.Sub(t.taps[n-1]) > t.reset {
		t.taps = t.taps[:0]
	}
	t.taps = append(t.taps, at)
	if len(t.taps) < 2 {
		return 0, false
	}

	var total time.Duration
	for i := 1; i < len(t.taps); i++ {
		total += t.taps[i].Sub(t.taps[i-1])
	}
	avg := float64(total) / float64(time.Millisecond) / float64(len(t.taps)-1)
	if avg <= 0 {
		return 0, false
	}
	return int(math.Round(60000 / avg)), true
}

// Taps returns the size of the current run.
func (t *Tapper) Taps() int { return len(t.taps) }
