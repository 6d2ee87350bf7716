package tempo

import (
	"math"
	"time"
)

// ClocksPerBeat is the MIDI timing clock resolution.
const ClocksPerBeat = 24

// MIDIClock derives the tempo from MIDI timing clock pulses. The first pulse
// of a run is the reference; every ClocksPerBeat pulses after it measure one
// beat and the result is written to the Rate when the rounded value differs.
type MIDIClock struct {
	rate    *Rate
	count   int
	start   time.Duration
	started bool
}

// NewMIDIClock returns a clock writing into rate.
func NewMIDIClock(rate *Rate) *MIDIClock {
	return &MIDIClock{rate: rate}
}

// Pulse handles one clock message timestamped at. It returns the measured
// tempo and whether the shared rate was updated.
func (c *MIDIClock) Pulse(at time.Duration) (bpm float64, changed bool) {
	if !c.started {
		c.started = true
		c.start = at
		return 0, false
	}
	c.count++
	if c.count < ClocksPerBeat {
		return 0, false
	}

	elapsed := (at - c.start).Seconds()
	beats := float64(c.count) / ClocksPerBeat
	c.count = 0
	c.start = at
	if elapsed <= 0 {
		return 0, false
	}

	bpm = math.Round(60 / elapsed * beats)
	if bpm == c.rate.BPM() {
		return bpm, false
	}
	if err := c.rate.Set(bpm); err != nil {
		return bpm, false
	}
	return bpm, true
}

// Reset drops the current run, e.g. on a MIDI stop message.
func (c *MIDIClock) Reset() {
	c.count = 0
	c.started = false
}
