// Package tempo holds the process-wide beat rate and the producers that
// write it: tap tempo, manual entry and MIDI clock.
package tempo

import (
	"errors"
	"fmt"
	"math"

	"github.com/richinsley/goshaderjam/signal"
)

// ErrInvalidBPM is returned for tempo values that are not finite and positive.
var ErrInvalidBPM = errors.New("bpm must be a positive number")

// Rate is the shared beats-per-minute value read by every panel each frame.
type Rate struct {
	cell *signal.Cell[float64]
}

// NewRate returns a Rate initialised to bpm.
func NewRate(bpm float64) (*Rate, error) {
	if err := Validate(bpm); err != nil {
		return nil, err
	}
	return &Rate{cell: signal.NewCell(bpm)}, nil
}

// Validate rejects zero, negative, NaN and infinite tempos.
func Validate(bpm float64) error {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidBPM, bpm)
	}
	return nil
}

// BPM returns the current tempo.
func (r *Rate) BPM() float64 {
	return r.cell.Get()
}

// Set replaces the tempo. Invalid values leave the rate unchanged.
func (r *Rate) Set(bpm float64) error {
	if err := Validate(bpm); err != nil {
		return err
	}
	r.cell.Set(bpm)
	return nil
}

// Nudge adds delta to the current tempo, e.g. from the arrow keys.
func (r *Rate) Nudge(delta float64) (float64, error) {
	next := r.BPM() + delta
	if err := r.Set(next); err != nil {
		return r.BPM(), err
	}
	return next, nil
}

// Subscribe is called with every accepted tempo.
func (r *Rate) Subscribe(fn func(bpm float64)) (cancel func()) {
	return r.cell.Subscribe(fn)
}
