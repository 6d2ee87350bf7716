package audio

import "math"

// DefaultSmoothing is the weight of the previous value in each EMA step.
const DefaultSmoothing = 0.8

// Smoother applies an exponential moving average independently to each cell:
// next = factor*prev + (1-factor)*current. State starts at zero and is kept
// in float precision; quantisation happens only on output.
type Smoother struct {
	factor float64
	state  []float64
}

func NewSmoother(cells int, factor float64) *Smoother {
	return &Smoother{factor: factor, state: make([]float64, cells)}
}

// Update folds current into the state. len(current) must equal the cell count.
func (s *Smoother) Update(current []float64) {
	for i, v := range current {
		s.state[i] = s.factor*s.state[i] + (1-s.factor)*v
	}
}

// Value returns the smoothed value of cell i.
func (s *Smoother) Value(i int) float64 { return s.state[i] }

// Bytes rounds every cell into dst, clamped to 0..255.
func (s *Smoother) Bytes(dst []byte) {
	for i, v := range s.state {
		dst[i] = toByte(v)
	}
}

func toByte(v float64) byte {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
