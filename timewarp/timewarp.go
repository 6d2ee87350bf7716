// Package timewarp maps wall-clock time onto the eased beat curve that panels
// receive as iTime.
package timewarp

import "math"

// Ease is the steepness of the per-beat tanh curve.
const Ease = 5.0

// Phase converts elapsed seconds into raw beats at the given tempo.
func Phase(seconds, bpm float64) float64 {
	return seconds * bpm / 60
}

// Warp eases into each beat: the integer part of the phase is kept and the
// fractional part is replaced by tanh(frac*5).
func Warp(beatPhaseRaw float64) float64 {
	beatIndex := math.Floor(beatPhaseRaw)
	frac := beatPhaseRaw - beatIndex
	return beatIndex + math.Tanh(frac*Ease)
}

// At is Warp(Phase(seconds, bpm)).
func At(seconds, bpm float64) float64 {
	return Warp(Phase(seconds, bpm))
}

// SetTimeGLSL is the shader-side twin of Warp. It must stay numerically in
// step with Warp: floor, fract and the builtin tanh (no fast approximation).
const SetTimeGLSL = `
float iTime;
float alt, lt, atr, tr;
int bt;
vec2 asp, asp2;
void settime(float t)
{
    alt = lt = t;
    atr = fract(lt);
    tr = tanh(atr * 5.);
    bt = int(floor(lt));
    lt = tr + float(bt);
}
`
