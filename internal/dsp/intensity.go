// SPDX-License-Identifier: MIT
package dsp

// fullScaleRange is the RMS span above the silence threshold that maps to
// full intensity. An RMS of silence+0.10 drives the target to 1.0.
const fullScaleRange = 0.10

// IntensityGate maps raw volume into a smoothed visual intensity in [0,1].
// Attack and release are asymmetric so the signal rises quickly on loud
// content but falls slowly, which keeps the visuals from flickering on brief
// transients. Below the silence threshold the signal settles at a calm floor
// instead of freezing at zero.
type IntensityGate struct {
	attack  float64 // fraction of the gap closed per frame while rising
	release float64 // fraction of the gap closed per frame while falling
	silence float64 // RMS level treated as silence
	floor   float64 // resting level during silence

	level float64
}

// NewIntensityGate creates a gate resting at the calm floor.
func NewIntensityGate(attack, release, silenceThreshold, floor float64) *IntensityGate {
	return &IntensityGate{
		attack:  attack,
		release: release,
		silence: silenceThreshold,
		floor:   floor,
		level:   floor,
	}
}

// Gate folds one volume sample into the smoothed intensity and returns the
// updated level. The result is always in [0,1] for any non-negative input.
func (g *IntensityGate) Gate(volume float64) float64 {
	target := g.floor
	if volume > g.silence {
		target = (volume - g.silence) / fullScaleRange
		if target > 1 {
			target = 1
		}
		if target < g.floor {
			target = g.floor
		}
	}

	if target > g.level {
		g.level += (target - g.level) * g.attack
	} else {
		g.level += (target - g.level) * g.release
	}

	if g.level < 0 {
		g.level = 0
	}
	if g.level > 1 {
		g.level = 1
	}
	return g.level
}

// Level returns the current intensity without advancing the smoothing.
func (g *IntensityGate) Level() float64 {
	return g.level
}

// Reset returns the gate to the calm floor, for use on source changes.
func (g *IntensityGate) Reset() {
	g.level = g.floor
}
