// SPDX-License-Identifier: MIT
package dsp

import "time"

// epsilon keeps a silent history from triggering on the first non-zero block.
const beatEpsilon = 1e-6

// BeatDetector flags onsets in a single band's energy. It keeps a circular
// history of recent energies and triggers when the current value exceeds the
// rolling average by a configured multiplier, subject to a refractory period
// that suppresses double-triggering on one sustained hit. Time is supplied by
// the caller, so the detector is deterministic under simulated clocks.
type BeatDetector struct {
	multiplier float64
	refractory time.Duration

	history []float64 // circular energy history
	head    int
	count   int
	sum     float64

	lastBeat time.Duration
	hasBeat  bool
}

// NewBeatDetector creates a detector. historyLen frames bound the rolling
// average window; at the default 1024/44100 block cadence, 64 frames cover
// roughly 1.5 seconds.
func NewBeatDetector(multiplier float64, refractory time.Duration, historyLen int) *BeatDetector {
	if historyLen < 2 {
		historyLen = 2
	}
	return &BeatDetector{
		multiplier: multiplier,
		refractory: refractory,
		history:    make([]float64, historyLen),
	}
}

// Detect reports whether energy constitutes an onset at time now, then folds
// the value into the history. The average is taken over the history before
// the current value so the baseline reflects the pre-onset level.
func (d *BeatDetector) Detect(energy float64, now time.Duration) bool {
	avg := energy
	if d.count > 0 {
		avg = d.sum / float64(d.count)
	}

	beat := energy > avg*d.multiplier+beatEpsilon
	if beat && d.hasBeat && now-d.lastBeat < d.refractory {
		beat = false // within refractory window
	}
	if beat {
		d.lastBeat = now
		d.hasBeat = true
	}

	// Push into the circular buffer, evicting the oldest entry.
	if d.count == len(d.history) {
		d.sum -= d.history[d.head]
	} else {
		d.count++
	}
	d.history[d.head] = energy
	d.sum += energy
	d.head = (d.head + 1) % len(d.history)

	return beat
}

// Reset clears the energy history and the refractory clock, for use when the
// source changes so stale energy from an unrelated track cannot leak in.
func (d *BeatDetector) Reset() {
	for i := range d.history {
		d.history[i] = 0
	}
	d.head = 0
	d.count = 0
	d.sum = 0
	d.lastBeat = 0
	d.hasBeat = false
}
