// SPDX-License-Identifier: MIT
package dsp

import "math"

// BandEnergies holds the three band scalars handed to the renderer.
// Each value is the mean bin magnitude over the band's frequency range,
// which keeps the values comparable across block sizes.
type BandEnergies struct {
	Bass float64
	Mid  float64
	High float64
}

// BandRange bounds a band in Hz, inclusive low, exclusive high.
type BandRange struct {
	LowHz  float64
	HighHz float64
}

// band is a pre-resolved bin range for one frequency band.
type band struct {
	lo, hi int // bin indices, lo inclusive, hi exclusive
}

// BandSplitter aggregates a magnitude spectrum into bass/mid/high energies.
// Bin ranges are resolved once at construction, clamped to Nyquist, so Split
// does no per-call frequency math and can never index out of range.
type BandSplitter struct {
	bass band
	mid  band
	high band
}

// NewBandSplitter resolves the three band ranges against the analyzer's bin
// layout. Bands that lie entirely above Nyquist end up empty and report zero.
func NewBandSplitter(blockSize int, sampleRate float64, bass, mid, high BandRange) *BandSplitter {
	bins := blockSize/2 + 1
	binWidth := sampleRate / float64(blockSize)
	resolve := func(r BandRange) band {
		// First bin whose center frequency is >= LowHz.
		lo := int(math.Ceil(r.LowHz / binWidth))
		// One past the last bin with center frequency < HighHz.
		hi := int(math.Ceil(r.HighHz / binWidth))
		if lo < 0 {
			lo = 0
		}
		if hi > bins {
			hi = bins // clamp to Nyquist
		}
		if lo >= hi {
			return band{}
		}
		return band{lo: lo, hi: hi}
	}
	return &BandSplitter{
		bass: resolve(bass),
		mid:  resolve(mid),
		high: resolve(high),
	}
}

// Split computes the per-band mean magnitudes for one spectrum frame.
func (b *BandSplitter) Split(magnitudes []float64) BandEnergies {
	return BandEnergies{
		Bass: meanMagnitude(magnitudes, b.bass),
		Mid:  meanMagnitude(magnitudes, b.mid),
		High: meanMagnitude(magnitudes, b.high),
	}
}

func meanMagnitude(magnitudes []float64, bd band) float64 {
	hi := bd.hi
	if hi > len(magnitudes) {
		hi = len(magnitudes)
	}
	if bd.lo >= hi {
		return 0
	}
	var sum float64
	for i := bd.lo; i < hi; i++ {
		sum += magnitudes[i]
	}
	return sum / float64(hi-bd.lo)
}

// RMS returns the root mean square level of a time-domain block.
// NaN and Inf samples count as silence.
func RMS(block []float64) float64 {
	if len(block) == 0 {
		return 0
	}
	var sumSquare float64
	for _, sample := range block {
		if math.IsNaN(sample) || math.IsInf(sample, 0) {
			continue
		}
		sumSquare += sample * sample
	}
	return math.Sqrt(sumSquare / float64(len(block)))
}
