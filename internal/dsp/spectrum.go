// SPDX-License-Identifier: MIT

// Package dsp implements the per-block analysis pipeline: windowed FFT,
// band energy splitting, onset detection and intensity gating. Everything
// here runs on the audio block cadence, so the hot-path methods operate on
// pre-allocated workspaces and never allocate or block.
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"rave/pkg/bitint"
)

// WindowFunc selects the analysis window applied before the FFT.
type WindowFunc int

const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
	Nuttall
)

// ParseWindowFunc converts a window name (case-insensitive) to a WindowFunc.
// Unknown names return Hann and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown window function name: %q", name)
	}
}

// applyWindow fills coeffs with the selected window's coefficients.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// Window funcs multiply in place, so seed with unity gain first.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
}

// spectrumWorkspace holds the pre-allocated FFT buffers.
type spectrumWorkspace struct {
	input     []float64    // windowed input samples
	coeffs    []complex128 // FFT complex output
	magnitude []float64    // per-bin magnitudes
	window    []float64    // window coefficients
}

// Spectrum transforms fixed-size mono blocks into magnitude spectra.
// A Spectrum is owned by a single goroutine; Analyze reuses its internal
// buffers, so the returned slice is only valid until the next call.
type Spectrum struct {
	fft        *fourier.FFT
	blockSize  int
	sampleRate float64
	workspace  spectrumWorkspace
}

// NewSpectrum creates an analyzer for the given block size and sample rate.
// The block size must be a power of 2 so the transform needs no zero-padding
// in the steady state.
func NewSpectrum(blockSize int, sampleRate float64, windowType WindowFunc) (*Spectrum, error) {
	if !bitint.IsPowerOfTwo(blockSize) {
		return nil, fmt.Errorf("block size must be a power of 2, got %d", blockSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	windowCoeffs := make([]float64, blockSize)
	applyWindow(windowCoeffs, windowType)

	// Real-input FFT yields blockSize/2 + 1 bins.
	bins := blockSize/2 + 1

	return &Spectrum{
		fft:        fourier.NewFFT(blockSize),
		blockSize:  blockSize,
		sampleRate: sampleRate,
		workspace: spectrumWorkspace{
			input:     make([]float64, blockSize),
			coeffs:    make([]complex128, bins),
			magnitude: make([]float64, bins),
			window:    windowCoeffs,
		},
	}, nil
}

// Analyze windows the block, runs the FFT and returns per-bin magnitudes.
// Short blocks are zero-padded; NaN or Inf samples are clamped to zero so a
// single corrupted block cannot poison the pipeline. Deterministic: the same
// block always yields the same spectrum. Zero allocations.
func (s *Spectrum) Analyze(block []float64) []float64 {
	n := len(block)
	for i := 0; i < s.blockSize; i++ {
		if i < n {
			v := block[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			s.workspace.input[i] = v * s.workspace.window[i]
		} else {
			s.workspace.input[i] = 0 // zero-pad
		}
	}

	s.fft.Coefficients(s.workspace.coeffs, s.workspace.input)
	for i, c := range s.workspace.coeffs {
		s.workspace.magnitude[i] = cmplx.Abs(c)
	}

	return s.workspace.magnitude
}

// Bins returns the number of magnitude bins (blockSize/2 + 1).
func (s *Spectrum) Bins() int {
	return len(s.workspace.magnitude)
}

// BinFrequency returns the center frequency in Hz for a bin index.
func (s *Spectrum) BinFrequency(i int) float64 {
	if i < 0 || i >= len(s.workspace.magnitude) {
		return 0
	}
	return float64(i) * (s.sampleRate / float64(s.blockSize))
}

// BlockSize returns the configured samples per block.
func (s *Spectrum) BlockSize() int {
	return s.blockSize
}

// SampleRate returns the configured sample rate in Hz.
func (s *Spectrum) SampleRate() float64 {
	return s.sampleRate
}
