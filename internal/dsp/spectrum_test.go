// SPDX-License-Identifier: MIT
package dsp

import (
	"math"
	"testing"
)

const (
	testBlockSize  = 1024
	testSampleRate = 44100.0
)

// sineBlock generates one block of a pure sine at the given frequency.
func sineBlock(size int, sampleRate, frequency float64) []float64 {
	block := make([]float64, size)
	for i := range block {
		t := float64(i) / sampleRate
		block[i] = math.Sin(2 * math.Pi * frequency * t)
	}
	return block
}

// peakBin returns the index of the largest magnitude.
func peakBin(magnitudes []float64) int {
	peak := 0
	for i, m := range magnitudes {
		if m > magnitudes[peak] {
			peak = i
		}
	}
	return peak
}

func newTestSpectrum(t testing.TB) *Spectrum {
	t.Helper()
	s, err := NewSpectrum(testBlockSize, testSampleRate, Hann)
	if err != nil {
		t.Fatalf("NewSpectrum: %v", err)
	}
	return s
}

func TestSpectrumFrameLength(t *testing.T) {
	for _, size := range []int{256, 512, 1024, 2048} {
		s, err := NewSpectrum(size, testSampleRate, Hann)
		if err != nil {
			t.Fatalf("NewSpectrum(%d): %v", size, err)
		}
		for _, block := range [][]float64{
			make([]float64, size),
			sineBlock(size, testSampleRate, 440),
			sineBlock(size/2, testSampleRate, 440), // short block, zero-padded
		} {
			mags := s.Analyze(block)
			if len(mags) != size/2+1 {
				t.Errorf("size %d: frame length = %d, want %d", size, len(mags), size/2+1)
			}
		}
	}
}

func TestSpectrumRejectsBadConfig(t *testing.T) {
	if _, err := NewSpectrum(1000, testSampleRate, Hann); err == nil {
		t.Error("expected error for non-power-of-two block size")
	}
	if _, err := NewSpectrum(1024, 0, Hann); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := NewSpectrum(1024, -44100, Hann); err == nil {
		t.Error("expected error for negative sample rate")
	}
}

func TestSpectrumDeterministic(t *testing.T) {
	s := newTestSpectrum(t)
	block := sineBlock(testBlockSize, testSampleRate, 523.25)

	first := make([]float64, s.Bins())
	copy(first, s.Analyze(block))
	second := s.Analyze(block)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("bin %d differs across identical inputs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestSpectrumSinePeak(t *testing.T) {
	s := newTestSpectrum(t)

	tests := []struct {
		frequency float64
	}{
		{100},
		{440},
		{1000},
		{5000},
	}
	binWidth := testSampleRate / testBlockSize

	for _, tt := range tests {
		mags := s.Analyze(sineBlock(testBlockSize, testSampleRate, tt.frequency))
		peak := peakBin(mags)
		wantBin := int(math.Round(tt.frequency / binWidth))
		if diff := peak - wantBin; diff < -1 || diff > 1 {
			t.Errorf("%.0f Hz sine: peak bin %d (%.1f Hz), want near bin %d",
				tt.frequency, peak, s.BinFrequency(peak), wantBin)
		}
	}
}

func TestSpectrumClampsMalformedInput(t *testing.T) {
	s := newTestSpectrum(t)
	block := sineBlock(testBlockSize, testSampleRate, 440)
	block[10] = math.NaN()
	block[11] = math.Inf(1)
	block[12] = math.Inf(-1)

	mags := s.Analyze(block)
	for i, m := range mags {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			t.Fatalf("bin %d is not finite: %v", i, m)
		}
	}
}

func TestBinFrequency(t *testing.T) {
	s := newTestSpectrum(t)
	binWidth := testSampleRate / testBlockSize

	if got := s.BinFrequency(0); got != 0 {
		t.Errorf("BinFrequency(0) = %f, want 0", got)
	}
	if got := s.BinFrequency(1); math.Abs(got-binWidth) > 1e-9 {
		t.Errorf("BinFrequency(1) = %f, want %f", got, binWidth)
	}
	if got := s.BinFrequency(testBlockSize / 2); math.Abs(got-testSampleRate/2) > 1e-9 {
		t.Errorf("BinFrequency(Nyquist) = %f, want %f", got, testSampleRate/2)
	}
	if got := s.BinFrequency(-1); got != 0 {
		t.Errorf("BinFrequency(-1) = %f, want 0", got)
	}
	if got := s.BinFrequency(s.Bins()); got != 0 {
		t.Errorf("BinFrequency(out of range) = %f, want 0", got)
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"hann", Hann, false},
		{"Hanning", Hann, false},
		{"HAMMING", Hamming, false},
		{"blackman", Blackman, false},
		{"blackmannuttall", BlackmanNuttall, false},
		{"nuttall", Nuttall, false},
		{"kaiser", Hann, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWindowFunc(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseWindowFunc(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestAnalyzeHotPath(t *testing.T) {
	s := newTestSpectrum(t)
	block := sineBlock(testBlockSize, testSampleRate, 440)

	// Warm-up call so one-time setup does not count.
	s.Analyze(block)
	allocs := testing.AllocsPerRun(100, func() {
		s.Analyze(block)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in Analyze hot path, got %.1f", allocs)
	}
}

func BenchmarkAnalyze(b *testing.B) {
	s := newTestSpectrum(b)
	block := make([]float64, testBlockSize)
	for i := range block {
		tm := float64(i) / testSampleRate
		// 440Hz fundamental plus harmonics.
		block[i] = math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
	}

	b.ReportAllocs()
	for n := 0; n < b.N; n++ {
		s.Analyze(block)
	}
}
