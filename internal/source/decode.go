// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

// Track is a fully decoded audio file: mono float64 samples in [-1, 1] at
// the engine's sample rate. Decoding happens entirely up front, outside the
// real-time loop, so playback and analysis never touch the disk.
type Track struct {
	Name       string
	Samples    []float64
	SampleRate float64
}

// Duration returns the track length in seconds.
func (t *Track) Duration() float64 {
	if t.SampleRate <= 0 {
		return 0
	}
	return float64(len(t.Samples)) / t.SampleRate
}

// DecodeFile decodes a WAV or FLAC file into a mono Track at targetRate.
// Multi-channel input is downmixed by averaging channels; tracks at a
// different native rate are linearly resampled.
func DecodeFile(path string, targetRate float64) (*Track, error) {
	var (
		samples []float64
		rate    float64
		err     error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		samples, rate, err = decodeWAV(path)
	case ".flac":
		samples, rate, err = decodeFLAC(path)
	default:
		return nil, fmt.Errorf("unsupported audio format %q (want .wav or .flac)", ext)
	}
	if err != nil {
		return nil, err
	}

	if rate != targetRate {
		samples = resampleLinear(samples, rate, targetRate)
	}

	return &Track{
		Name:       filepath.Base(path),
		Samples:    samples,
		SampleRate: targetRate,
	}, nil
}

func decodeWAV(path string) ([]float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s is not a valid WAV file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV PCM data: %w", err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		return nil, 0, fmt.Errorf("WAV file reports %d channels", channels)
	}
	scale := float64(int(1) << (dec.BitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := range frames {
		var sum float64
		for ch := range channels {
			sum += float64(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float64(channels)
	}
	return samples, float64(dec.SampleRate), nil
}

func decodeFLAC(path string) ([]float64, float64, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse FLAC file %s: %w", path, err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	if channels < 1 {
		return nil, 0, fmt.Errorf("FLAC file reports %d channels", channels)
	}
	scale := float64(int(1) << (stream.Info.BitsPerSample - 1))

	samples := make([]float64, 0, stream.Info.NSamples)
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode FLAC frame: %w", err)
		}
		n := len(frame.Subframes[0].Samples)
		for i := range n {
			var sum float64
			for ch := range channels {
				sum += float64(frame.Subframes[ch].Samples[i]) / scale
			}
			samples = append(samples, sum/float64(channels))
		}
	}
	return samples, float64(stream.Info.SampleRate), nil
}

// resampleLinear converts samples from one rate to another by linear
// interpolation. Fidelity is fine for visual analysis; anything fancier
// would be wasted on band energies.
func resampleLinear(samples []float64, from, to float64) []float64 {
	if from == to || len(samples) == 0 {
		return samples
	}
	ratio := from / to
	outLen := int(math.Floor(float64(len(samples)-1)/ratio)) + 1
	out := make([]float64, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}
