// SPDX-License-Identifier: MIT
package source

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

const (
	testBlockSize  = 256
	testSampleRate = 44100.0
)

// rampTrack builds a track whose samples encode their own index, which makes
// position assertions trivial.
func rampTrack(frames int) *Track {
	samples := make([]float64, frames)
	for i := range samples {
		samples[i] = float64(i) / float64(frames)
	}
	return &Track{Name: "ramp.wav", Samples: samples, SampleRate: testSampleRate}
}

// newLoadedSource returns a FileSource with a synthetic track installed,
// bypassing the decoder and audio output.
func newLoadedSource(frames int) *FileSource {
	s := NewFileSource(testBlockSize, testSampleRate)
	s.track = rampTrack(frames)
	return s
}

// pull drives the playback reader for one analysis block worth of frames.
func pull(s *FileSource) {
	buf := make([]byte, testBlockSize*4)
	s.Read(buf)
}

func TestReadTapsAnalysisBlocks(t *testing.T) {
	s := newLoadedSource(testBlockSize * 4)
	s.Play()

	pull(s)
	block, err := s.NextBlock()
	if err != nil {
		t.Fatalf("NextBlock: %v", err)
	}
	if len(block) != testBlockSize {
		t.Fatalf("block length = %d, want %d", len(block), testBlockSize)
	}
	for i := range block {
		want := s.track.Samples[i]
		if math.Abs(block[i]-want) > 1e-12 {
			t.Fatalf("block[%d] = %v, want %v", i, block[i], want)
		}
	}
}

func TestReadEncodesStereoPCM(t *testing.T) {
	s := NewFileSource(testBlockSize, testSampleRate)
	s.track = &Track{Name: "t", Samples: []float64{0.5, -0.5}, SampleRate: testSampleRate}
	s.playing = true

	buf := make([]byte, 8)
	s.Read(buf)

	left := int16(binary.LittleEndian.Uint16(buf[0:]))
	right := int16(binary.LittleEndian.Uint16(buf[2:]))
	if left != right {
		t.Errorf("mono track should play identically on both channels, got %d and %d", left, right)
	}
	if want := int16(0.5 * 32767); left != want {
		t.Errorf("first sample = %d, want %d", left, want)
	}
	if second := int16(binary.LittleEndian.Uint16(buf[4:])); second != int16(-0.5*32767) {
		t.Errorf("second sample = %d, want %d", second, int16(-0.5*32767))
	}
}

func TestPausedEmitsSilence(t *testing.T) {
	s := newLoadedSource(testBlockSize * 4)
	// Not playing: playback and analysis both see silence.
	pull(s)
	block, err := s.NextBlock()
	if err != nil {
		t.Fatalf("NextBlock: %v", err)
	}
	for i, v := range block {
		if v != 0 {
			t.Fatalf("paused block[%d] = %v, want 0", i, v)
		}
	}
	if s.Info().Position != 0 {
		t.Errorf("position advanced while paused: %v", s.Info().Position)
	}
}

func TestNextBlockNoData(t *testing.T) {
	s := newLoadedSource(testBlockSize)
	if _, err := s.NextBlock(); !errors.Is(err, ErrNoData) {
		t.Errorf("NextBlock with no pull = %v, want ErrNoData", err)
	}
}

func TestExhaustionReportedOnce(t *testing.T) {
	s := newLoadedSource(testBlockSize * 2)
	s.Play()

	pull(s)
	pull(s)
	pull(s) // past the end, silence from here on

	_, err := s.NextBlock()
	if !errors.Is(err, ErrSourceExhausted) {
		t.Fatalf("first NextBlock after end = %v, want ErrSourceExhausted", err)
	}
	if info := s.Info(); info.Playing {
		t.Error("source still reports playing after exhaustion")
	}

	// The exhaustion signal fires once; afterwards normal block delivery
	// resumes (silence while stopped).
	if _, err := s.NextBlock(); errors.Is(err, ErrSourceExhausted) {
		t.Error("ErrSourceExhausted reported twice for one track end")
	}
}

func TestSeekClampsToTrackBounds(t *testing.T) {
	s := newLoadedSource(int(testSampleRate)) // one second of audio

	s.SeekBy(-100)
	if s.pos != 0 {
		t.Errorf("seek before start: pos = %d, want 0", s.pos)
	}

	s.SeekBy(100)
	if want := len(s.track.Samples) - 1; s.pos != want {
		t.Errorf("seek past end: pos = %d, want %d", s.pos, want)
	}

	s.Restart()
	s.SeekBy(0.5)
	if want := int(0.5 * testSampleRate); s.pos != want {
		t.Errorf("seek +0.5s: pos = %d, want %d", s.pos, want)
	}
}

func TestRestartRewinds(t *testing.T) {
	s := newLoadedSource(testBlockSize * 4)
	s.Play()
	pull(s)
	pull(s)

	s.Restart()
	if s.pos != 0 {
		t.Errorf("pos after restart = %d, want 0", s.pos)
	}
	if !s.Info().Playing {
		t.Error("restart must not pause a playing track")
	}
}

func TestTransportWithoutTrack(t *testing.T) {
	s := NewFileSource(testBlockSize, testSampleRate)
	// None of these may panic or start playback with nothing loaded.
	s.Play()
	s.Toggle()
	s.Restart()
	s.SeekBy(5)
	if s.Info().Playing {
		t.Error("source without a track reports playing")
	}
	if info := s.Info(); info.Track != "" || info.Duration != 0 {
		t.Errorf("empty source info = %+v, want zero value", info)
	}
}

func TestInfoReportsPosition(t *testing.T) {
	s := newLoadedSource(int(testSampleRate) * 2)
	s.Play()
	s.SeekBy(1.0)

	info := s.Info()
	if math.Abs(info.Position-1.0) > 0.001 {
		t.Errorf("position = %v, want 1.0", info.Position)
	}
	if math.Abs(info.Duration-2.0) > 0.001 {
		t.Errorf("duration = %v, want 2.0", info.Duration)
	}
	if info.Track != "ramp.wav" {
		t.Errorf("track = %q, want ramp.wav", info.Track)
	}
}

func TestReadPartialFrame(t *testing.T) {
	s := newLoadedSource(testBlockSize)
	s.Play()
	// A buffer that is not a multiple of the frame size must not panic and
	// must still be fully written.
	buf := make([]byte, 7)
	n, err := s.Read(buf)
	if err != nil || n != len(buf) {
		t.Errorf("Read = (%d, %v), want (%d, nil)", n, err, len(buf))
	}
}

func TestPCM16Clamp(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{2.5, 32767},
		{-2.5, -32767},
		{0.5, 16383},
	}
	for _, tt := range tests {
		if got := pcm16(tt.in); got != tt.want {
			t.Errorf("pcm16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
