// SPDX-License-Identifier: MIT
package source

import (
	"encoding/binary"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// One oto context per process; its sample rate is fixed at creation, which
// is why DecodeFile resamples tracks to the engine rate up front.
var (
	otoCtx     *oto.Context
	otoOnce    sync.Once
	otoInitErr error
)

func initOto(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
		}
	})
	return otoCtx, otoInitErr
}

// FileSource plays a decoded track through oto while tapping every block of
// samples for analysis. The oto player pulls PCM through Read on its own
// goroutine; each blockSize mono samples that pass through (silence included
// while paused) land in the slot for the engine. This keeps analysis locked
// to the playback clock: what the speakers get is what gets analyzed.
type FileSource struct {
	blockSize  int
	sampleRate float64

	mu        sync.Mutex
	track     *Track
	pos       int // sample position within the track
	playing   bool
	exhausted bool // end of track reached, reported once by NextBlock

	slot    *blockSlot
	tap     []float64 // mono block being accumulated for analysis
	tapFill int
	out     []float64 // consumer-side buffer returned by NextBlock

	player *oto.Player
}

var _ Source = (*FileSource)(nil)
var _ Controller = (*FileSource)(nil)

// NewFileSource creates a file playback source with no track loaded.
func NewFileSource(blockSize int, sampleRate float64) *FileSource {
	return &FileSource{
		blockSize:  blockSize,
		sampleRate: sampleRate,
		slot:       newBlockSlot(blockSize),
		tap:        make([]float64, blockSize),
		out:        make([]float64, blockSize),
	}
}

// Start opens the audio output and begins the playback pull loop. The
// player runs even with no track loaded, emitting silence, so loading a
// track later needs no stream restart.
func (s *FileSource) Start() error {
	ctx, err := initOto(int(s.sampleRate))
	if err != nil {
		return &DeviceError{Op: "open output", Err: err}
	}
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return nil
}

// Read produces interleaved 16-bit stereo PCM for the oto player and taps
// the mono stream for analysis. Called from oto's playback goroutine; the
// lock is held only for buffer arithmetic, never for I/O.
func (s *FileSource) Read(p []byte) (int, error) {
	const frameBytes = 4 // 2 channels x int16

	s.mu.Lock()
	frames := len(p) / frameBytes
	for f := range frames {
		var v float64
		if s.playing && s.track != nil && s.pos < len(s.track.Samples) {
			v = s.track.Samples[s.pos]
			s.pos++
			if s.pos >= len(s.track.Samples) {
				s.playing = false
				s.exhausted = true
			}
		}

		pcm := pcm16(v)
		off := f * frameBytes
		binary.LittleEndian.PutUint16(p[off:], uint16(pcm))
		binary.LittleEndian.PutUint16(p[off+2:], uint16(pcm))

		s.tap[s.tapFill] = v
		s.tapFill++
		if s.tapFill == s.blockSize {
			s.slot.put(s.tap)
			s.tapFill = 0
		}
	}
	s.mu.Unlock()

	// Zero any trailing bytes that do not make a whole frame.
	for i := frames * frameBytes; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// NextBlock returns the latest tapped block. The first call after the track
// ends reports ErrSourceExhausted so the engine can decide to loop or stop.
func (s *FileSource) NextBlock() ([]float64, error) {
	s.mu.Lock()
	if s.exhausted {
		s.exhausted = false
		s.mu.Unlock()
		return nil, ErrSourceExhausted
	}
	s.mu.Unlock()

	if !s.slot.take(s.out) {
		return nil, ErrNoData
	}
	return s.out, nil
}

// Load decodes a new track and makes it current, paused at the start.
// Analysis tap state resets so stale samples from the previous track never
// reach the engine.
func (s *FileSource) Load(path string) error {
	track, err := DecodeFile(path, s.sampleRate)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.track = track
	s.pos = 0
	s.playing = false
	s.exhausted = false
	s.tapFill = 0
	s.mu.Unlock()
	return nil
}

// Play resumes playback. No-op without a track.
func (s *FileSource) Play() {
	s.mu.Lock()
	if s.track != nil {
		s.playing = true
	}
	s.mu.Unlock()
}

// Pause suspends playback; silence keeps flowing to analysis.
func (s *FileSource) Pause() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
}

// Toggle flips between playing and paused.
func (s *FileSource) Toggle() {
	s.mu.Lock()
	if s.track != nil {
		s.playing = !s.playing
	}
	s.mu.Unlock()
}

// Restart rewinds to the start of the track without changing play state.
func (s *FileSource) Restart() {
	s.mu.Lock()
	if s.track != nil {
		s.pos = 0
		s.exhausted = false
	}
	s.mu.Unlock()
}

// SeekBy moves the position by a signed number of seconds, clamped to the
// track bounds.
func (s *FileSource) SeekBy(seconds float64) {
	s.mu.Lock()
	if s.track != nil {
		delta := int(seconds * s.sampleRate)
		pos := s.pos + delta
		if pos < 0 {
			pos = 0
		}
		if max := len(s.track.Samples) - 1; pos > max {
			pos = max
		}
		s.pos = pos
	}
	s.mu.Unlock()
}

// Info returns the transport snapshot for feature frames.
func (s *FileSource) Info() TrackInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track == nil {
		return TrackInfo{}
	}
	return TrackInfo{
		Track:    s.track.Name,
		Position: float64(s.pos) / s.sampleRate,
		Duration: s.track.Duration(),
		Playing:  s.playing,
	}
}

// Close stops playback output.
func (s *FileSource) Close() error {
	if s.player != nil {
		if err := s.player.Close(); err != nil {
			return &DeviceError{Op: "close output", Err: err}
		}
		s.player = nil
	}
	return nil
}

// pcm16 converts a float sample in [-1, 1] to a clamped int16.
func pcm16(v float64) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}
