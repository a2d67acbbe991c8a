// SPDX-License-Identifier: MIT
package source

import (
	"runtime"
	"time"

	"github.com/gordonklaus/portaudio"
)

// CaptureSource delivers live input from a PortAudio device. The stream
// callback downmixes to mono into a pre-allocated buffer and publishes it to
// the slot; no allocation or blocking happens on the callback thread.
type CaptureSource struct {
	device     *portaudio.DeviceInfo
	channels   int
	blockSize  int
	sampleRate float64
	latency    time.Duration

	stream *portaudio.Stream
	slot   *blockSlot
	mono   []float64 // callback-side downmix buffer
	out    []float64 // consumer-side buffer returned by NextBlock
}

var _ Source = (*CaptureSource)(nil)

// NewCaptureSource resolves the capture device and pre-allocates all
// buffers. deviceID -1 selects the system default input device.
func NewCaptureSource(deviceID, channels, blockSize int, sampleRate float64, lowLatency bool) (*CaptureSource, error) {
	device, err := InputDevice(deviceID)
	if err != nil {
		return nil, &DeviceError{Op: "resolve input device", Err: err}
	}

	latency := device.DefaultHighInputLatency
	if lowLatency {
		latency = device.DefaultLowInputLatency
	}

	return &CaptureSource{
		device:     device,
		channels:   channels,
		blockSize:  blockSize,
		sampleRate: sampleRate,
		latency:    latency,
		slot:       newBlockSlot(blockSize),
		mono:       make([]float64, blockSize),
		out:        make([]float64, blockSize),
	}, nil
}

// Start opens and starts the input stream. From the first callback on, the
// hot path begins.
func (s *CaptureSource) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: s.channels,
			Device:   s.device,
			Latency:  s.latency,
		},
		FramesPerBuffer: s.blockSize,
		SampleRate:      s.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.processInput)
	if err != nil {
		return &DeviceError{Op: "open input stream", Err: err}
	}
	s.stream = stream

	if err := s.stream.Start(); err != nil {
		s.stream.Close()
		s.stream = nil
		return &DeviceError{Op: "start input stream", Err: err}
	}
	return nil
}

// processInput is the capture callback. Performance critical: pre-allocated
// buffers only, no allocations, no blocking beyond the slot memcpy.
func (s *CaptureSource) processInput(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if s.channels == 1 {
		n := min(len(in), s.blockSize)
		for i := range n {
			s.mono[i] = float64(in[i])
		}
		for i := n; i < s.blockSize; i++ {
			s.mono[i] = 0
		}
	} else {
		for i := 0; i < s.blockSize; i++ {
			base := i * s.channels
			if base+s.channels > len(in) {
				s.mono[i] = 0
				continue
			}
			var sum float64
			for ch := 0; ch < s.channels; ch++ {
				sum += float64(in[base+ch])
			}
			s.mono[i] = sum / float64(s.channels)
		}
	}

	s.slot.put(s.mono)
}

// NextBlock returns the most recent captured block, or ErrNoData when the
// callback has not delivered a new one since the previous call.
func (s *CaptureSource) NextBlock() ([]float64, error) {
	if s.stream == nil {
		return nil, &DeviceError{Op: "read", Err: ErrNoData}
	}
	if !s.slot.take(s.out) {
		return nil, ErrNoData
	}
	return s.out, nil
}

// Info reports the device name; live capture has no track position.
func (s *CaptureSource) Info() TrackInfo {
	return TrackInfo{
		Track:   s.device.Name,
		Playing: s.stream != nil,
	}
}

// Close stops and closes the input stream.
func (s *CaptureSource) Close() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return &DeviceError{Op: "stop input stream", Err: err}
	}
	if err := s.stream.Close(); err != nil {
		return &DeviceError{Op: "close input stream", Err: err}
	}
	s.stream = nil
	return nil
}
