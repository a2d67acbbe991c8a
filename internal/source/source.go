// SPDX-License-Identifier: MIT

// Package source adapts audio inputs into fixed-size mono float blocks for
// the analysis engine. Two sources exist: decoded file playback (WAV/FLAC,
// played back while being tapped for analysis) and live capture through
// PortAudio. Both publish their latest block into a single-slot buffer;
// the engine pulls with NextBlock and tolerates stale reads, the sources
// never wait for the engine.
package source

// TrackInfo is the transport metadata snapshot folded into feature frames.
type TrackInfo struct {
	Track    string  // base name of the loaded file, or the device name
	Position float64 // seconds from the start of the track
	Duration float64 // track length in seconds, 0 for live capture
	Playing  bool
}

// Source delivers fixed-size mono blocks at the configured sample rate.
//
// NextBlock returns the most recent block, ErrNoData when none is ready yet,
// ErrSourceExhausted once when file playback reaches the end, or a
// *DeviceError when the underlying device fails. The returned slice is owned
// by the source and valid until the next call.
type Source interface {
	Start() error
	NextBlock() ([]float64, error)
	Info() TrackInfo
	Close() error
}

// Controller is implemented by sources that accept transport commands.
// Live capture has no transport, so the engine type-asserts for this.
type Controller interface {
	Play()
	Pause()
	Toggle()
	Restart()
	SeekBy(seconds float64)
	Load(path string) error
}
