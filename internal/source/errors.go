// SPDX-License-Identifier: MIT
package source

import (
	"errors"
	"fmt"
)

// ErrNoData means no fresh block is available yet; the caller should retry
// after a short interval.
var ErrNoData = errors.New("no audio block available")

// ErrSourceExhausted means file playback reached the end of the track.
// Recoverable: the caller decides whether to stop, loop or await a new load.
var ErrSourceExhausted = errors.New("audio source exhausted")

// DeviceError wraps a capture or playback device failure. Analysis pauses
// until the source is re-established; the error never crashes the engine.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device error during %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
