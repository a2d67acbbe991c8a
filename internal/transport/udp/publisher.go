// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"rave/internal/engine"
	applog "rave/internal/log"
)

// FrameSource provides the latest published feature frame. Satisfied by
// *engine.Engine.
type FrameSource interface {
	Latest() *engine.FeatureFrame
}

// UDPPublisher periodically fetches the latest feature frame, packs it into
// a fixed binary format and sends it over UDP using a UDPSender. Unlike the
// per-block push transports, the publisher runs on its own clock so native
// renderers receive a steady frame rate regardless of block cadence.
type UDPPublisher struct {
	sender   *UDPSender
	frames   FrameSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop

	sequenceNum uint32

	// Reusable buffer for constructing the binary packet.
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher sending one packet per interval.
// An invalid interval (<= 0) falls back to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, frames FrameSource) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if frames == nil {
		return nil, fmt.Errorf("UDPPublisher: frame source cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)

	return &UDPPublisher{
		sender:       sender,
		frames:       frames,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start begins the periodic publishing process. Safe to call multiple
// times; subsequent calls are no-ops while running.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				applog.Infof("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it.
// Safe to call multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		applog.Debugf("UDPPublisher: Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		applog.Infof("UDPPublisher: Initiating stop sequence...")
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Flag bits in the packet's flags byte.
const (
	flagBeat      = 1 << 0
	flagTrebleHit = 1 << 1
	flagPlaying   = 1 << 2
)

/*
UDP Packet Structure (BigEndian)

+----------------------------------------------------------------------------+
| Field             | Data Type | Size (Bytes) | Description                 |
|-------------------|-----------|--------------|-----------------------------|
| Sequence Number   | uint32    | 4            | Monotonically increasing    |
| Timestamp         | int64     | 8            | Nanoseconds since epoch     |
| Mode              | uint8     | 1            | Current visual mode index   |
| Flags             | uint8     | 1            | Beat / treble-hit / playing |
| Bass              | float32   | 4            | Bass band energy            |
| Mid               | float32   | 4            | Mid band energy             |
| High              | float32   | 4            | High band energy            |
| Volume            | float32   | 4            | Time-domain RMS             |
| Intensity         | float32   | 4            | Smoothed intensity [0,1]    |
| Position          | float32   | 4            | Playback position (seconds) |
| Duration          | float32   | 4            | Track length (seconds)      |
+----------------------------------------------------------------------------+
*/

// buildAndSendPacket packs the latest frame and sends it. Skips the tick
// when no frame has been published yet.
func (p *UDPPublisher) buildAndSendPacket() {
	frame := p.frames.Latest()
	if frame == nil {
		return
	}

	p.sequenceNum++
	timestamp := time.Now().UnixNano()

	var flags uint8
	if frame.Beat {
		flags |= flagBeat
	}
	if frame.TrebleHit {
		flags |= flagTrebleHit
	}
	if frame.Playing {
		flags |= flagPlaying
	}

	p.packetBuffer.Reset()

	err := binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, uint8(frame.Mode))
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, flags)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, [7]float32{
			float32(frame.Bass),
			float32(frame.Mid),
			float32(frame.High),
			float32(frame.Volume),
			float32(frame.Intensity),
			float32(frame.Position),
			float32(frame.Duration),
		})
	}
	if err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err != nil {
		applog.Debugf("UDPPublisher: Send failed for packet %d: %v", p.sequenceNum, err)
		return
	}
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
}

// Close implements io.Closer by stopping the publisher goroutine.
func (p *UDPPublisher) Close() error {
	applog.Debugf("UDPPublisher: Close called, stopping publisher...")
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
