// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"math"
	"net"
	"testing"
	"time"

	"rave/internal/engine"
)

type stubFrames struct {
	frame *engine.FeatureFrame
}

func (s *stubFrames) Latest() *engine.FeatureFrame { return s.frame }

func newLoopbackPair(t *testing.T) (*UDPSender, *net.UDPConn) {
	t.Helper()
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	sender, err := NewUDPSender(listener.LocalAddr().String())
	if err != nil {
		listener.Close()
		t.Fatalf("NewUDPSender: %v", err)
	}
	t.Cleanup(func() {
		sender.Close()
		listener.Close()
	})
	return sender, listener
}

func TestPacketFormat(t *testing.T) {
	sender, listener := newLoopbackPair(t)

	frames := &stubFrames{frame: &engine.FeatureFrame{
		Bass:      0.5,
		Mid:       0.25,
		High:      0.125,
		Volume:    0.1,
		Beat:      true,
		TrebleHit: false,
		Intensity: 0.75,
		Mode:      2,
		Position:  12.5,
		Duration:  180,
		Playing:   true,
	}}
	pub, err := NewUDPPublisher(16*time.Millisecond, sender, frames)
	if err != nil {
		t.Fatalf("NewUDPPublisher: %v", err)
	}

	pub.buildAndSendPacket()

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read packet: %v", err)
	}

	// 4 (seq) + 8 (timestamp) + 1 (mode) + 1 (flags) + 7*4 (floats)
	if n != 42 {
		t.Fatalf("packet length = %d, want 42", n)
	}

	if seq := binary.BigEndian.Uint32(buf[0:4]); seq != 1 {
		t.Errorf("sequence = %d, want 1", seq)
	}
	if ts := int64(binary.BigEndian.Uint64(buf[4:12])); ts <= 0 {
		t.Errorf("timestamp = %d, want positive", ts)
	}
	if mode := buf[12]; mode != 2 {
		t.Errorf("mode = %d, want 2", mode)
	}
	flags := buf[13]
	if flags&flagBeat == 0 {
		t.Error("beat flag not set")
	}
	if flags&flagTrebleHit != 0 {
		t.Error("treble flag set unexpectedly")
	}
	if flags&flagPlaying == 0 {
		t.Error("playing flag not set")
	}

	want := []float32{0.5, 0.25, 0.125, 0.1, 0.75, 12.5, 180}
	for i, w := range want {
		off := 14 + i*4
		got := math.Float32frombits(binary.BigEndian.Uint32(buf[off : off+4]))
		if got != w {
			t.Errorf("float field %d = %v, want %v", i, got, w)
		}
	}
}

func TestPublisherSkipsWithoutFrame(t *testing.T) {
	sender, listener := newLoopbackPair(t)

	pub, err := NewUDPPublisher(16*time.Millisecond, sender, &stubFrames{})
	if err != nil {
		t.Fatalf("NewUDPPublisher: %v", err)
	}
	pub.buildAndSendPacket()

	listener.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	buf := make([]byte, 64)
	if _, _, err := listener.ReadFromUDP(buf); err == nil {
		t.Error("publisher sent a packet before any frame was published")
	}
	if pub.sequenceNum != 0 {
		t.Errorf("sequence advanced to %d without a frame", pub.sequenceNum)
	}
}

func TestPublisherStartStop(t *testing.T) {
	sender, _ := newLoopbackPair(t)

	pub, err := NewUDPPublisher(5*time.Millisecond, sender, &stubFrames{frame: &engine.FeatureFrame{}})
	if err != nil {
		t.Fatalf("NewUDPPublisher: %v", err)
	}

	pub.Start()
	pub.Start() // no-op while running
	time.Sleep(20 * time.Millisecond)
	if err := pub.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := pub.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestSenderRejectsAfterClose(t *testing.T) {
	sender, _ := newLoopbackPair(t)

	if err := sender.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sender.Send([]byte{1, 2, 3}); err == nil {
		t.Error("Send after Close should fail")
	}
}
