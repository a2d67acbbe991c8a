// SPDX-License-Identifier: MIT

// Package vis holds the visual mode state machine. The scheduler decides
// which rendering mode is active; drawing itself lives outside the engine.
package vis

import "fmt"

// Mode identifies one visual rendering style.
type Mode int

const (
	ModeBurst Mode = iota // particle bursts
	ModeRings             // expanding ring fractals
	ModeTunnel            // tunnel fly-through
)

func (m Mode) String() string {
	switch m {
	case ModeBurst:
		return "burst"
	case ModeRings:
		return "rings"
	case ModeTunnel:
		return "tunnel"
	default:
		return fmt.Sprintf("mode%d", int(m))
	}
}

// Scheduler cycles through a fixed ordered set of modes, advancing
// automatically after a fixed interval or immediately on manual request.
// Time is advanced explicitly through Tick, so the scheduler never sleeps
// and behaves identically under a simulated clock. Not safe for concurrent
// use; the engine owns it and applies manual switches between cycles.
type Scheduler struct {
	modes    int
	interval float64 // seconds
	current  Mode
	elapsed  float64 // seconds since the last switch
}

// NewScheduler creates a scheduler starting at mode 0 with a zeroed timer.
func NewScheduler(modes int, intervalSeconds float64) *Scheduler {
	if modes < 1 {
		modes = 1
	}
	if intervalSeconds <= 0 {
		intervalSeconds = 30
	}
	return &Scheduler{
		modes:    modes,
		interval: intervalSeconds,
	}
}

// Tick advances the timer by dt seconds and reports whether the mode
// switched. Each elapsed interval advances exactly one step.
func (s *Scheduler) Tick(dt float64) bool {
	s.elapsed += dt
	switched := false
	for s.elapsed >= s.interval {
		s.advance()
		s.elapsed -= s.interval
		switched = true
	}
	return switched
}

// Next performs a manual switch: advance immediately and reset the timer,
// so a manual switch cannot be followed by a near-simultaneous automatic one.
func (s *Scheduler) Next() Mode {
	s.advance()
	s.elapsed = 0
	return s.current
}

// Current returns the active mode.
func (s *Scheduler) Current() Mode {
	return s.current
}

// Elapsed returns seconds since the last switch.
func (s *Scheduler) Elapsed() float64 {
	return s.elapsed
}

func (s *Scheduler) advance() {
	s.current = Mode((int(s.current) + 1) % s.modes)
}
