// SPDX-License-Identifier: MIT
/*
Package engine runs the analysis loop that turns raw audio blocks into
feature frames:
- Windowed FFT with pre-allocated workspaces
- Bass/mid/high band energies and time-domain RMS
- Beat and treble onset detection with a refractory period
- Smoothed intensity gating with asymmetric attack/release
- Visual mode scheduling with automatic and manual switching

Thread Safety:
- The analysis loop runs on a single goroutine
- Frames are published through an atomic pointer, readers never block
- Transport control arrives over a buffered command channel
*/
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"rave/internal/config"
	"rave/internal/dsp"
	applog "rave/internal/log"
	"rave/internal/source"
	"rave/internal/transport"
	"rave/internal/vis"
)

type commandKind int

const (
	cmdPlay commandKind = iota
	cmdPause
	cmdToggle
	cmdRestart
	cmdSeek
	cmdLoad
	cmdNextMode
)

type command struct {
	kind    commandKind
	seconds float64
	path    string
}

// Engine owns the analysis pipeline. It pulls mono blocks from a Source,
// extracts features, advances the mode scheduler on audio time and publishes
// a FeatureFrame per block.
type Engine struct {
	cfg *config.Config
	src source.Source

	spectrum  *dsp.Spectrum
	splitter  *dsp.BandSplitter
	beat      *dsp.BeatDetector
	treble    *dsp.BeatDetector
	gate      *dsp.IntensityGate
	scheduler *vis.Scheduler

	transports []transport.Transport

	// Audio-time clock: advances exactly one block duration per processed
	// block, independent of wall-clock jitter.
	clock    time.Duration
	blockDur time.Duration
	blockSec float64

	latest atomic.Pointer[FeatureFrame]

	specMu       sync.RWMutex
	specSnapshot []float64

	commands chan command
}

// NewEngine builds the pipeline from configuration. All buffers are
// allocated here; the per-block path allocates only the published frame.
func NewEngine(cfg *config.Config, src source.Source) (*Engine, error) {
	windowType, err := dsp.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return nil, err
	}
	spectrum, err := dsp.NewSpectrum(cfg.Audio.BlockSize, cfg.Audio.SampleRate, windowType)
	if err != nil {
		return nil, err
	}

	bands := cfg.Analysis.Bands
	splitter := dsp.NewBandSplitter(cfg.Audio.BlockSize, cfg.Audio.SampleRate,
		dsp.BandRange{LowHz: bands.Bass.LowHz, HighHz: bands.Bass.HighHz},
		dsp.BandRange{LowHz: bands.Mid.LowHz, HighHz: bands.Mid.HighHz},
		dsp.BandRange{LowHz: bands.High.LowHz, HighHz: bands.High.HighHz},
	)

	beatCfg := cfg.Analysis.Beat
	intCfg := cfg.Analysis.Intensity

	return &Engine{
		cfg:          cfg,
		src:          src,
		spectrum:     spectrum,
		splitter:     splitter,
		beat:         dsp.NewBeatDetector(beatCfg.Multiplier, cfg.BeatRefractory(), beatCfg.HistoryFrames),
		treble:       dsp.NewBeatDetector(beatCfg.TrebleMultiplier, cfg.BeatRefractory(), beatCfg.HistoryFrames),
		gate:         dsp.NewIntensityGate(intCfg.Attack, intCfg.Release, intCfg.SilenceThreshold, intCfg.Floor),
		scheduler:    vis.NewScheduler(cfg.Modes.Count, cfg.Modes.IntervalSeconds),
		blockDur:     cfg.BlockDuration(),
		blockSec:     float64(cfg.Audio.BlockSize) / cfg.Audio.SampleRate,
		specSnapshot: make([]float64, spectrum.Bins()),
		commands:     make(chan command, 16),
	}, nil
}

// AddTransport registers a frame consumer. Must be called before Run.
func (e *Engine) AddTransport(t transport.Transport) {
	e.transports = append(e.transports, t)
}

// Run drives the analysis loop until ctx is cancelled. Pacing comes from the
// source: a fresh block is processed immediately, a stale slot backs off for
// a fraction of a block.
func (e *Engine) Run(ctx context.Context) error {
	idle := e.blockDur / 4
	if idle <= 0 {
		idle = time.Millisecond
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := e.Step()
		switch {
		case err == nil:
			continue
		case errors.Is(err, source.ErrNoData):
			// Nothing fresh yet. The last published frame stays valid.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idle):
			}
		case errors.Is(err, source.ErrSourceExhausted):
			e.handleExhausted()
		default:
			var devErr *source.DeviceError
			if errors.As(err, &devErr) {
				applog.Errorf("Engine: Device failure (%s): %v", devErr.Op, devErr.Err)
			} else {
				applog.Errorf("Engine: Analysis error: %v", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.blockDur):
			}
		}
	}
}

// Step applies pending commands and runs one analysis cycle: pull a block,
// extract features, publish the frame. Returns the source error when no
// block was available.
func (e *Engine) Step() error {
	e.applyCommands()

	block, err := e.src.NextBlock()
	if err != nil {
		return err
	}
	e.process(block)
	return nil
}

func (e *Engine) process(block []float64) {
	e.clock += e.blockDur

	magnitudes := e.spectrum.Analyze(block)

	// Snapshot is normalized to the block's peak magnitude so renderers can
	// draw spectra without tracking absolute scale.
	peak := 0.0
	for _, m := range magnitudes {
		if m > peak {
			peak = m
		}
	}
	e.specMu.Lock()
	if peak > 0 {
		for i, m := range magnitudes {
			e.specSnapshot[i] = m / peak
		}
	} else {
		for i := range e.specSnapshot {
			e.specSnapshot[i] = 0
		}
	}
	e.specMu.Unlock()

	bands := e.splitter.Split(magnitudes)
	beat := e.beat.Detect(bands.Bass, e.clock)
	trebleHit := e.treble.Detect(bands.High, e.clock)
	volume := dsp.RMS(block)
	intensity := e.gate.Gate(volume)

	if e.scheduler.Tick(e.blockSec) {
		applog.Debugf("Engine: Mode advanced to %s", e.scheduler.Current())
	}

	info := e.src.Info()
	frame := &FeatureFrame{
		Bass:      bands.Bass,
		Mid:       bands.Mid,
		High:      bands.High,
		Volume:    volume,
		Beat:      beat,
		TrebleHit: trebleHit,
		Intensity: intensity,
		Mode:      e.scheduler.Current(),
		Track:     info.Track,
		Position:  info.Position,
		Duration:  info.Duration,
		Playing:   info.Playing,
	}
	e.latest.Store(frame)

	for _, t := range e.transports {
		if err := t.Send(frame); err != nil {
			applog.Warnf("Engine: Transport send failed: %v", err)
		}
	}
}

func (e *Engine) handleExhausted() {
	ctl, ok := e.src.(source.Controller)
	if !ok {
		return
	}
	if e.cfg.Audio.Loop {
		applog.Infof("Engine: Track finished, looping")
		ctl.Restart()
		ctl.Play()
		e.resetDetectors()
		return
	}
	applog.Infof("Engine: Track finished")
}

func (e *Engine) applyCommands() {
	for {
		select {
		case cmd := <-e.commands:
			e.apply(cmd)
		default:
			return
		}
	}
}

func (e *Engine) apply(cmd command) {
	ctl, ok := e.src.(source.Controller)
	if !ok && cmd.kind != cmdNextMode {
		applog.Debugf("Engine: Source does not accept transport commands")
		return
	}

	switch cmd.kind {
	case cmdPlay:
		ctl.Play()
	case cmdPause:
		ctl.Pause()
	case cmdToggle:
		ctl.Toggle()
	case cmdRestart:
		ctl.Restart()
		e.resetDetectors()
	case cmdSeek:
		ctl.SeekBy(cmd.seconds)
		e.resetDetectors()
	case cmdLoad:
		if err := ctl.Load(cmd.path); err != nil {
			applog.Errorf("Engine: Failed to load %s: %v", cmd.path, err)
			return
		}
		e.resetDetectors()
	case cmdNextMode:
		e.scheduler.Next()
	}
}

// resetDetectors clears the rolling histories after a discontinuity so stale
// energy averages cannot suppress or fabricate onsets.
func (e *Engine) resetDetectors() {
	e.beat.Reset()
	e.treble.Reset()
	e.gate.Reset()
}

// Latest returns the most recently published frame, or nil before the first
// block has been processed. The returned frame is immutable.
func (e *Engine) Latest() *FeatureFrame {
	return e.latest.Load()
}

// SpectrumInto copies the latest peak-normalized magnitude spectrum into dst
// and reports the number of bins copied. Used by transports that stream
// spectra to drawing renderers.
func (e *Engine) SpectrumInto(dst []float64) int {
	e.specMu.RLock()
	defer e.specMu.RUnlock()
	return copy(dst, e.specSnapshot)
}

// Bins returns the number of spectrum bins per frame.
func (e *Engine) Bins() int {
	return e.spectrum.Bins()
}

// Transport control. All commands are queued and applied on the analysis
// goroutine between blocks; a full queue drops the command rather than
// blocking the caller.

func (e *Engine) Play()    { e.enqueue(command{kind: cmdPlay}) }
func (e *Engine) Pause()   { e.enqueue(command{kind: cmdPause}) }
func (e *Engine) Toggle()  { e.enqueue(command{kind: cmdToggle}) }
func (e *Engine) Restart() { e.enqueue(command{kind: cmdRestart}) }

// SeekBy moves playback by a signed number of seconds.
func (e *Engine) SeekBy(seconds float64) {
	e.enqueue(command{kind: cmdSeek, seconds: seconds})
}

// Load queues a track change.
func (e *Engine) Load(path string) {
	e.enqueue(command{kind: cmdLoad, path: path})
}

// NextMode forces a manual mode switch and restarts the auto-switch timer.
func (e *Engine) NextMode() {
	e.enqueue(command{kind: cmdNextMode})
}

func (e *Engine) enqueue(cmd command) {
	select {
	case e.commands <- cmd:
	default:
		applog.Warnf("Engine: Command queue full, dropping command")
	}
}

// Close shuts down the transports and the source.
func (e *Engine) Close() error {
	var firstErr error
	for _, t := range e.transports {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := e.src.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
