// Package config holds all runtime configuration for the analysis engine.
// Configuration is resolved in three steps: built-in defaults, optional YAML
// file, environment overrides. Validate runs once at startup so invalid
// combinations are rejected before the real-time loop starts, never
// mid-stream.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rave/pkg/bitint"
)

// Limits for audio settings.
const (
	MinDeviceID   = -1 // -1 selects the system default device
	MinSampleRate = 8000
	MaxSampleRate = 192000
	MaxBlockSize  = 8192
)

// Defaults for the analysis pipeline.
const (
	DefaultSampleRate       = 44100
	DefaultBlockSize        = 1024
	DefaultChannels         = 1
	DefaultWindow           = "Hann"
	DefaultBeatMultiplier   = 1.4
	DefaultTrebleMultiplier = 1.65
	DefaultRefractoryMs     = 150
	DefaultHistoryFrames    = 64
	DefaultAttack           = 0.35
	DefaultRelease          = 0.08
	DefaultSilenceThreshold = 0.012
	DefaultIntensityFloor   = 0.05
	DefaultModeCount        = 3
	DefaultModeIntervalSec  = 30.0
)

// Config is the root configuration structure, loadable from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Command   string          `yaml:"-"` // One-off command ("list"), CLI only.
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Modes     ModeConfig      `yaml:"modes"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds input source and block format settings.
type AudioConfig struct {
	Device     int     `yaml:"device"`      // Capture device index (-1 for default).
	SampleRate float64 `yaml:"sample_rate"` // Hz.
	BlockSize  int     `yaml:"block_size"`  // Samples per analysis block, power of 2.
	Channels   int     `yaml:"channels"`    // Capture channels (1 or 2), downmixed to mono.
	LowLatency bool    `yaml:"low_latency"` // Request low latency capture settings.
	File       string  `yaml:"-"`           // Audio file to play, CLI only.
	Loop       bool    `yaml:"loop"`        // Restart file playback on exhaustion.
	Capture    bool    `yaml:"-"`           // Use live capture instead of file playback.
}

// BandRange bounds one frequency band in Hz.
type BandRange struct {
	LowHz  float64 `yaml:"low_hz"`
	HighHz float64 `yaml:"high_hz"`
}

// BandConfig defines the three energy bands fed to the renderer.
type BandConfig struct {
	Bass BandRange `yaml:"bass"`
	Mid  BandRange `yaml:"mid"`
	High BandRange `yaml:"high"`
}

// BeatConfig tunes onset detection. The multiplier and history length are
// tunable defaults, not contractual constants.
type BeatConfig struct {
	Multiplier       float64 `yaml:"multiplier"`        // Bass onset threshold over the local average.
	TrebleMultiplier float64 `yaml:"treble_multiplier"` // High-band onset threshold.
	RefractoryMs     int     `yaml:"refractory_ms"`     // Minimum spacing between flagged beats.
	HistoryFrames    int     `yaml:"history_frames"`    // Length of the rolling energy history.
}

// IntensityConfig tunes the smoothed visual intensity signal.
type IntensityConfig struct {
	Attack           float64 `yaml:"attack"`            // Smoothing coefficient while rising (larger = faster).
	Release          float64 `yaml:"release"`           // Smoothing coefficient while falling.
	SilenceThreshold float64 `yaml:"silence_threshold"` // RMS level treated as silence.
	Floor            float64 `yaml:"floor"`             // Calm floor the signal settles at during silence.
}

// AnalysisConfig groups the spectral pipeline settings.
type AnalysisConfig struct {
	Window    string          `yaml:"window"` // FFT window function name.
	Bands     BandConfig      `yaml:"bands"`
	Beat      BeatConfig      `yaml:"beat"`
	Intensity IntensityConfig `yaml:"intensity"`
}

// ModeConfig tunes the visual mode scheduler.
type ModeConfig struct {
	Count           int     `yaml:"count"`            // Number of visual modes to cycle through.
	IntervalSeconds float64 `yaml:"interval_seconds"` // Automatic switch interval.
}

// TransportConfig controls the out-of-process renderer hand-off.
type TransportConfig struct {
	WebSocketEnabled bool   `yaml:"websocket_enabled"`
	WebSocketAddr    string `yaml:"websocket_addr"`
	UDPEnabled       bool   `yaml:"udp_enabled"`
	UDPTargetAddress string `yaml:"udp_target_address"`
	UDPSendIntervalMs int   `yaml:"udp_send_interval_ms"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Device:     MinDeviceID,
			SampleRate: DefaultSampleRate,
			BlockSize:  DefaultBlockSize,
			Channels:   DefaultChannels,
		},
		Analysis: AnalysisConfig{
			Window: DefaultWindow,
			Bands: BandConfig{
				Bass: BandRange{LowHz: 20, HighHz: 180},
				Mid:  BandRange{LowHz: 180, HighHz: 2000},
				High: BandRange{LowHz: 2000, HighHz: 12000},
			},
			Beat: BeatConfig{
				Multiplier:       DefaultBeatMultiplier,
				TrebleMultiplier: DefaultTrebleMultiplier,
				RefractoryMs:     DefaultRefractoryMs,
				HistoryFrames:    DefaultHistoryFrames,
			},
			Intensity: IntensityConfig{
				Attack:           DefaultAttack,
				Release:          DefaultRelease,
				SilenceThreshold: DefaultSilenceThreshold,
				Floor:            DefaultIntensityFloor,
			},
		},
		Modes: ModeConfig{
			Count:           DefaultModeCount,
			IntervalSeconds: DefaultModeIntervalSec,
		},
		Transport: TransportConfig{
			WebSocketAddr:     ":8080",
			UDPTargetAddress:  "127.0.0.1:9090",
			UDPSendIntervalMs: 16, // ~60Hz
		},
	}
}

// Load builds a Config from defaults, an optional YAML file and environment
// overrides. An empty path searches "rave.yaml" in the working directory.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		if _, err := os.Stat("rave.yaml"); err == nil {
			path = "rave.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration before the engine enters its real-time
// loop. Every failure here is fatal at startup by design.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f out of range [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if !bitint.IsPowerOfTwo(c.Audio.BlockSize) {
		return fmt.Errorf("audio.block_size must be a power of 2, got %d", c.Audio.BlockSize)
	}
	if c.Audio.BlockSize > MaxBlockSize {
		return fmt.Errorf("audio.block_size %d exceeds maximum %d", c.Audio.BlockSize, MaxBlockSize)
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got %d", c.Audio.Channels)
	}
	for _, band := range []struct {
		name string
		r    BandRange
	}{
		{"bass", c.Analysis.Bands.Bass},
		{"mid", c.Analysis.Bands.Mid},
		{"high", c.Analysis.Bands.High},
	} {
		if band.r.LowHz < 0 || band.r.HighHz <= band.r.LowHz {
			return fmt.Errorf("analysis.bands.%s range [%.0f, %.0f) is invalid", band.name, band.r.LowHz, band.r.HighHz)
		}
	}
	if c.Analysis.Beat.Multiplier <= 1.0 {
		return fmt.Errorf("analysis.beat.multiplier must be > 1.0, got %.2f", c.Analysis.Beat.Multiplier)
	}
	if c.Analysis.Beat.RefractoryMs <= 0 {
		return fmt.Errorf("analysis.beat.refractory_ms must be positive, got %d", c.Analysis.Beat.RefractoryMs)
	}
	if c.Analysis.Beat.HistoryFrames < 2 {
		return fmt.Errorf("analysis.beat.history_frames must be >= 2, got %d", c.Analysis.Beat.HistoryFrames)
	}
	if c.Analysis.Intensity.Attack <= 0 || c.Analysis.Intensity.Attack > 1 {
		return fmt.Errorf("analysis.intensity.attack must be in (0, 1], got %.3f", c.Analysis.Intensity.Attack)
	}
	if c.Analysis.Intensity.Release <= 0 || c.Analysis.Intensity.Release > 1 {
		return fmt.Errorf("analysis.intensity.release must be in (0, 1], got %.3f", c.Analysis.Intensity.Release)
	}
	if c.Analysis.Intensity.Floor < 0 || c.Analysis.Intensity.Floor > 1 {
		return fmt.Errorf("analysis.intensity.floor must be in [0, 1], got %.3f", c.Analysis.Intensity.Floor)
	}
	if c.Modes.Count < 1 {
		return fmt.Errorf("modes.count must be >= 1, got %d", c.Modes.Count)
	}
	if c.Modes.IntervalSeconds <= 0 {
		return fmt.Errorf("modes.interval_seconds must be positive, got %.1f", c.Modes.IntervalSeconds)
	}
	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)", c.Transport.UDPTargetAddress)
		}
		if c.Transport.UDPSendIntervalMs <= 0 {
			return fmt.Errorf("transport.udp_send_interval_ms must be positive when UDP is enabled")
		}
	}
	return nil
}

// BeatRefractory returns the beat refractory period as a duration.
func (c *Config) BeatRefractory() time.Duration {
	return time.Duration(c.Analysis.Beat.RefractoryMs) * time.Millisecond
}

// ModeInterval returns the automatic mode switch interval as a duration.
func (c *Config) ModeInterval() time.Duration {
	return time.Duration(c.Modes.IntervalSeconds * float64(time.Second))
}

// UDPSendInterval returns the UDP publish interval as a duration.
func (c *Config) UDPSendInterval() time.Duration {
	return time.Duration(c.Transport.UDPSendIntervalMs) * time.Millisecond
}

// BlockDuration returns the real-time duration of one analysis block.
func (c *Config) BlockDuration() time.Duration {
	return time.Duration(float64(c.Audio.BlockSize) / c.Audio.SampleRate * float64(time.Second))
}

func (c *Config) applyEnvOverrides() {
	// RAVE_LOG_LEVEL
	if val, ok := os.LookupEnv("RAVE_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	// RAVE_DEVICE
	if val, ok := os.LookupEnv("RAVE_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Audio.Device = iVal
		}
	}
	// RAVE_WS_ADDR
	if val, ok := os.LookupEnv("RAVE_WS_ADDR"); ok {
		c.Transport.WebSocketEnabled = true
		c.Transport.WebSocketAddr = val
	}
	// RAVE_UDP_TARGET
	if val, ok := os.LookupEnv("RAVE_UDP_TARGET"); ok {
		c.Transport.UDPEnabled = true
		c.Transport.UDPTargetAddress = val
	}
}
