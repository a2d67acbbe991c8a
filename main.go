// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"rave/cmd"
	"rave/internal/config"
	"rave/internal/engine"
	applog "rave/internal/log"
	"rave/internal/source"
	"rave/internal/transport"
	"rave/internal/transport/udp"
	"rave/pkg/build"
)

// main is the entry point for the analysis engine. The program flow is
// divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments and configuration
//   - Execute one-off commands if requested
//   - Open the audio source and renderer transports
//
// 2. Concurrent Phase (Hot Path):
//   - Run the per-block analysis loop
//   - Publish a feature frame per block
//   - Stream frames to connected renderers
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop the loop and release the source and transports
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rave:", err)
		os.Exit(1)
	}
}

func run() error {
	// ==================== STARTUP PHASE (Cold Path) ====================

	build.Initialize()

	// Limit OS threads: one for the analysis loop, one for transports
	// and I/O.
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs()
	if err != nil {
		return err
	}

	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	applog.SetLevel(level)

	// One-off commands run without the engine.
	if cfg.Command == "list" {
		if err := source.Initialize(); err != nil {
			return err
		}
		defer source.Terminate()
		return source.ListDevices()
	}

	src, cleanup, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	eng, err := engine.NewEngine(cfg, src)
	if err != nil {
		return err
	}

	if cfg.Transport.WebSocketEnabled {
		eng.AddTransport(transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr))
	}

	var publisher *udp.UDPPublisher
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		publisher, err = udp.NewUDPPublisher(cfg.UDPSendInterval(), sender, eng)
		if err != nil {
			sender.Close()
			return err
		}
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := src.Start(); err != nil {
		return err
	}

	if publisher != nil {
		publisher.Start()
	}

	applog.Infof("%s %s ready (block %d @ %.0f Hz)",
		build.GetFlags().Name, build.GetFlags().Version,
		cfg.Audio.BlockSize, cfg.Audio.SampleRate)

	runErr := eng.Run(ctx)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			applog.Errorf("Error stopping UDP publisher: %v", err)
		}
	}
	if err := eng.Close(); err != nil {
		applog.Errorf("Error closing engine: %v", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// openSource builds the configured audio source: live capture when
// requested, otherwise file playback. The returned cleanup tears down
// whatever global audio state the source needed.
func openSource(cfg *config.Config) (source.Source, func(), error) {
	if cfg.Audio.Capture {
		if err := source.Initialize(); err != nil {
			return nil, nil, err
		}
		src, err := source.NewCaptureSource(cfg.Audio.Device, cfg.Audio.Channels,
			cfg.Audio.BlockSize, cfg.Audio.SampleRate, cfg.Audio.LowLatency)
		if err != nil {
			source.Terminate()
			return nil, nil, err
		}
		return src, func() { source.Terminate() }, nil
	}

	if cfg.Audio.File == "" {
		return nil, nil, fmt.Errorf("no audio file given (pass a .wav/.flac path, or --capture for live input)")
	}

	src := source.NewFileSource(cfg.Audio.BlockSize, cfg.Audio.SampleRate)
	if err := src.Load(cfg.Audio.File); err != nil {
		return nil, nil, err
	}
	src.Play()
	return src, func() {}, nil
}
