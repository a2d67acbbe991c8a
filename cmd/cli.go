// SPDX-License-Identifier: MIT
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"rave/internal/config"
	"rave/pkg/build"
)

// ParseArgs builds the runtime configuration from the config file, the
// environment and command line flags, in increasing order of precedence.
func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetFlags()

	var configPath string
	var verbose bool

	// Flag values land here first; only flags the user actually set are
	// copied onto the loaded config, so file and env values survive.
	overrides := config.New()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name + " [file]",
		Short:         "Real-time audio-reactive feature analysis engine",
		Version:       buildInfo.Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				overrides.Audio.File = args[0]
			}
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio capture devices",
		Run: func(cmd *cobra.Command, args []string) {
			overrides.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML configuration file")

	// Audio source configuration
	rootCmd.PersistentFlags().IntVarP(&overrides.Audio.Device, "device", "d", config.MinDeviceID,
		"Capture device ID. Use 'list' command to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&overrides.Audio.Channels, "channels", "c", config.DefaultChannels,
		"Number of capture channels (1=mono, 2=stereo)")
	rootCmd.PersistentFlags().Float64VarP(&overrides.Audio.SampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.PersistentFlags().IntVarP(&overrides.Audio.BlockSize, "block-size", "b", config.DefaultBlockSize,
		"Samples per analysis block (power of 2, affects latency)")
	rootCmd.PersistentFlags().BoolVarP(&overrides.Audio.LowLatency, "low-latency", "l", false,
		"Use low latency capture settings")
	rootCmd.PersistentFlags().BoolVar(&overrides.Audio.Capture, "capture", false,
		"Analyze live capture input instead of playing a file")
	rootCmd.PersistentFlags().BoolVar(&overrides.Audio.Loop, "loop", false,
		"Restart file playback when the track ends")

	// Renderer transports
	rootCmd.PersistentFlags().BoolVar(&overrides.Transport.WebSocketEnabled, "ws", false,
		"Serve feature frames to browser renderers over WebSocket")
	rootCmd.PersistentFlags().StringVar(&overrides.Transport.WebSocketAddr, "ws-addr", ":8080",
		"WebSocket listen address")
	rootCmd.PersistentFlags().BoolVar(&overrides.Transport.UDPEnabled, "udp", false,
		"Stream binary feature packets to a native renderer over UDP")
	rootCmd.PersistentFlags().StringVar(&overrides.Transport.UDPTargetAddress, "udp-target", "127.0.0.1:9090",
		"UDP target address")

	// Debug configuration
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	applyFlagOverrides(cfg, overrides, rootCmd, verbose)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlagOverrides copies explicitly-set flags onto the loaded config.
func applyFlagOverrides(cfg, overrides *config.Config, rootCmd *cobra.Command, verbose bool) {
	flags := rootCmd.PersistentFlags()

	cfg.Command = overrides.Command
	cfg.Audio.File = overrides.Audio.File

	if flags.Changed("device") {
		cfg.Audio.Device = overrides.Audio.Device
	}
	if flags.Changed("channels") {
		cfg.Audio.Channels = overrides.Audio.Channels
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = overrides.Audio.SampleRate
	}
	if flags.Changed("block-size") {
		cfg.Audio.BlockSize = overrides.Audio.BlockSize
	}
	if flags.Changed("low-latency") {
		cfg.Audio.LowLatency = overrides.Audio.LowLatency
	}
	if flags.Changed("capture") {
		cfg.Audio.Capture = overrides.Audio.Capture
	}
	if flags.Changed("loop") {
		cfg.Audio.Loop = overrides.Audio.Loop
	}
	if flags.Changed("ws") {
		cfg.Transport.WebSocketEnabled = overrides.Transport.WebSocketEnabled
	}
	if flags.Changed("ws-addr") {
		cfg.Transport.WebSocketAddr = overrides.Transport.WebSocketAddr
	}
	if flags.Changed("udp") {
		cfg.Transport.UDPEnabled = overrides.Transport.UDPEnabled
	}
	if flags.Changed("udp-target") {
		cfg.Transport.UDPTargetAddress = overrides.Transport.UDPTargetAddress
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
}
