// SPDX-License-Identifier: MIT
package cmd

import (
	"fftpassthrough/internal/build"
	"fftpassthrough/internal/config"
	"fftpassthrough/internal/render"

	"github.com/spf13/cobra"
)

// Commands selected by ParseArgs.
const (
	CommandLive    = "live"
	CommandList    = "list"
	CommandRender  = "render"
	CommandVersion = "version"
)

// Options holds what the command line asked for beyond the configuration.
type Options struct {
	Command    string // empty when only help or --version was shown
	ConfigPath string

	// live
	TUI    bool
	Record bool

	// list
	Interactive bool

	// render
	Input      string
	Output     string
	Compensate bool
	BlockSize  int
	BitDepth   int
}

// audioFlags are copied over the loaded configuration when set explicitly.
type audioFlags struct {
	inputDevice     int
	outputDevice    int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	windowSize      int
	hopSize         int
	window          string
	logLevel        string
}

// ParseArgs parses args (without the program name), loads the configuration
// and applies flag overrides on top of it.
func ParseArgs(args []string) (*config.Config, *Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}
	flags := &audioFlags{}
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Real-time STFT overlap-add passthrough",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig(options.ConfigPath)
			if err != nil {
				return err
			}
			flags.apply(cmd, loaded)
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandLive
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Live mode
	rootCmd.Flags().BoolVarP(&options.TUI, "tui", "t", false,
		"Show the live meter instead of waiting for a signal")
	rootCmd.Flags().BoolVarP(&options.Record, "record", "r", false,
		"Record the processed output to recording.output_dir")

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	}
	listCmd.Flags().BoolVarP(&options.Interactive, "interactive", "i", false,
		"Browse devices and pick one")
	rootCmd.AddCommand(listCmd)

	// Render command
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Process a WAV file offline",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandRender
		},
	}
	renderCmd.Flags().StringVarP(&options.Input, "input", "i", "", "Input WAV file")
	renderCmd.Flags().StringVarP(&options.Output, "output", "o", "", "Output WAV file")
	renderCmd.Flags().BoolVar(&options.Compensate, "compensate", false,
		"Remove the processing latency so the output lines up with the input")
	renderCmd.Flags().IntVar(&options.BlockSize, "block-size", render.DefaultBlockSize,
		"Host block size used to feed the processor")
	renderCmd.Flags().IntVar(&options.BitDepth, "bit-depth", 0,
		"Output bit depth (16, 24 or 32), the input's when 0")
	_ = renderCmd.MarkFlagRequired("input")
	_ = renderCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(renderCmd)

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandVersion
		},
	})

	// Configuration
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&options.ConfigPath, "config", "c", "",
		"Configuration file (default "+config.DefaultConfigFile+" when present)")
	pf.StringVar(&flags.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn or error")

	// Audio Device Configuration
	pf.IntVarP(&flags.inputDevice, "input-device", "d", config.MinDeviceID,
		"Input device ID. Use 'list' command to see available devices.")
	pf.IntVar(&flags.outputDevice, "output-device", config.MinDeviceID,
		"Output device ID. Use 'list' command to see available devices.")
	pf.IntVar(&flags.channels, "channels", config.DefaultChannels,
		"Channels on both sides of the stream (1=mono, 2=stereo)")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects device latency only)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", false,
		"Request the devices' low latency settings")

	// Frame geometry
	pf.IntVar(&flags.windowSize, "window-size", 0, "STFT window size W (power of 2)")
	pf.IntVar(&flags.hopSize, "hop-size", 0, "STFT hop size, in (0, W]")
	pf.StringVar(&flags.window, "window", "", "Analysis window: rect, hann, hamming, blackman, ...")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, nil, err
	}

	return cfg, options, nil
}

// apply copies explicitly set flags over cfg.
func (f *audioFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed

	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set("input-device") {
		cfg.Audio.InputDevice = f.inputDevice
	}
	if set("output-device") {
		cfg.Audio.OutputDevice = f.outputDevice
	}
	if set("channels") {
		cfg.Audio.InputChannels = f.channels
		cfg.Audio.OutputChannels = f.channels
	}
	if set("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if set("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if set("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if set("window-size") {
		cfg.STFT.WindowSize = f.windowSize
	}
	if set("hop-size") {
		cfg.STFT.HopSize = f.hopSize
	}
	if set("window") {
		cfg.STFT.Window = f.window
	}
}
