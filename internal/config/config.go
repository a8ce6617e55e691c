// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"fftpassthrough/internal/stft"
)

// Limits and defaults for the live host and its side channels.
const (
	MinDeviceID     = -1     // -1 selects the system default device
	MinSampleRate   = 8000   // Hz
	MaxSampleRate   = 192000 // Hz
	MaxBufferFrames = 8192
	MaxChannels     = 2 // mono or stereo buses only

	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 512
	DefaultChannels        = 1
	DefaultLogLevel        = "info"
	DefaultRecordingDir    = "./recordings"
	DefaultBitDepth        = 16
	DefaultMonitorInterval = 33 * time.Millisecond // ~30Hz
	DefaultUDPAddress      = "127.0.0.1:9090"
	DefaultUDPInterval     = 16 * time.Millisecond
	DefaultWebSocketAddr   = ":8080"
	DefaultWebSocketPath   = "/ws"
	DefaultRedisAddr       = "127.0.0.1:6379"
	DefaultRedisChannel    = "fftpassthrough:monitor"

	// DefaultConfigFile is searched in the working directory when no path is given.
	DefaultConfigFile = "config.yaml"
	// DefaultEnvFile is loaded into the environment before overrides are applied.
	DefaultEnvFile = ".env"
)

// Config is the application configuration, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error
	Audio     AudioConfig     `yaml:"audio"`
	STFT      STFTConfig      `yaml:"stft"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds the live duplex stream settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index, -1 for default.
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index, -1 for default.
	SampleRate      float64 `yaml:"sample_rate"`       // Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Block size handed to the processor.
	LowLatency      bool    `yaml:"low_latency"`       // Request the devices' low latency settings.
	InputChannels   int     `yaml:"input_channels"`    // Channel 0 is processed.
	OutputChannels  int     `yaml:"output_channels"`   // Every output channel carries the processed signal.
}

// STFTConfig sets the frame geometry of the engine.
type STFTConfig struct {
	WindowSize int    `yaml:"window_size"`
	HopSize    int    `yaml:"hop_size"`
	Capacity   int    `yaml:"capacity"`
	Window     string `yaml:"window"` // rect, hann, hamming, blackman, ...
}

// RecordingConfig controls recording of the processed output.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	BitDepth  int    `yaml:"bit_depth"` // 16, 24 or 32.
}

// TransportConfig selects where monitoring data is sent.
type TransportConfig struct {
	MonitorInterval time.Duration   `yaml:"monitor_interval"` // Band energy publishing period.
	LogEnabled      bool            `yaml:"log_enabled"`      // Log band energies at debug level.
	UDP             UDPConfig       `yaml:"udp"`
	WebSocket       WebSocketConfig `yaml:"websocket"`
	Redis           RedisConfig     `yaml:"redis"`
}

// UDPConfig sends raw magnitude spectra as binary datagrams.
type UDPConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TargetAddress string        `yaml:"target_address"`
	SendInterval  time.Duration `yaml:"send_interval"`
}

// WebSocketConfig broadcasts band energies as JSON to browser clients.
type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// RedisConfig publishes band energies as JSON on a pub/sub channel.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// Default returns the built-in configuration: mono passthrough on the default
// devices with the default frame geometry and every side channel off.
func Default() *Config {
	geometry := stft.DefaultConfig()
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			OutputDevice:    MinDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			OutputChannels:  DefaultChannels,
		},
		STFT: STFTConfig{
			WindowSize: geometry.WindowSize,
			HopSize:    geometry.HopSize,
			Capacity:   geometry.Capacity,
			Window:     geometry.Window.String(),
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			MonitorInterval: DefaultMonitorInterval,
			UDP: UDPConfig{
				TargetAddress: DefaultUDPAddress,
				SendInterval:  DefaultUDPInterval,
			},
			WebSocket: WebSocketConfig{
				Addr: DefaultWebSocketAddr,
				Path: DefaultWebSocketPath,
			},
			Redis: RedisConfig{
				Addr:    DefaultRedisAddr,
				Channel: DefaultRedisChannel,
			},
		},
	}
}

// Geometry converts the stft section into an engine configuration.
func (c *Config) Geometry() (stft.Config, error) {
	window, err := stft.ParseWindowFunc(c.STFT.Window)
	if err != nil {
		return stft.Config{}, err
	}
	return stft.Config{
		WindowSize: c.STFT.WindowSize,
		HopSize:    c.STFT.HopSize,
		Capacity:   c.STFT.Capacity,
		Window:     window,
	}, nil
}
