// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"fftpassthrough/internal/log"
	"fftpassthrough/internal/transport/udp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from the YAML file at path. If path is empty,
// it looks for DefaultConfigFile and falls back to built-in defaults when that
// is missing. A DefaultEnvFile in the working directory is loaded into the
// environment first; ENV_* overrides are then applied and the result is
// validated.
func LoadConfig(path string) (*Config, error) {
	if err := LoadEnvFile(DefaultEnvFile); err != nil {
		return nil, err
	}

	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
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
		log.Debugf("Config: Loaded %s", path)
	}

	// Environment wins over the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left alone. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	log.Debugf("Config: Loaded environment from %s", path)
	return nil
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	a := c.Audio
	if a.InputDevice < MinDeviceID || a.OutputDevice < MinDeviceID {
		return fmt.Errorf("audio device ids must be >= %d, got input %d output %d", MinDeviceID, a.InputDevice, a.OutputDevice)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate must be in [%d, %d], got %g", MinSampleRate, MaxSampleRate, a.SampleRate)
	}
	if a.FramesPerBuffer < 1 || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer must be in [1, %d], got %d", MaxBufferFrames, a.FramesPerBuffer)
	}
	if a.InputChannels < 1 || a.InputChannels > MaxChannels {
		return fmt.Errorf("audio.input_channels must be 1 or 2, got %d", a.InputChannels)
	}
	if a.OutputChannels < 1 || a.OutputChannels > MaxChannels {
		return fmt.Errorf("audio.output_channels must be 1 or 2, got %d", a.OutputChannels)
	}

	geometry, err := c.Geometry()
	if err != nil {
		return fmt.Errorf("stft: %w", err)
	}
	if err := geometry.Validate(); err != nil {
		return fmt.Errorf("stft: %w", err)
	}

	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth)
		}
		if c.Recording.OutputDir == "" {
			return errors.New("recording.output_dir must be set when recording is enabled")
		}
	}

	t := c.Transport
	if (t.LogEnabled || t.WebSocket.Enabled || t.Redis.Enabled) && t.MonitorInterval <= 0 {
		return errors.New("transport.monitor_interval must be positive")
	}
	if t.UDP.Enabled {
		if err := validateHostPort("transport.udp.target_address", t.UDP.TargetAddress); err != nil {
			return err
		}
		if t.UDP.SendInterval <= 0 {
			return errors.New("transport.udp.send_interval must be positive when UDP is enabled")
		}
		// Bins 0..W/2 go out in one datagram.
		if bins := geometry.WindowSize/2 + 1; bins > udp.MaxBins {
			return fmt.Errorf("transport.udp: stft.window_size %d gives %d bins: %w", geometry.WindowSize, bins, udp.ErrTooManyBins)
		}
	}
	if t.WebSocket.Enabled {
		if err := validateHostPort("transport.websocket.addr", t.WebSocket.Addr); err != nil {
			return err
		}
	}
	if t.Redis.Enabled {
		if err := validateHostPort("transport.redis.addr", t.Redis.Addr); err != nil {
			return err
		}
		if t.Redis.Channel == "" {
			return errors.New("transport.redis.channel must be set when redis is enabled")
		}
	}
	return nil
}

func validateHostPort(field, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s %q is invalid: %w", field, addr, err)
	}
	return nil
}

// applyEnvOverrides replaces file or default values with ENV_* variables.
// Values that fail to parse are logged and ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_{...}
	// General and audio overrides.
	envString("ENV_LOG_LEVEL", &c.LogLevel)
	envInt("ENV_INPUT_DEVICE", &c.Audio.InputDevice)
	envInt("ENV_OUTPUT_DEVICE", &c.Audio.OutputDevice)
	envFloat("ENV_SAMPLE_RATE", &c.Audio.SampleRate)
	envInt("ENV_FRAMES_PER_BUFFER", &c.Audio.FramesPerBuffer)
	envBool("ENV_LOW_LATENCY", &c.Audio.LowLatency)

	// ENV_STFT_{...}
	envInt("ENV_STFT_WINDOW_SIZE", &c.STFT.WindowSize)
	envInt("ENV_STFT_HOP_SIZE", &c.STFT.HopSize)
	envString("ENV_STFT_WINDOW", &c.STFT.Window)

	// ENV_RECORDING_{...}
	envBool("ENV_RECORDING_ENABLED", &c.Recording.Enabled)
	envString("ENV_RECORDING_DIR", &c.Recording.OutputDir)

	// ENV_UDP_{...}, ENV_WS_{...}, ENV_REDIS_{...}
	// These are specific to the transport layer.
	envBool("ENV_UDP_ENABLED", &c.Transport.UDP.Enabled)
	envString("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDP.TargetAddress)
	envDuration("ENV_UDP_SEND_INTERVAL", &c.Transport.UDP.SendInterval)
	envBool("ENV_WS_ENABLED", &c.Transport.WebSocket.Enabled)
	envString("ENV_WS_ADDR", &c.Transport.WebSocket.Addr)
	envBool("ENV_REDIS_ENABLED", &c.Transport.Redis.Enabled)
	envString("ENV_REDIS_ADDR", &c.Transport.Redis.Addr)
	envSecret("ENV_REDIS_PASSWORD", &c.Transport.Redis.Password)
	envString("ENV_REDIS_CHANNEL", &c.Transport.Redis.Channel)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		log.Infof("Config: Overriding from %s: %s", key, val)
	}
}

func envSecret(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		log.Infof("Config: Overriding from %s", key)
	}
}

func envBool(key string, dst *bool) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			log.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = b
		log.Infof("Config: Overriding from %s: %v", key, b)
	}
}

func envInt(key string, dst *int) {
	if val, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			log.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = n
		log.Infof("Config: Overriding from %s: %d", key, n)
	}
}

func envFloat(key string, dst *float64) {
	if val, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = f
		log.Infof("Config: Overriding from %s: %g", key, f)
	}
}

func envDuration(key string, dst *time.Duration) {
	if val, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = d
		log.Infof("Config: Overriding from %s: %s", key, d)
	}
}
