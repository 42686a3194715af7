// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	applog "ledmeter/internal/log"
	"ledmeter/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from the YAML file at path. If path is
// empty, it looks for DefaultConfigFile in the working directory and falls
// back to built-in defaults when there is none. Environment overrides are
// applied after the file, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

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
		applog.Debugf("configuration: loaded %s", path)
	}

	cfg.applyEnvOverrides()
	cfg.NameRecording(time.Now())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks ranges and cross-field requirements. It also parses the
// level table so bad colors or unsorted thresholds fail at startup.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	m := c.Meter
	if m.SampleRateHz <= 0 || m.SampleRateHz > MaxMeterRateHz {
		return fmt.Errorf("meter.sample_rate_hz %d out of range (1-%d)", m.SampleRateHz, MaxMeterRateHz)
	}
	if m.SampleWindowMs <= 0 {
		return fmt.Errorf("meter.sample_window_ms must be positive, got %d", m.SampleWindowMs)
	}
	if c.BufferSize() <= 0 {
		return fmt.Errorf("meter: %d ms at %d Hz holds no samples", m.SampleWindowMs, m.SampleRateHz)
	}
	if m.UpdateIntervalMs <= 0 {
		return fmt.Errorf("meter.update_interval_ms must be positive, got %d", m.UpdateIntervalMs)
	}
	if m.Brightness < 1 || m.Brightness > 100 {
		return fmt.Errorf("meter.brightness %d out of range (1-100)", m.Brightness)
	}
	if _, err := c.LevelTable(); err != nil {
		return err
	}

	s := c.Source
	switch s.Type {
	case SourcePortAudio:
		if s.CaptureRate < MinSampleRate || s.CaptureRate > MaxSampleRate {
			return fmt.Errorf("source.capture_rate %.0f out of range (%d-%d)", s.CaptureRate, MinSampleRate, MaxSampleRate)
		}
		if !bitint.IsPowerOfTwo(s.FramesPerBuffer) || s.FramesPerBuffer > MaxBufferFrames {
			return fmt.Errorf("source.frames_per_buffer %d must be a power of two up to %d", s.FramesPerBuffer, MaxBufferFrames)
		}
		if s.InputDevice < MinDeviceID {
			return fmt.Errorf("source.input_device %d is invalid", s.InputDevice)
		}
		if s.Span <= 0 {
			return fmt.Errorf("source.span must be positive, got %d", s.Span)
		}
	case SourceSerial:
		if s.SerialPort == "" {
			return fmt.Errorf("source.serial_port must be set for the serial source")
		}
		if s.BaudRate <= 0 {
			return fmt.Errorf("source.baud_rate must be positive, got %d", s.BaudRate)
		}
	case SourceWAV:
		if s.File == "" {
			return fmt.Errorf("source.file must be set for the wav source")
		}
	default:
		return fmt.Errorf("source.type %q is not one of %s, %s, %s", s.Type, SourcePortAudio, SourceSerial, SourceWAV)
	}

	switch c.Display.Type {
	case DisplaySPI:
		if c.Display.SPIFreqKHz <= 0 {
			return fmt.Errorf("display.spi_freq_khz must be positive, got %d", c.Display.SPIFreqKHz)
		}
	case DisplayTerminal, DisplayNone:
	default:
		return fmt.Errorf("display.type %q is not one of %s, %s, %s", c.Display.Type, DisplaySPI, DisplayTerminal, DisplayNone)
	}

	if c.Recording.Enabled && c.Recording.Output == "" {
		return fmt.Errorf("recording.output must be set when recording is enabled")
	}

	return nil
}

// applyEnvOverrides lets ENV_* variables replace file and default values.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			applog.Debugf("configuration: overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Debugf("configuration: overriding log_level from env: %s", val)
	}

	// ENV_SOURCE, ENV_SERIAL_PORT
	if val, ok := os.LookupEnv("ENV_SOURCE"); ok {
		c.Source.Type = val
		applog.Debugf("configuration: overriding source.type from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_SERIAL_PORT"); ok {
		c.Source.SerialPort = val
		applog.Debugf("configuration: overriding source.serial_port from env: %s", val)
	}

	// ENV_DISPLAY
	if val, ok := os.LookupEnv("ENV_DISPLAY"); ok {
		c.Display.Type = val
		applog.Debugf("configuration: overriding display.type from env: %s", val)
	}

	// ENV_TELEPLOT_ADDRESS
	if val, ok := os.LookupEnv("ENV_TELEPLOT_ADDRESS"); ok {
		c.Telemetry.TeleplotAddress = val
		applog.Debugf("configuration: overriding telemetry.teleplot_address from env: %s", val)
	}
}
