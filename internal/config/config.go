// SPDX-License-Identifier: MIT
package config

// Core configuration constants that define the boundaries and defaults
// for the meter, its sample source and its display.
const (
	// Meter pipeline
	DefaultSampleWindowMs   = 50   // Window covered by the sample ring
	DefaultSampleRateHz     = 1000 // Samples admitted per second
	DefaultUpdateIntervalMs = 200  // Display refresh cadence
	DefaultBrightness       = 30   // Percent of full LED brightness

	// Sample source
	DefaultSourceType      = SourcePortAudio
	DefaultDeviceID        = MinDeviceID // System default input device
	DefaultCaptureRate     = 44100       // PortAudio stream rate (Hz)
	DefaultFramesPerBuffer = 256         // PortAudio frames per callback
	DefaultLowLatency      = false
	DefaultBias            = 0    // ADC reading at silence
	DefaultSpan            = 1023 // ADC counts for a full-scale input
	DefaultBaudRate        = 115200

	// Display
	DefaultDisplayType = DisplayTerminal
	DefaultSPIFreqKHz  = 2500 // WS2812 NRZ over SPI

	DefaultLogLevel   = "info"
	DefaultConfigFile = "ledmeter.yaml"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable capture rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported capture rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MaxMeterRateHz  = 10000  // Above this the gate period drops under 100us
)

// Source types.
const (
	SourcePortAudio = "portaudio"
	SourceSerial    = "serial"
	SourceWAV       = "wav"
)

// Display types.
const (
	DisplaySPI      = "spi"
	DisplayTerminal = "terminal"
	DisplayNone     = "none"
)

// Config is the full runtime configuration, loaded from YAML and
// overridden by environment and command line.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Emit telemetry and log at debug level.
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error.
	Meter     MeterConfig     `yaml:"meter"`
	Source    SourceConfig    `yaml:"source"`
	Display   DisplayConfig   `yaml:"display"`
	Recording RecordingConfig `yaml:"recording"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// MeterConfig sets the pipeline cadences and the level table.
type MeterConfig struct {
	SampleWindowMs   int           `yaml:"sample_window_ms"`
	SampleRateHz     int           `yaml:"sample_rate_hz"`
	UpdateIntervalMs int           `yaml:"update_interval_ms"`
	Brightness       int           `yaml:"brightness"` // 1-100
	Levels           []LevelConfig `yaml:"levels"`     // One per LED, ascending thresholds.
}

// LevelConfig is one LED: the RMS it must exceed and its color (name or #rrggbb).
type LevelConfig struct {
	Threshold float64 `yaml:"threshold"`
	Color     string  `yaml:"color"`
}

// SourceConfig selects and tunes the sample source.
type SourceConfig struct {
	Type string `yaml:"type"` // portaudio, serial, wav

	// portaudio
	InputDevice     int     `yaml:"input_device"`
	CaptureRate     float64 `yaml:"capture_rate"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	LowLatency      bool    `yaml:"low_latency"`
	Bias            int     `yaml:"bias"` // Added to every converted reading.
	Span            int     `yaml:"span"` // Counts for a full-scale input.

	// serial
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`

	// wav
	File string `yaml:"file"`
	Loop bool   `yaml:"loop"`
}

// DisplayConfig selects the LED output.
type DisplayConfig struct {
	Type       string `yaml:"type"`     // spi, terminal, none
	SPIPort    string `yaml:"spi_port"` // Empty picks the first SPI port.
	SPIFreqKHz int    `yaml:"spi_freq_khz"`
}

// RecordingConfig writes every admitted sample to a WAV file.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"`
}

// TelemetryConfig lists the sinks that receive debug metrics. Sinks are
// only opened when Debug is set.
type TelemetryConfig struct {
	Console          bool   `yaml:"console"`           // Print ">name:value" lines to stdout.
	TeleplotAddress  string `yaml:"teleplot_address"`  // UDP host:port of a Teleplot listener.
	WebSocketAddress string `yaml:"websocket_address"` // Listen address for browser clients.
}

// DefaultLevelConfigs is the eight-LED table for a 10-bit ADC microphone module.
func DefaultLevelConfigs() []LevelConfig {
	return []LevelConfig{
		{350, "green"},
		{360, "greenyellow"},
		{365, "yellow"},
		{370, "gold"},
		{380, "orange"},
		{390, "orangered"},
		{400, "red"},
		{410, "darkred"},
	}
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Meter: MeterConfig{
			SampleWindowMs:   DefaultSampleWindowMs,
			SampleRateHz:     DefaultSampleRateHz,
			UpdateIntervalMs: DefaultUpdateIntervalMs,
			Brightness:       DefaultBrightness,
			Levels:           DefaultLevelConfigs(),
		},
		Source: SourceConfig{
			Type:            DefaultSourceType,
			InputDevice:     DefaultDeviceID,
			CaptureRate:     DefaultCaptureRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			Bias:            DefaultBias,
			Span:            DefaultSpan,
			BaudRate:        DefaultBaudRate,
		},
		Display: DisplayConfig{
			Type:       DefaultDisplayType,
			SPIFreqKHz: DefaultSPIFreqKHz,
		},
		Telemetry: TelemetryConfig{
			Console: true,
		},
	}
}
