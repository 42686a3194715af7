// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"time"

	"ledmeter/internal/calibrate"
	"ledmeter/internal/config"
	applog "ledmeter/internal/log"
	"ledmeter/pkg/build"

	"github.com/spf13/cobra"
)

// Commands main knows how to execute.
const (
	CommandRun       = "run"
	CommandDevices   = "devices"
	CommandPorts     = "ports"
	CommandCalibrate = "calibrate"
)

// Invocation is the parsed command line: which command to run and the
// configuration it runs with. Command is empty when cobra handled the
// request itself (help, version).
type Invocation struct {
	Command  string
	Config   *config.Config
	TUI      bool          // devices: interactive picker
	Duration time.Duration // calibrate: measurement time
}

type flagValues struct {
	configPath string
	debug      bool
	logLevel   string
	source     string
	display    string
	device     int
	serialPort string
	file       string
	loop       bool
	brightness int
	record     bool
	output     string
}

// ParseArgs parses args (without the program name), loads the config file
// and applies flag overrides on top of it.
func ParseArgs(args []string) (*Invocation, error) {
	buildInfo := build.GetBuildFlags()
	inv := &Invocation{}
	var flags flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
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
			cfg, err := config.LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, &flags, cfg); err != nil {
				return err
			}
			inv.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandRun
			return nil
		},
	}
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandDevices
			return nil
		},
	}
	devicesCmd.Flags().BoolVarP(&inv.TUI, "tui", "t", false,
		"Browse devices interactively and print the chosen source settings")

	portsCmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandPorts
			return nil
		},
	}

	calibrateCmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Measure the room and print level thresholds as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inv.Duration <= 0 {
				return fmt.Errorf("--duration must be positive, got %s", inv.Duration)
			}
			inv.Command = CommandCalibrate
			return nil
		},
	}
	calibrateCmd.Flags().DurationVar(&inv.Duration, "duration", calibrate.DefaultDuration,
		"How long to measure")

	rootCmd.AddCommand(devicesCmd, portsCmd, calibrateCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "",
		"Config file (default ./"+config.DefaultConfigFile+" if present)")
	pf.BoolVar(&flags.debug, "debug", false,
		"Log at debug level and emit telemetry")
	pf.StringVar(&flags.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn, error")

	// Source
	pf.StringVarP(&flags.source, "source", "s", config.DefaultSourceType,
		"Sample source: portaudio, serial, wav")
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"PortAudio input device ID, -1 for the system default. See 'devices'.")
	pf.StringVarP(&flags.serialPort, "serial-port", "p", "",
		"Serial port of the microcontroller. See 'ports'.")
	pf.StringVarP(&flags.file, "file", "f", "",
		"WAV file to replay with the wav source")
	pf.BoolVar(&flags.loop, "loop", false,
		"Loop the WAV file")

	// Display
	pf.StringVar(&flags.display, "display", config.DefaultDisplayType,
		"LED output: spi, terminal, none")
	pf.IntVarP(&flags.brightness, "brightness", "B", config.DefaultBrightness,
		"LED brightness in percent (1-100)")

	// Recording
	pf.BoolVarP(&flags.record, "record", "r", false,
		"Record admitted samples to a WAV file")
	pf.StringVarP(&flags.output, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return inv, nil
}

// applyFlags overrides cfg with every flag given on the command line and
// validates the result again.
func applyFlags(cmd *cobra.Command, f *flagValues, cfg *config.Config) error {
	changed := cmd.Flags().Changed

	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("debug") {
		cfg.Debug = f.debug
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	if changed("source") {
		cfg.Source.Type = f.source
	}
	if changed("device") {
		cfg.Source.InputDevice = f.device
	}
	if changed("serial-port") {
		cfg.Source.SerialPort = f.serialPort
		if !changed("source") {
			cfg.Source.Type = config.SourceSerial
		}
	}
	if changed("file") {
		cfg.Source.File = f.file
		if !changed("source") {
			cfg.Source.Type = config.SourceWAV
		}
	}
	if changed("loop") {
		cfg.Source.Loop = f.loop
	}

	if changed("display") {
		cfg.Display.Type = f.display
	}
	if changed("brightness") {
		cfg.Meter.Brightness = f.brightness
	}

	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("output") {
		cfg.Recording.Output = f.output
	}
	cfg.NameRecording(time.Now())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := applog.ParseLevel(cfg.LogLevel)
	applog.SetLevel(level)
	return nil
}
