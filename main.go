// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledmeter/cmd"
	"ledmeter/internal/calibrate"
	"ledmeter/internal/config"
	"ledmeter/internal/display"
	applog "ledmeter/internal/log"
	"ledmeter/internal/meter"
	"ledmeter/internal/record"
	"ledmeter/internal/source"
	"ledmeter/internal/transport"
	"ledmeter/internal/transport/udp"
	"ledmeter/internal/tui"
	"ledmeter/pkg/build"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// main runs in three phases:
//
// 1. Startup: build info, command line and config, one-off commands.
// 2. Metering: source, display and telemetry are opened and the meter loop
//    runs until SIGINT/SIGTERM or a fatal device error.
// 3. Shutdown: the strip is blanked, the recording finalized and every
//    device closed.
func main() {
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v", err)
	}

	inv, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if inv.Command == "" {
		return // help or version
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch inv.Command {
	case cmd.CommandDevices:
		err = listDevices(inv.TUI)
	case cmd.CommandPorts:
		err = listPorts()
	case cmd.CommandCalibrate:
		err = runCalibration(ctx, inv)
	default:
		err = runMeter(ctx, inv.Config)
	}
	if err != nil {
		stop()
		applog.Fatalf("%v", err)
	}
}

// openedSource is a meter source plus whatever keeps it alive.
type openedSource struct {
	meter.Source
	run   func(ctx context.Context) error // nil when the source needs no goroutine
	close func() error
}

func openSource(cfg *config.Config) (*openedSource, error) {
	switch cfg.Source.Type {
	case config.SourcePortAudio:
		if err := source.Initialize(); err != nil {
			return nil, err
		}
		pa, err := source.NewPortAudio(cfg.Source, cfg.Meter.SampleRateHz)
		if err == nil {
			err = pa.Start()
		}
		if err != nil {
			source.Terminate()
			return nil, err
		}
		return &openedSource{
			Source: pa,
			close: func() error {
				return errors.Join(pa.Close(), source.Terminate())
			},
		}, nil

	case config.SourceSerial:
		s, err := source.OpenSerial(cfg.Source.SerialPort, cfg.Source.BaudRate)
		if err != nil {
			return nil, err
		}
		return &openedSource{Source: s, run: s.Run, close: s.Close}, nil

	case config.SourceWAV:
		w, err := source.OpenWAV(cfg.Source.File, cfg.Source.Loop)
		if err != nil {
			return nil, err
		}
		if w.SampleRate() != cfg.Meter.SampleRateHz {
			applog.Warnf("Source: %s was recorded at %d Hz, meter samples at %d Hz",
				cfg.Source.File, w.SampleRate(), cfg.Meter.SampleRateHz)
		}
		return &openedSource{Source: w, close: w.Close}, nil
	}
	return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
}

// openTelemetry returns nil unless debug is on and at least one sink is set.
func openTelemetry(cfg *config.Config, console io.Writer) (*transport.Telemetry, error) {
	if !cfg.Debug {
		return nil, nil
	}
	tel := transport.NewTelemetry()
	if cfg.Telemetry.Console {
		tel.Add(transport.NewLoggingTransport(console))
	}
	if addr := cfg.Telemetry.TeleplotAddress; addr != "" {
		s, err := udp.NewUDPSender(addr)
		if err != nil {
			tel.Close()
			return nil, err
		}
		tel.Add(s)
	}
	if addr := cfg.Telemetry.WebSocketAddress; addr != "" {
		ws, err := transport.NewWebSocketTransport(addr)
		if err != nil {
			tel.Close()
			return nil, err
		}
		tel.Add(ws)
	}
	if tel.Len() == 0 {
		return nil, nil
	}
	return tel, nil
}

func runMeter(ctx context.Context, cfg *config.Config) error {
	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.close(); cerr != nil {
			applog.Warnf("Source: %v", cerr)
		}
	}()

	var rec *record.Recorder
	var input meter.Source = src
	if cfg.Recording.Enabled {
		rec = record.NewRecorder(cfg.Meter.SampleRateHz)
		if err := rec.Start(cfg.Recording.Output); err != nil {
			return err
		}
		input = record.Tee(src, rec)
	}

	disp, err := display.Open(cfg.Display, cfg.NumLEDs(), os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := disp.Close(); cerr != nil {
			applog.Warnf("Display: %v", cerr)
		}
	}()

	console := io.Writer(os.Stdout)
	if cfg.Display.Type == config.DisplayTerminal {
		console = os.Stderr
	}
	tel, err := openTelemetry(cfg, console)
	if err != nil {
		return err
	}

	opts, err := cfg.MeterOptions()
	if err != nil {
		return err
	}
	if tel != nil {
		opts.Telemetry = tel
		defer tel.Close()
	}

	m, err := meter.New(input, disp, opts)
	if err != nil {
		return err
	}
	if err := m.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if src.run != nil {
		g.Go(func() error { return src.run(gctx) })
	}
	g.Go(func() error { return m.Run(gctx) })
	runErr := g.Wait()

	// Shutdown
	if err := m.Blank(); err != nil {
		applog.Warnf("Display: failed to blank: %v", err)
	}
	if rec != nil {
		if err := rec.Stop(); err != nil {
			applog.Errorf("Recorder: %v", err)
		} else {
			applog.Infof("Recording saved to: %s", cfg.Recording.Output)
		}
	}

	stats := m.Stats()
	applog.Infof("Meter: %d samples, %d refreshes, %d pushes, last RMS %.1f",
		stats.Samples, stats.Refreshes, stats.Pushes, stats.LastRMS)
	return runErr
}

func runCalibration(ctx context.Context, inv *cmd.Invocation) error {
	cfg := inv.Config
	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer src.close()

	g, gctx := errgroup.WithContext(ctx)
	srcCtx, stopSource := context.WithCancel(gctx)
	if src.run != nil {
		g.Go(func() error { return src.run(srcCtx) })
	}

	var res *calibrate.Result
	g.Go(func() error {
		defer stopSource()
		var err error
		res, err = calibrate.Run(gctx, src, calibrate.Options{
			SampleWindowMs: cfg.Meter.SampleWindowMs,
			SampleRateHz:   cfg.Meter.SampleRateHz,
			UpdateInterval: cfg.UpdateInterval(),
			Duration:       inv.Duration,
			Levels:         cfg.NumLEDs(),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	applog.Infof("Calibrate: %d RMS values over %s, min %.1f, mean %.1f, stddev %.1f, max %.1f",
		len(res.RMS), res.Duration.Round(time.Millisecond), res.Min, res.Mean, res.StdDev, res.Max)
	if res.PeakHz > 0 {
		applog.Infof("Calibrate: dominant frequency %.1f Hz", res.PeakHz)
	}

	colors := make([]string, len(cfg.Meter.Levels))
	for i, l := range cfg.Meter.Levels {
		colors[i] = l.Color
	}
	out, err := res.YAML(colors)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func listDevices(interactive bool) error {
	if !interactive {
		return source.ListDevices(os.Stdout)
	}

	sel, err := tui.RunDevicePicker(source.InputDevices)
	if err != nil || sel == nil {
		return err
	}

	doc := struct {
		Source struct {
			Type        string  `yaml:"type"`
			InputDevice int     `yaml:"input_device"`
			CaptureRate float64 `yaml:"capture_rate"`
		} `yaml:"source"`
	}{}
	doc.Source.Type = config.SourcePortAudio
	doc.Source.InputDevice = sel.DeviceID
	doc.Source.CaptureRate = sel.CaptureRate

	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", sel.DeviceName, out)
	return nil
}

func listPorts() error {
	ports, err := source.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}
