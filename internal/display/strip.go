// SPDX-License-Identifier: MIT
// Package display renders meter frames on a WS2812 strip, in the terminal,
// or nowhere.
package display

import (
	"fmt"
	"io"

	"ledmeter/internal/config"
	applog "ledmeter/internal/log"
	"ledmeter/internal/meter"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"
)

// Display is a meter.Display that owns a device.
type Display interface {
	meter.Display
	io.Closer
}

// Open builds the display named by cfg for numLEDs LEDs. The terminal
// display writes to out.
func Open(cfg config.DisplayConfig, numLEDs int, out io.Writer) (Display, error) {
	switch cfg.Type {
	case config.DisplaySPI:
		return OpenStrip(cfg.SPIPort, numLEDs, cfg.SPIFreqKHz)
	case config.DisplayTerminal:
		return NewTerminal(out), nil
	case config.DisplayNone:
		return &None{}, nil
	}
	return nil, fmt.Errorf("unknown display type %q", cfg.Type)
}

// Strip drives WS2812 LEDs through the NRZ encoder on an SPI port.
// Brightness is applied here as a percent scale of every channel.
type Strip struct {
	dev        *nrzled.Dev
	port       io.Closer
	numLEDs    int
	brightness uint8
	raw        []byte
}

// OpenStrip initializes the host drivers and opens portName ("" picks the
// first SPI port).
func OpenStrip(portName string, numLEDs, freqKHz int) (*Strip, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize host drivers")
	}
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open SPI port %q", portName)
	}
	s, err := NewStrip(port, port, numLEDs, freqKHz)
	if err != nil {
		port.Close()
		return nil, err
	}
	applog.Infof("Display: %d LEDs on %s at %d kHz", numLEDs, port, freqKHz)
	return s, nil
}

// NewStrip wraps an already opened port. closer may be nil.
func NewStrip(port spi.Port, closer io.Closer, numLEDs, freqKHz int) (*Strip, error) {
	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: numLEDs,
		Channels:  3,
		Freq:      physic.Frequency(freqKHz) * physic.KiloHertz,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create nrzled device")
	}
	return &Strip{
		dev:        dev,
		port:       closer,
		numLEDs:    numLEDs,
		brightness: 100,
		raw:        make([]byte, numLEDs*3),
	}, nil
}

func (s *Strip) SetBrightness(percent uint8) error {
	if percent > 100 {
		return fmt.Errorf("brightness %d%% out of range", percent)
	}
	s.brightness = percent
	return nil
}

func (s *Strip) Show(frame meter.Frame) error {
	if len(frame) != s.numLEDs {
		return fmt.Errorf("frame has %d LEDs, strip has %d", len(frame), s.numLEDs)
	}
	for i, c := range frame {
		c = c.Scale(s.brightness)
		s.raw[3*i] = c.R
		s.raw[3*i+1] = c.G
		s.raw[3*i+2] = c.B
	}
	if _, err := s.dev.Write(s.raw); err != nil {
		return errors.Wrap(err, "failed to write LEDs")
	}
	return nil
}

// Close turns the strip off and releases the port.
func (s *Strip) Close() error {
	err := s.dev.Halt()
	if err != nil {
		err = errors.Wrap(err, "failed to halt strip")
	}
	if s.port != nil {
		if cerr := s.port.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to close SPI port")
		}
	}
	return err
}

func (s *Strip) String() string {
	return s.dev.String()
}

// None discards frames. It is used for headless calibration and tests.
type None struct {
	Shown int
}

func (n *None) SetBrightness(uint8) error { return nil }

func (n *None) Show(meter.Frame) error {
	n.Shown++
	return nil
}

func (n *None) Close() error { return nil }
