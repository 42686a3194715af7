// SPDX-License-Identifier: MIT
package source

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	applog "ledmeter/internal/log"
	"ledmeter/internal/meter"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
)

// Serial reads one decimal ADC reading per line from a microcontroller,
// e.g. "512\r\n". The newest reading is what ReadSample returns.
type Serial struct {
	name   string
	port   io.ReadCloser
	once   sync.Once
	latest atomic.Int32
	lines  atomic.Uint64
	bad    atomic.Uint64
}

// OpenSerial opens the named port at baud.
func OpenSerial(name string, baud int) (*Serial, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", name)
	}
	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to reset read timeout")
	}
	return newSerial(name, port), nil
}

func newSerial(name string, port io.ReadCloser) *Serial {
	return &Serial{name: name, port: port}
}

// Run reads lines until ctx is cancelled or the port fails. Cancellation
// closes the port to unblock the reader and returns nil.
func (s *Serial) Run(ctx context.Context) error {
	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		<-ctx.Done()
		applog.Debugf("Source: closing serial port %s", s.name)
		if err := s.Close(); err != nil {
			return errors.Wrap(err, "failed to close serial port")
		}
		return nil
	})
	errg.Go(func() error {
		err := s.readLines(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = io.EOF
		}
		return errors.Wrapf(err, "serial port %s", s.name)
	})
	return errg.Wait()
}

func (s *Serial) readLines(ctx context.Context) error {
	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		v, ok := ParseReading(scanner.Text())
		if !ok {
			if s.bad.Add(1) == 1 {
				applog.Warnf("Source: ignoring malformed serial line %q", scanner.Text())
			}
			continue
		}
		s.latest.Store(int32(v))
		s.lines.Add(1)
	}
	return scanner.Err()
}

func (s *Serial) ReadSample() meter.Sample {
	return meter.Sample(s.latest.Load())
}

// Lines is the number of readings received so far.
func (s *Serial) Lines() uint64 {
	return s.lines.Load()
}

// Close closes the port once; later calls return nil.
func (s *Serial) Close() error {
	var err error
	s.once.Do(func() { err = s.port.Close() })
	return err
}

// ParseReading parses a line such as "512" or ">mic:512". Values outside
// the sample range are clamped.
func ParseReading(line string) (meter.Sample, bool) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, ">") {
		if i := strings.LastIndexByte(line, ':'); i >= 0 {
			line = line[i+1:]
		}
	}
	if line == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return 0, false
	}
	return clampSample(v), true
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list serial ports")
	}
	return ports, nil
}
