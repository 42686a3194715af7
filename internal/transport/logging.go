// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"io"
	"sync"

	applog "ledmeter/internal/log"
)

// LoggingTransport prints metrics as Teleplot lines, one per Send.
type LoggingTransport struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLoggingTransport(w io.Writer) *LoggingTransport {
	applog.Debugf("Transport: using console telemetry")
	return &LoggingTransport{w: w}
}

// Send writes Metric values as ">name:value". Anything else is printed
// with %v.
func (lt *LoggingTransport) Send(data any) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	var err error
	switch m := data.(type) {
	case Metric:
		_, err = fmt.Fprintln(lt.w, m.Teleplot())
	default:
		_, err = fmt.Fprintf(lt.w, "%v\n", data)
	}
	return err
}

func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
