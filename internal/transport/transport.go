// SPDX-License-Identifier: MIT
// Package transport carries meter telemetry to debug sinks: the console,
// Teleplot over UDP and browsers over WebSocket.
package transport

import (
	"strconv"
	"strings"
	"time"
)

// Transport sends telemetry values. Implementations must be safe for
// concurrent use and must not block the caller for long.
type Transport interface {
	Send(data any) error
	Close() error
}

// Metric is one named value at one instant.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Time  int64   `json:"t"` // Unix milliseconds
}

func NewMetric(name string, value float64, at time.Time) Metric {
	return Metric{Name: name, Value: value, Time: at.UnixMilli()}
}

// Teleplot formats the metric as a Teleplot line, e.g. ">rms:374.5".
func (m Metric) Teleplot() string {
	return ">" + m.Name + ":" + formatValue(m.Value)
}

// formatValue prints at most two decimals and drops trailing zeros.
func formatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		s = "0"
	}
	return s
}
