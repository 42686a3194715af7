// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"sync"
	"time"

	applog "ledmeter/internal/log"
)

// Telemetry fans meter metrics out to every transport. It implements
// meter.Telemetry. A transport error is logged once and otherwise
// ignored so telemetry can never stall the meter.
type Telemetry struct {
	mu         sync.Mutex
	transports []Transport
	failed     map[int]bool
	now        func() time.Time
}

func NewTelemetry(transports ...Transport) *Telemetry {
	return &Telemetry{
		transports: transports,
		failed:     make(map[int]bool),
		now:        time.Now,
	}
}

// Add registers another transport.
func (t *Telemetry) Add(tr Transport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transports = append(t.transports, tr)
}

// Len is the number of registered transports.
func (t *Telemetry) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.transports)
}

func (t *Telemetry) Metric(name string, value float64) {
	m := NewMetric(name, value, t.now())

	t.mu.Lock()
	defer t.mu.Unlock()
	for i, tr := range t.transports {
		if err := tr.Send(m); err != nil && !t.failed[i] {
			t.failed[i] = true
			applog.Warnf("Transport: %T failed, further errors suppressed: %v", tr, err)
		}
	}
}

// Close closes every transport and returns their errors joined.
func (t *Telemetry) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	for _, tr := range t.transports {
		if err := tr.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.transports = nil
	return errors.Join(errs...)
}
