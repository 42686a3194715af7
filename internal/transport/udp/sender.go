// SPDX-License-Identifier: MIT
// Package udp sends telemetry datagrams to a Teleplot listener.
package udp

import (
	"net"
	"sync/atomic"

	applog "ledmeter/internal/log"
	"ledmeter/internal/transport"

	"github.com/pkg/errors"
)

// DefaultTeleplotAddress is where the Teleplot extension listens.
const DefaultTeleplotAddress = "127.0.0.1:47269"

var errClosed = errors.New("UDP sender is closed")

// UDPSender writes each payload as one datagram. Teleplot accepts a
// ">name:value" line per packet, so metrics are never batched.
type UDPSender struct {
	conn   *net.UDPConn
	closed atomic.Bool
}

// NewUDPSender dials target ("host:port"). UDP is connectionless, so this
// only fails on a bad address.
func NewUDPSender(target string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve Teleplot address %q", target)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", addr)
	}

	applog.Infof("UDP: sending telemetry to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn}, nil
}

// Send accepts a transport.Metric, a preformatted string or raw bytes.
func (s *UDPSender) Send(data any) error {
	if s.closed.Load() {
		return errClosed
	}

	var payload []byte
	switch d := data.(type) {
	case transport.Metric:
		payload = []byte(d.Teleplot())
	case string:
		payload = []byte(d)
	case []byte:
		payload = d
	default:
		return errors.Errorf("unsupported UDP payload %T", data)
	}

	_, err := s.conn.Write(payload)
	return errors.Wrap(err, "failed to send UDP packet")
}

func (s *UDPSender) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return errors.Wrap(s.conn.Close(), "failed to close UDP connection")
}

var _ transport.Transport = (*UDPSender)(nil)
