// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	applog "ledmeter/internal/log"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	wsPath       = "/ws"
	wsWriteWait  = time.Second
	wsQueueDepth = 256
)

// WebSocketTransport serves metrics to browser dashboards on /ws. Every
// metric is broadcast as a JSON object; a client that connects late first
// receives the latest value of each metric name.
type WebSocketTransport struct {
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	// mu guards clients. It is never held across a network write, so a
	// stalled browser cannot hold up Send.
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	latestMu sync.Mutex
	latest   map[string]Metric

	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketTransport listens on addr and starts serving. Use ":0" for
// an ephemeral port.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}

	wst := &WebSocketTransport{
		listener: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  256,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
		latest:  make(map[string]Metric),
		queue:   make(chan []byte, wsQueueDepth),
		done:    make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, wst.handleWebSocket)
	wst.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		applog.Infof("WebSocket: serving telemetry on ws://%s%s", ln.Addr(), wsPath)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocket: server stopped: %v", err)
		}
	}()
	go wst.broadcast()
	return wst, nil
}

// Addr is the address the server is listening on.
func (wst *WebSocketTransport) Addr() net.Addr {
	return wst.listener.Addr()
}

// Clients is the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.mu.Lock()
	defer wst.mu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocket: upgrade failed: %v", err)
		return
	}

	// The connection is not shared until it is registered, so the
	// snapshot is written without holding mu.
	for _, m := range wst.snapshot() {
		if err := wst.write(conn, m); err != nil {
			conn.Close()
			return
		}
	}

	wst.mu.Lock()
	select {
	case <-wst.done:
		wst.mu.Unlock()
		conn.Close()
		return
	default:
	}
	wst.clients[conn] = struct{}{}
	n := len(wst.clients)
	wst.mu.Unlock()
	applog.Debugf("WebSocket: client %s connected, %d total", conn.RemoteAddr(), n)

	// Clients never send; the first read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wst.drop(conn)
	}()
}

// snapshot encodes the latest metrics in name order.
func (wst *WebSocketTransport) snapshot() [][]byte {
	wst.latestMu.Lock()
	defer wst.latestMu.Unlock()

	names := make([]string, 0, len(wst.latest))
	for name := range wst.latest {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([][]byte, 0, len(names))
	for _, name := range names {
		if b, err := json.Marshal(wst.latest[name]); err == nil {
			out = append(out, b)
		}
	}
	return out
}

func (wst *WebSocketTransport) write(conn *websocket.Conn, msg []byte) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.mu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	n := len(wst.clients)
	wst.mu.Unlock()
	conn.Close()
	if ok {
		applog.Debugf("WebSocket: client %s disconnected, %d total", conn.RemoteAddr(), n)
	}
}

func (wst *WebSocketTransport) broadcast() {
	for {
		var msg []byte
		select {
		case <-wst.done:
			return
		case msg = <-wst.queue:
		}

		wst.mu.Lock()
		conns := make([]*websocket.Conn, 0, len(wst.clients))
		for conn := range wst.clients {
			conns = append(conns, conn)
		}
		wst.mu.Unlock()

		for _, conn := range conns {
			if err := wst.write(conn, msg); err != nil {
				wst.drop(conn)
			}
		}
	}
}

// Send records a Metric as the latest value of its name and queues it for
// broadcast. Other values are broadcast as plain JSON. A full queue drops
// the value rather than block the meter.
func (wst *WebSocketTransport) Send(data any) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "failed to encode telemetry")
	}
	if m, ok := data.(Metric); ok {
		wst.latestMu.Lock()
		wst.latest[m.Name] = m
		wst.latestMu.Unlock()
	}

	select {
	case <-wst.done:
	case wst.queue <- msg:
	default:
	}
	return nil
}

func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wst.mu.Lock()
		close(wst.done)
		for conn := range wst.clients {
			conn.Close()
		}
		clear(wst.clients)
		wst.mu.Unlock()

		err = wst.server.Close()
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
