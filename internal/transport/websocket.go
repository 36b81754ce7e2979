// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	applog "spectro/internal/log"
	"spectro/internal/spectral"
)

// WebSocketSink broadcasts frames to every connected client with rate
// limiting, so a slow consumer or a dense hop schedule cannot flood the
// network. Frames over the rate limit are skipped, not queued.
type WebSocketSink struct {
	stream   string
	upgrader websocket.Upgrader
	server   *http.Server

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool

	sendMu      sync.Mutex
	lastSend    time.Time
	minInterval time.Duration
}

// NewWebSocketSink starts an HTTP server on addr (e.g. ":8080") that
// upgrades connections on /frames and returns the broadcasting sink.
// minInterval throttles broadcasts; zero disables the throttle.
func NewWebSocketSink(addr, stream string, minInterval time.Duration) *WebSocketSink {
	s := &WebSocketSink{
		stream:  stream,
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		minInterval: minInterval,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/frames", s.handleWebSocket)
	s.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		applog.Infof("transport: websocket sink listening on %s", addr)
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			applog.Errorf("transport: websocket server: %v", err)
		}
	}()

	return s
}

// Handler exposes the upgrade endpoint without the built-in server,
// for embedding in an existing mux.
func (s *WebSocketSink) Handler() http.HandlerFunc { return s.handleWebSocket }

func (s *WebSocketSink) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("transport: websocket upgrade: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	n := len(s.clients)
	s.clientsMu.Unlock()
	applog.Debugf("transport: client connected (%d active)", n)

	// Reads only to observe the close; clients never send frames.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.clientsMu.Lock()
				delete(s.clients, conn)
				s.clientsMu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// Send broadcasts one frame to all clients, dropping it silently when
// inside the rate-limit window. Failed clients are evicted.
func (s *WebSocketSink) Send(f *spectral.Frame) error {
	s.sendMu.Lock()
	now := time.Now()
	if s.minInterval > 0 && now.Sub(s.lastSend) < s.minInterval {
		s.sendMu.Unlock()
		return nil
	}
	s.lastSend = now
	s.sendMu.Unlock()

	data, err := json.Marshal(payloadFor(s.stream, f))
	if err != nil {
		return err
	}

	s.clientsMu.Lock()
	for client := range s.clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			client.Close()
			delete(s.clients, client)
		}
	}
	s.clientsMu.Unlock()
	return nil
}

// Close drops all clients and shuts the server down. Idempotent.
func (s *WebSocketSink) Close() error {
	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
	s.clientsMu.Unlock()
	return s.server.Close()
}
