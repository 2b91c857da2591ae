// Package relay implements the in-process loopback WebSocket fan-in used
// by adapters whose venue splits one logical stream set across multiple
// upstream connections (OKX's /public + /business) or serves some
// streams only via REST polling (Bingx trades/ticker). A single local
// relay lets the adapter's decode path consume one uniform connection
// regardless of how many upstream sources feed it (spec.md §4.6).
//
// Grounded on the teacher's gorilla/mux routing style in
// internal/interfaces/http and gorilla/websocket usage in
// internal/providers/kraken/websocket.go, recombined into a server
// instead of a client.
package relay

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Relay is a loopback WebSocket server with a single upgrade endpoint.
// Upstream feeders call Publish to fan data in; local consumers connect
// to Addr() and receive every published frame.
type Relay struct {
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	listener  net.Listener
	server    *http.Server
	clients   map[*websocket.Conn]chan []byte
	closed    bool
	closeOnce sync.Once
}

// New creates a relay. It binds no port and serves nothing until Start
// is called.
func New(logger zerolog.Logger) *Relay {
	return &Relay{
		logger:   logger,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]chan []byte),
	}
}

// Start binds a random local port and begins serving. It returns the
// address local consumers should dial.
func (r *Relay) Start() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}

	router := mux.NewRouter()
	router.HandleFunc("/relay", r.handleUpgrade)

	r.mu.Lock()
	r.listener = ln
	r.server = &http.Server{Handler: router}
	r.mu.Unlock()

	go func() {
		if err := r.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			r.logger.Warn().Err(err).Msg("relay server stopped")
		}
	}()

	return "ws://" + ln.Addr().String() + "/relay", nil
}

func (r *Relay) handleUpgrade(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		http.Error(w, "relay is shutting down", http.StatusServiceUnavailable)
		return
	}
	r.mu.Unlock()

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn().Err(err).Msg("relay upgrade failed")
		return
	}

	out := make(chan []byte, 256)
	r.mu.Lock()
	r.clients[conn] = out
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.clients, conn)
		r.mu.Unlock()
		_ = conn.Close()
	}()

	// drain any inbound frames (consumers never send anything meaningful)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for frame := range out {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

// Publish fans one upstream frame out to every connected local consumer.
// When a slow consumer's buffer is full, the frame is dropped for that
// consumer and its connection is closed; the publisher is never blocked.
func (r *Relay) Publish(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for conn, ch := range r.clients {
		select {
		case ch <- frame:
		default:
			r.logger.Warn().Msg("relay consumer backlog full, dropping frame")
			_ = conn.Close()
		}
	}
}

// Stop marks the relay closed (so handleUpgrade refuses any new
// connection), closes every existing client channel, then shuts the HTTP
// server down, closing the listener, within ctx's deadline capped at 5s.
func (r *Relay) Stop(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		for _, ch := range r.clients {
			close(ch)
		}
		r.clients = make(map[*websocket.Conn]chan []byte)
		server := r.server
		r.mu.Unlock()

		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			err = server.Shutdown(shutdownCtx)
		}
	})
	return err
}
