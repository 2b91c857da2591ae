// Package transport is the generic WebSocket driver shared by every
// venue: it dials, sends the on-open frame list, reads frames into the
// adapter's decode path, answers protocol-level keepalives, and
// auto-reconnects with backoff (spec.md §4.5). Grounded on
// internal/providers/kraken/websocket.go's WebSocketClient, generalized
// from one venue's hardcoded 30s ping to a pluggable Keepalive struct
// and from a bare close channel to context.Context cancellation.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ccxgo/ccxgo/internal/metrics"
)

// Keepalive encapsulates one venue's application-level ping dialect.
// Binance/Binance-US rely purely on the transport-level ping/pong that
// gorilla/websocket already answers, so they pass a zero-value Keepalive.
type Keepalive struct {
	// Interval between application-level pings. Zero disables.
	Interval time.Duration
	// Build returns the payload to send as a ping.
	Build func() []byte
	// IsPong reports whether an inbound frame is this venue's pong and,
	// if so, whether the transport should suppress forwarding it to Decode.
	IsPong func(frame []byte) bool
	// Timeout: no pong within this long triggers a reconnect.
	Timeout time.Duration
}

// Frame is one control-plane message to send on open/close, with the
// minimum inter-frame spacing the venue's rate limit requires.
type Frame struct {
	Payload []byte
	Spacing time.Duration
}

// Handler receives every inbound application frame (after gzip inflation
// and keepalive suppression) for decoding.
type Handler func(frame []byte)

// Options configures one Conn.
type Options struct {
	Venue       string
	URL         string
	OnOpen      []Frame
	OnClose     []Frame
	Keepalive   Keepalive
	Inflate     func([]byte) ([]byte, error) // nil for venues without compressed frames
	HandshakeTO time.Duration
	Backoff     BackoffPolicy
	Metrics     *metrics.Registry
	Logger      zerolog.Logger
	OnReconnect func() // adapter.ResetTransientState, invoked on every reconnect
}

// BackoffPolicy controls reconnect delay growth.
type BackoffPolicy struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

func (b BackoffPolicy) next(cur time.Duration) time.Duration {
	if b.Initial <= 0 {
		b.Initial = 500 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 30 * time.Second
	}
	if b.Factor <= 1 {
		b.Factor = 2
	}
	if cur <= 0 {
		return b.Initial
	}
	next := time.Duration(float64(cur) * b.Factor)
	if next > b.Max {
		next = b.Max
	}
	return next
}

// Conn manages one upstream WebSocket connection: dial, frame pump, ping
// loop, and reconnect-with-backoff.
type Conn struct {
	opts    Options
	handler Handler

	mu       sync.RWMutex
	conn     *websocket.Conn
	lastPong time.Time

	connID string
}

// New creates a connection driver. Call Run to start it; Run blocks until
// ctx is cancelled.
func New(opts Options, handler Handler) *Conn {
	return &Conn{opts: opts, handler: handler, connID: uuid.NewString()}
}

// Run dials, pumps frames and reconnects until ctx is cancelled.
func (c *Conn) Run(ctx context.Context) {
	backoff := time.Duration(0)
	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.connectAndPump(ctx); err != nil {
			c.opts.Logger.Warn().Str("conn_id", c.connID).Err(err).Msg("websocket connection ended, reconnecting")
			if c.opts.Metrics != nil {
				c.opts.Metrics.WSReconnects.WithLabelValues(c.opts.Venue).Inc()
			}
		}

		if c.opts.OnReconnect != nil {
			c.opts.OnReconnect()
		}

		if ctx.Err() != nil {
			return
		}

		backoff = c.opts.Backoff.next(backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (c *Conn) connectAndPump(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTO}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	conn, _, err := dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.lastPong = time.Now()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	if c.opts.Metrics != nil {
		c.opts.Metrics.WSConnections.WithLabelValues(c.opts.Venue).Inc()
	}

	if err := c.sendFrames(c.opts.OnOpen); err != nil {
		return fmt.Errorf("on-open frames: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- c.readLoop() }()

	var pingTicker *time.Ticker
	var pingCh <-chan time.Time
	if c.opts.Keepalive.Interval > 0 {
		pingTicker = time.NewTicker(c.opts.Keepalive.Interval)
		defer pingTicker.Stop()
		pingCh = pingTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			c.sendCloseFrames()
			return nil
		case err := <-errCh:
			return err
		case <-pingCh:
			if err := c.sendKeepalivePing(); err != nil {
				return fmt.Errorf("keepalive ping: %w", err)
			}
			if c.opts.Keepalive.Timeout > 0 {
				c.mu.RLock()
				stale := time.Since(c.lastPong) > c.opts.Keepalive.Timeout
				c.mu.RUnlock()
				if stale {
					return fmt.Errorf("keepalive pong timeout after %s", c.opts.Keepalive.Timeout)
				}
			}
		}
	}
}

func (c *Conn) readLoop() error {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return fmt.Errorf("connection closed")
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if c.opts.Metrics != nil {
				c.opts.Metrics.WSReadErrors.WithLabelValues(c.opts.Venue).Inc()
			}
			return fmt.Errorf("read: %w", err)
		}

		if msgType == websocket.BinaryMessage && c.opts.Inflate != nil {
			data, err = c.opts.Inflate(data)
			if err != nil {
				c.opts.Logger.Warn().Str("conn_id", c.connID).Err(err).Msg("failed to inflate binary frame")
				continue
			}
		}

		if c.opts.Keepalive.IsPong != nil && c.opts.Keepalive.IsPong(data) {
			c.mu.Lock()
			c.lastPong = time.Now()
			c.mu.Unlock()
			continue
		}

		c.handler(data)
	}
}

func (c *Conn) sendKeepalivePing() error {
	if c.opts.Keepalive.Build == nil {
		return nil
	}
	return c.writeText(c.opts.Keepalive.Build())
}

func (c *Conn) sendFrames(frames []Frame) error {
	for i, f := range frames {
		if err := c.writeText(f.Payload); err != nil {
			return err
		}
		spacing := f.Spacing
		if spacing <= 0 {
			spacing = 140 * time.Millisecond
		}
		if i < len(frames)-1 {
			time.Sleep(spacing)
		}
	}
	return nil
}

func (c *Conn) sendCloseFrames() {
	for _, f := range c.opts.OnClose {
		_ = c.writeText(f.Payload)
		time.Sleep(140 * time.Millisecond)
	}
}

func (c *Conn) writeText(payload []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
