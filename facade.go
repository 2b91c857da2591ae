// Package ccxgo is the public entry point: a facade parameterized by an
// exchange identifier, a list of stream descriptors and bounded-length
// policies, owning exactly one venue adapter and one snapshot store
// (spec.md §2, §4.1). Grounded on the teacher's
// src/infrastructure/data/facade.go DataFacadeImpl (mutex-guarded state,
// context.Context-based lifecycle, a Health-style accessor), generalized
// from one hardcoded multi-exchange hot-set to a single registered
// adapter plus functional-options configuration.
package ccxgo

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ccxgo/ccxgo/internal/adapter"
	_ "github.com/ccxgo/ccxgo/internal/adapter/binance"
	_ "github.com/ccxgo/ccxgo/internal/adapter/binanceus"
	_ "github.com/ccxgo/ccxgo/internal/adapter/bingx"
	"github.com/ccxgo/ccxgo/internal/adapter/bybit"
	"github.com/ccxgo/ccxgo/internal/adapter/kucoin"
	_ "github.com/ccxgo/ccxgo/internal/adapter/okx"
	"github.com/ccxgo/ccxgo/internal/config"
	"github.com/ccxgo/ccxgo/internal/domain"
	"github.com/ccxgo/ccxgo/internal/metrics"
	"github.com/ccxgo/ccxgo/internal/store"
	"github.com/ccxgo/ccxgo/internal/transport"
)

// Option configures a Facade at construction. Unset options fall back to
// spec.md §4.1's defaults.
type Option func(*config.Input)

// WithTradingType overrides the default "SPOT" trading type. Only "SPOT"
// is currently supported; any other value fails New with a ConfigError.
func WithTradingType(t string) Option {
	return func(in *config.Input) { in.TradingType = t }
}

// WithTestmode routes the adapter at its sandbox endpoint where one exists.
func WithTestmode(testmode bool) Option {
	return func(in *config.Input) { in.Testmode = testmode }
}

// WithResultMaxLen bounds how many levels/bars/trades a query returns.
func WithResultMaxLen(n int) Option {
	return func(in *config.Input) { in.ResultMaxLen = n }
}

// WithDataMaxLen bounds how many bars/trades are retained per stream,
// clamped to the venue's ceiling.
func WithDataMaxLen(n int) Option {
	return func(in *config.Input) { in.DataMaxLen = n }
}

// WithDebug enables verbose adapter logging.
func WithDebug(debug bool) Option {
	return func(in *config.Input) { in.Debug = debug }
}

// Facade is the public entry point: one venue adapter, one snapshot
// store, one background connection worker per upstream.
type Facade struct {
	params  config.Params
	adapter adapter.Adapter
	store   *store.Store
	metrics *metrics.Registry
	logger  zerolog.Logger

	startTime time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopped  bool
	lastSeen map[string]time.Time
}

// New validates the configuration and constructs (but does not start) a
// Facade. Every failure is returned as a *domain.ConfigError; New never
// panics (spec.md §4.1).
func New(exchange domain.Exchange, streams []domain.StreamDescriptor, opts ...Option) (*Facade, error) {
	in := config.Input{Exchange: exchange, Streams: streams}
	for _, opt := range opts {
		opt(&in)
	}

	params, err := config.Validate(in)
	if err != nil {
		return nil, err
	}

	a, err := adapter.New(params.Exchange, params.Testmode, params.Debug)
	if err != nil {
		return nil, domain.NewConfigError("adapter construction failed", err)
	}

	for _, d := range params.Streams {
		if err := a.ValidateStreams([]domain.StreamDescriptor{d}); err != nil {
			return nil, domain.NewConfigError("stream descriptor rejected by adapter", err)
		}
	}

	setDataMaxLen(a, params.DataMaxLen)
	setResultMaxLen(a, params.ResultMaxLen)

	logger := log.With().Str("venue", string(params.Exchange)).Logger()
	if params.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	f := &Facade{
		params:   params,
		adapter:  a,
		store:    store.New(),
		metrics:  metrics.NewRegistry(),
		logger:   logger,
		lastSeen: make(map[string]time.Time),
	}
	return f, nil
}

// dataMaxLenSetter and resultMaxLenSetter are implemented by every venue
// adapter (unexported SetDataMaxLen/SetResultMaxLen) but are not part of
// the Adapter interface, since only the facade ever needs to call them.
type dataMaxLenSetter interface{ SetDataMaxLen(int) }
type resultMaxLenSetter interface{ SetResultMaxLen(int) }

func setDataMaxLen(a adapter.Adapter, n int) {
	if s, ok := a.(dataMaxLenSetter); ok {
		s.SetDataMaxLen(n)
	}
}

func setResultMaxLen(a adapter.Adapter, n int) {
	if s, ok := a.(resultMaxLenSetter); ok {
		s.SetResultMaxLen(n)
	}
}

// Start declares every stream key, launches the adapter's auxiliary
// goroutines and the upstream transport connection, then returns without
// blocking (spec.md §4.1). Calling Start twice is a no-op.
func (f *Facade) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return nil
	}
	f.started = true
	f.startTime = time.Now()

	for _, d := range f.params.Streams {
		f.store.Declare(f.adapter.StreamKey(d))
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel

	// SubscriptionFrames must run before Start: relay-backed adapters
	// (Bingx, OKX) read the streams it records to know what to dial
	// upstream for.
	plan, err := f.adapter.SubscriptionFrames(f.params.Streams)
	if err != nil {
		cancel()
		return domain.NewConfigError("failed to build subscription plan", err)
	}

	if err := f.adapter.Start(ctx); err != nil {
		cancel()
		return domain.NewConfigError("adapter failed to start", err)
	}

	conn := transport.New(transport.Options{
		Venue:       string(f.params.Exchange),
		URL:         f.adapter.WebsocketURL() + plan.URLSuffix,
		OnOpen:      toTransportFrames(plan.OnOpen),
		OnClose:     toTransportFrames(plan.OnClose),
		Keepalive:   f.buildKeepalive(plan),
		HandshakeTO: 10 * time.Second,
		Metrics:     f.metrics,
		Logger:      f.logger,
		OnReconnect: f.adapter.ResetTransientState,
	}, f.handleFrame)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		conn.Run(ctx)
	}()

	return nil
}

// buildKeepalive translates the adapter's SubscriptionPlan ping fields
// into a transport.Keepalive. Relay-fed venues (Bingx, OKX) return a
// zero-value plan here — their own Start(ctx) already pings the real
// upstream directly, and the transport's connection to the local relay
// is loopback and needs no keepalive of its own.
func (f *Facade) buildKeepalive(plan adapter.SubscriptionPlan) transport.Keepalive {
	if plan.PingInterval <= 0 {
		return transport.Keepalive{}
	}
	var build func() []byte
	var isPong func(frame []byte) bool
	switch f.params.Exchange {
	case domain.ExchangeBybit:
		build = bybit.PingFrame
		isPong = func(frame []byte) bool { return bytes.Contains(frame, []byte(`"ret_msg":"pong"`)) }
	case domain.ExchangeKucoin:
		build = kucoin.PingFrame
		isPong = func(frame []byte) bool { return bytes.Contains(frame, []byte(`"type":"pong"`)) }
	}
	return transport.Keepalive{
		Interval: time.Duration(plan.PingInterval) * time.Second,
		Build:    build,
		IsPong:   isPong,
		Timeout:  time.Duration(plan.PingTimeout) * time.Second,
	}
}

func toTransportFrames(frames []adapter.Frame) []transport.Frame {
	out := make([]transport.Frame, 0, len(frames))
	for _, fr := range frames {
		out = append(out, transport.Frame{Payload: fr.Payload, Spacing: 140 * time.Millisecond})
	}
	return out
}

// handleFrame decodes one inbound frame and, if it normalized to a
// canonical record, writes it to the store under its resolved stream key.
func (f *Facade) handleFrame(raw []byte) {
	rec, err := f.adapter.Decode(raw)
	if err != nil {
		f.metrics.DecodeErrors.WithLabelValues(string(f.params.Exchange), "unknown").Inc()
		f.logger.Warn().Err(err).Msg("frame decode failed")
		return
	}
	if rec == nil {
		return
	}
	desc := domain.DescriptorOf(rec)
	key := f.adapter.StreamKey(desc)
	f.store.Set(key, rec)

	f.mu.Lock()
	f.lastSeen[key] = time.Now()
	f.mu.Unlock()
}

// Stop cancels the shared context (the transport sends its unsubscribe
// frames and closes the connection as it unwinds), stops the adapter,
// and waits up to grace (45s when grace <= 0) for background workers to
// join. Past grace it logs and returns a *domain.ShutdownTimeout; it does
// not force-close connections, and workers still running keep unwinding
// after Stop returns. Idempotent (spec.md §4.1).
func (f *Facade) Stop(grace time.Duration) error {
	f.mu.Lock()
	if f.stopped || !f.started {
		f.stopped = true
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = f.adapter.Stop()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	if grace <= 0 {
		grace = 45 * time.Second
	}
	select {
	case <-done:
		return nil
	case <-time.After(grace):
		f.logger.Warn().Dur("grace", grace).Msg("shutdown grace period elapsed, workers may still be unwinding")
		return &domain.ShutdownTimeout{Worker: string(f.params.Exchange), After: grace.String()}
	}
}

// GetCurrentData returns the last canonical record for the resolved
// stream key, or (nil, false) if the stream was never declared. Constant
// time; never blocks the decode path (spec.md §4.1).
func (f *Facade) GetCurrentData(endpoint domain.Endpoint, symbol, interval string) (domain.Record, bool) {
	key := f.adapter.StreamKey(domain.StreamDescriptor{Endpoint: endpoint, Symbol: symbol, Interval: interval})
	return f.store.Get(key)
}

// GetExchangeInfo is a REST catalog pass-through with a 7200s TTL cache.
func (f *Facade) GetExchangeInfo(ctx context.Context) (*domain.ExchangeInfo, error) {
	return f.adapter.ExchangeInfo(ctx, false)
}

// GetExchangeFullListSymbols is a REST catalog pass-through with a 7200s
// TTL cache, returning canonical "BASE/QUOTE" symbols.
func (f *Facade) GetExchangeFullListSymbols(ctx context.Context, sorted bool) ([]string, error) {
	return f.adapter.FullSymbolList(ctx, sorted)
}

// staleBound returns the endpoint-specific staleness bound a stream's
// last-observed-event timestamp is measured against (spec.md §4.1).
func staleBound(endpoint domain.Endpoint, interval string) time.Duration {
	switch endpoint {
	case domain.EndpointOrderBook:
		return 5 * 60 * time.Second
	case domain.EndpointKline:
		return 5 * intervalDuration(interval)
	default:
		return 9 * 5 * 60 * time.Second
	}
}

func intervalDuration(canonical string) time.Duration {
	n, unit := splitInterval(canonical)
	switch unit {
	case "m":
		return time.Duration(n) * time.Minute
	case "h":
		return time.Duration(n) * time.Hour
	case "d":
		return time.Duration(n) * 24 * time.Hour
	case "w":
		return time.Duration(n) * 7 * 24 * time.Hour
	case "mo":
		return time.Duration(n) * 30 * 24 * time.Hour
	default:
		return time.Minute
	}
}

func splitInterval(canonical string) (int, string) {
	if canonical == "" {
		return 1, "m"
	}
	i := len(canonical)
	for i > 0 && (canonical[i-1] < '0' || canonical[i-1] > '9') {
		i--
	}
	numPart, unitPart := canonical[:i], canonical[i:]
	n := 0
	for _, c := range numPart {
		if c < '0' || c > '9' {
			return 1, unitPart
		}
		n = n*10 + int(c-'0')
	}
	if n == 0 {
		n = 1
	}
	return n, unitPart
}

// IsConnectionsOk reports whether every subscribed stream has seen an
// event within its staleness bound. During warm-up (before a stream's
// first record) start_time is used in place of a last-event timestamp
// (spec.md §4.1).
func (f *Facade) IsConnectionsOk() bool {
	f.mu.Lock()
	start := f.startTime
	now := time.Now()
	for _, d := range f.params.Streams {
		key := f.adapter.StreamKey(d)
		last, seen := f.lastSeen[key]
		if !seen {
			last = start
		}
		if now.Sub(last) > staleBound(d.Endpoint, d.Interval) {
			f.mu.Unlock()
			f.metrics.StreamStale.WithLabelValues(string(f.params.Exchange), key).Set(1)
			return false
		}
		f.metrics.StreamStale.WithLabelValues(string(f.params.Exchange), key).Set(0)
	}
	f.mu.Unlock()
	return true
}
