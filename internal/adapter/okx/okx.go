// Package okx implements the OKX spot venue adapter (spec.md §4.4, §6).
// Grounded on original_source/ccxw/okx.py: the two real upstream
// connections (/public for books, trades and tickers; /business for
// candles), each driven by a text "ping"/"pong" keepalive, fanned into
// one local relay exactly as __start_ws_client_public/_bussiness feed
// the Python's local websocket_server, and the order-book delta merge
// shared with Binance and Bybit via internal/bookutil. seqId is recorded
// but not checked for monotonicity, and no resync is triggered.
package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ccxgo/ccxgo/internal/adapter"
	"github.com/ccxgo/ccxgo/internal/domain"
	"github.com/ccxgo/ccxgo/internal/relay"
	"github.com/ccxgo/ccxgo/internal/restclient"
	"github.com/ccxgo/ccxgo/internal/streamstate"
)

const (
	upstreamWSURLLive = "wss://ws.okx.com:8443/ws/v5"
	upstreamWSURLTest = "wss://wspap.okx.com:8443/ws/v5"
	apiURLLive        = "https://www.okx.com"

	// MaxStreamsLimit is OKX's per-connection channel ceiling.
	MaxStreamsLimit = 480

	pingIntervalS = 25
	pongTimeoutS  = 30
)

func init() {
	adapter.Register(domain.ExchangeOKX, New)
}

type bookState struct {
	mu          sync.Mutex
	seqID       int64
	bids        []domain.Level
	asks        []domain.Level
	initialized bool
}

// Adapter is the OKX venue plugin. Like Bingx, consumers connect to a
// local loopback relay: Start dials the real /public and /business
// upstreams itself and republishes their frames into the relay so the
// facade's transport sees one uniform stream.
type Adapter struct {
	testmode bool
	logger   zerolog.Logger
	rest     *restclient.Client

	dataMaxLen   int
	resultMaxLen int

	apiURLOverride string

	relay     *relay.Relay
	relayOnce sync.Once
	relayURL  string

	streamsMu sync.Mutex
	streams   []domain.StreamDescriptor

	catalogMu sync.Mutex
	catalog   *domain.ExchangeInfo

	booksMu sync.Mutex
	books   map[string]*bookState

	klinesMu sync.Mutex
	klines   map[string]*streamstate.KlineSeries

	tradesMu sync.Mutex
	trades   map[string]*streamstate.TradeFIFO

	tickersMu sync.Mutex
	tickers   map[string]domain.Ticker

	cancel context.CancelFunc
}

// New constructs an OKX adapter.
func New(testmode bool, debug bool) (adapter.Adapter, error) {
	return &Adapter{
		testmode:     testmode,
		logger:       log.With().Str("venue", string(domain.ExchangeOKX)).Logger(),
		rest:         restclient.New(restclient.Config{Venue: domain.ExchangeOKX, RatePerSec: 15, Burst: 20}),
		dataMaxLen:   2500,
		resultMaxLen: 5,
		relay:        relay.New(log.With().Str("venue", string(domain.ExchangeOKX)).Str("component", "relay").Logger()),
		books:        make(map[string]*bookState),
		klines:       make(map[string]*streamstate.KlineSeries),
		trades:       make(map[string]*streamstate.TradeFIFO),
		tickers:      make(map[string]domain.Ticker),
	}, nil
}

func (a *Adapter) SetDataMaxLen(n int) {
	if n > 0 {
		a.dataMaxLen = n
	}
}

func (a *Adapter) SetResultMaxLen(n int) {
	if n > 0 {
		a.resultMaxLen = n
	}
}

func (a *Adapter) Name() domain.Exchange { return domain.ExchangeOKX }

func (a *Adapter) APIURL() string {
	if a.apiURLOverride != "" {
		return a.apiURLOverride
	}
	return apiURLLive
}

func (a *Adapter) upstreamWSURL() string {
	if a.testmode {
		return upstreamWSURLTest
	}
	return upstreamWSURLLive
}

// WebsocketURL lazily starts the local relay and returns its address;
// the real /public and /business connections are opened internally by
// Start, not by the facade's transport, per get_websocket_url.
func (a *Adapter) WebsocketURL() string {
	a.relayOnce.Do(func() {
		addr, err := a.relay.Start()
		if err != nil {
			a.logger.Error().Err(err).Msg("okx relay failed to start")
			return
		}
		a.relayURL = addr
	})
	return a.relayURL
}

// MaxStreams is OKX's per-connection channel ceiling (__exchange_limit_streams).
func (a *Adapter) MaxStreams() int { return MaxStreamsLimit }

func (a *Adapter) ValidateStreams(streams []domain.StreamDescriptor) error {
	for _, d := range streams {
		if d.Endpoint == domain.EndpointKline {
			if _, err := venueInterval(d.Interval); err != nil {
				return domain.NewConfigError(fmt.Sprintf("okx: %v", err), nil)
			}
		}
	}
	return nil
}

func (a *Adapter) StreamKey(d domain.StreamDescriptor) string { return domain.StreamKey(d) }

// venueInterval maps a canonical interval to OKX's candle channel
// suffix. The original's __get_interval_from_unified_interval appends
// "utc" to every non-minute interval indiscriminately (and its final
// 'mo' branch is unreachable, since the "1mo" minutes-branch check
// above it always matches first) which would mint "candle1Hutc" for
// "1h" and leave "1mo" un-suffixed; this follows OKX's real channel
// names instead.
func venueInterval(canonical string) (string, error) {
	switch canonical {
	case "1m", "3m", "5m", "15m", "30m":
		return canonical, nil
	case "1h":
		return "1H", nil
	case "2h":
		return "2H", nil
	case "4h":
		return "4H", nil
	case "6h":
		return "6Hutc", nil
	case "8h":
		return "8Hutc", nil
	case "12h":
		return "12Hutc", nil
	case "1d":
		return "1Dutc", nil
	case "3d":
		return "3Dutc", nil
	case "1w":
		return "1Wutc", nil
	case "1mo":
		return "1Mutc", nil
	default:
		return "", fmt.Errorf("unsupported canonical interval %q", canonical)
	}
}

// canonicalizeInterval is venueInterval's inverse, grounded on
// get_unified_interval_from_interval.
func canonicalizeInterval(venue string) (string, error) {
	trimmed := strings.TrimSuffix(venue, "utc")
	switch {
	case strings.HasSuffix(trimmed, "m") && !strings.HasSuffix(trimmed, "M"):
		return trimmed, nil
	case strings.HasSuffix(trimmed, "H"):
		return strings.ToLower(trimmed), nil
	case strings.HasSuffix(trimmed, "D"):
		return strings.ToLower(trimmed), nil
	case strings.HasSuffix(trimmed, "W"):
		return strings.ToLower(trimmed), nil
	case strings.HasSuffix(trimmed, "M"):
		return strings.ToLower(strings.TrimSuffix(trimmed, "M")) + "mo", nil
	default:
		return "", fmt.Errorf("okx: unsupported venue interval %q", venue)
	}
}

func (a *Adapter) VenueInterval(canonical string) (string, error) {
	return venueInterval(canonical)
}

func (a *Adapter) CanonicalizeInterval(venue string) (string, error) {
	return canonicalizeInterval(venue)
}

func (a *Adapter) VenueSymbol(canonicalSymbol string) (string, error) {
	if !strings.Contains(canonicalSymbol, "/") {
		return "", fmt.Errorf("okx: %q is not a canonical BASE/QUOTE symbol", canonicalSymbol)
	}
	return strings.ToUpper(strings.ReplaceAll(canonicalSymbol, "/", "-")), nil
}

func (a *Adapter) CanonicalizeSymbol(venueSymbol string) (string, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(venueSymbol, "-", "/"))
	a.catalogMu.Lock()
	catalog := a.catalog
	a.catalogMu.Unlock()
	if catalog != nil {
		for _, s := range catalog.Symbols {
			if s.Symbol == normalized {
				return s.Symbol, nil
			}
		}
	}
	return normalized, nil
}

// Start launches the two upstream feeders (SubscriptionFrames already
// captured the requested streams), mirroring __start_ws_clients.
func (a *Adapter) Start(ctx context.Context) error {
	a.WebsocketURL()
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.streamsMu.Lock()
	streams := append([]domain.StreamDescriptor(nil), a.streams...)
	a.streamsMu.Unlock()

	publicArgs, businessArgs := channelArgs(streams)

	if len(publicArgs) > 0 {
		go a.runUpstream(runCtx, "/public", publicArgs)
	}
	if len(businessArgs) > 0 {
		go a.runUpstream(runCtx, "/business", businessArgs)
	}
	return nil
}

func (a *Adapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	return a.relay.Stop(context.Background())
}

func (a *Adapter) ResetTransientState() {
	a.booksMu.Lock()
	a.books = make(map[string]*bookState)
	a.booksMu.Unlock()

	a.klinesMu.Lock()
	a.klines = make(map[string]*streamstate.KlineSeries)
	a.klinesMu.Unlock()
}

type channelArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type opFrame struct {
	Op   string       `json:"op"`
	Args []channelArg `json:"args"`
}

// channelArgs splits the requested streams into the /public (books,
// trades, tickers) and /business (candle*) subscribe argument lists,
// grounded on get_websocket_endpoint_path.
func channelArgs(streams []domain.StreamDescriptor) (public, business []channelArg) {
	for _, d := range streams {
		instID := strings.ToUpper(strings.ReplaceAll(d.Symbol, "/", "-"))
		switch d.Endpoint {
		case domain.EndpointOrderBook:
			public = append(public, channelArg{Channel: "books", InstID: instID})
		case domain.EndpointTrades:
			public = append(public, channelArg{Channel: "trades", InstID: instID})
		case domain.EndpointTicker:
			public = append(public, channelArg{Channel: "tickers", InstID: instID})
		case domain.EndpointKline:
			vi, err := venueInterval(d.Interval)
			if err != nil {
				continue
			}
			business = append(business, channelArg{Channel: "candle" + vi, InstID: instID})
		}
	}
	return public, business
}

// runUpstream dials one of OKX's real public/business websockets and
// subscribes to its channel args. OKX expects the client to ping (see
// __start_ping_thread): pingLoop sends "ping" every pingIntervalS, and a
// "pong" reply is dropped rather than forwarded into the relay.
func (a *Adapter) runUpstream(ctx context.Context, path string, args []channelArg) {
	url := a.upstreamWSURL() + path
	if a.testmode {
		url += "?brokerId=9999"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		a.logger.Error().Err(err).Str("path", path).Msg("okx upstream dial failed")
		return
	}
	defer conn.Close()

	sub, _ := json.Marshal(opFrame{Op: "subscribe", Args: args})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go a.pingLoop(ctx, conn)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(string(data)), "pong") {
			continue
		}
		a.relay.Publish(data)
	}
}

// pingLoop sends the text "ping" keepalive every pingIntervalS seconds,
// grounded on __start_ping_thread. Pong replies are not timed: no
// pong-staleness check runs here (pongTimeoutS is unused), and the
// facade's transport, which only connects to the local relay, has no
// keepalive for OKX either.
func (a *Adapter) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingIntervalS * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}
