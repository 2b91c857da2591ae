// Package bingx implements the Bingx spot venue adapter (spec.md §4.4,
// §6). Grounded on original_source/ccxw/bingx.py: gzip-compressed
// frames, the "Ping"/"Pong" and {"ping":...}/{"pong":...} keepalives, a
// top-of-book (non-delta) order book, and REST-polled trades/ticker fed
// into the same local stream as the websocket-delivered order book and
// klines via internal/relay, exactly as the Python original fans both
// sources into one local websocket server.
package bingx

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
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
	upstreamWSURL = "wss://open-api-ws.bingx.com/market"
	apiURLLive    = "https://open-api.bingx.com"

	restPollInterval = 500 * time.Millisecond
)

func init() {
	adapter.Register(domain.ExchangeBingx, New)
}

// Adapter is the Bingx venue plugin. Unlike the delta-based venues, the
// websocket URL consumers connect to is a local loopback relay: Start
// dials the real upstream itself (handling gzip + keepalive), REST-polls
// trades/ticker, and republishes plain JSON into the relay so the
// facade's transport sees one uniform stream.
type Adapter struct {
	testmode bool
	logger   zerolog.Logger
	rest     *restclient.Client

	dataMaxLen   int
	resultMaxLen int

	relay     *relay.Relay
	relayOnce sync.Once
	relayURL  string

	streamsMu sync.Mutex
	streams   []domain.StreamDescriptor

	catalogMu sync.Mutex
	catalog   *domain.ExchangeInfo

	klinesMu sync.Mutex
	klines   map[string]*streamstate.KlineSeries

	tradesMu sync.Mutex
	trades   map[string]*streamstate.TradeFIFO

	tickersMu sync.Mutex
	tickers   map[string]domain.Ticker

	cancel context.CancelFunc
}

// New constructs a Bingx adapter.
func New(testmode bool, debug bool) (adapter.Adapter, error) {
	return &Adapter{
		testmode:     testmode,
		logger:       log.With().Str("venue", string(domain.ExchangeBingx)).Logger(),
		rest:         restclient.New(restclient.Config{Venue: domain.ExchangeBingx, RatePerSec: 2, Burst: 4}),
		dataMaxLen:   2500,
		resultMaxLen: 5,
		relay:        relay.New(log.With().Str("venue", string(domain.ExchangeBingx)).Str("component", "relay").Logger()),
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

func (a *Adapter) Name() domain.Exchange { return domain.ExchangeBingx }

func (a *Adapter) APIURL() string { return apiURLLive }

// WebsocketURL lazily starts the local relay and returns its address; the
// real upstream connection is opened internally by Start, not by the
// facade's transport.
func (a *Adapter) WebsocketURL() string {
	a.relayOnce.Do(func() {
		addr, err := a.relay.Start()
		if err != nil {
			a.logger.Error().Err(err).Msg("bingx relay failed to start")
			return
		}
		a.relayURL = addr
	})
	return a.relayURL
}

func (a *Adapter) MaxStreams() int { return 1024 }

func (a *Adapter) ValidateStreams(streams []domain.StreamDescriptor) error {
	for _, d := range streams {
		if d.Endpoint == domain.EndpointKline && d.Interval != "1m" {
			return domain.NewConfigError(fmt.Sprintf("bingx: kline interval %q unsupported, only 1m is accepted", d.Interval), nil)
		}
	}
	return nil
}

func (a *Adapter) StreamKey(d domain.StreamDescriptor) string { return domain.StreamKey(d) }

func (a *Adapter) CanonicalizeInterval(venueInterval string) (string, error) {
	if venueInterval != "1min" {
		return "", fmt.Errorf("bingx: unsupported venue interval %q", venueInterval)
	}
	return "1m", nil
}

func (a *Adapter) VenueInterval(canonicalInterval string) (string, error) {
	if canonicalInterval != "1m" {
		return "", fmt.Errorf("bingx: unsupported canonical interval %q, only 1m is accepted", canonicalInterval)
	}
	return "1min", nil
}

func (a *Adapter) VenueSymbol(canonicalSymbol string) (string, error) {
	if !strings.Contains(canonicalSymbol, "/") {
		return "", fmt.Errorf("bingx: %q is not a canonical BASE/QUOTE symbol", canonicalSymbol)
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

// Start records nothing new (SubscriptionFrames already captured the
// requested streams) and launches the upstream relay feeders.
func (a *Adapter) Start(ctx context.Context) error {
	a.WebsocketURL()
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.streamsMu.Lock()
	streams := append([]domain.StreamDescriptor(nil), a.streams...)
	a.streamsMu.Unlock()

	go a.runUpstreamWS(runCtx, streams)
	go a.runRestPoller(runCtx, streams)
	return nil
}

func (a *Adapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	return a.relay.Stop(context.Background())
}

func (a *Adapter) ResetTransientState() {
	a.klinesMu.Lock()
	a.klines = make(map[string]*streamstate.KlineSeries)
	a.klinesMu.Unlock()
}

type wsSubFrame struct {
	ID       string `json:"id"`
	ReqType  string `json:"reqType"`
	DataType string `json:"dataType"`
}

// runUpstreamWS dials the real Bingx market websocket, handles its
// gzip-framed keepalives, and republishes every decoded payload into the
// local relay.
func (a *Adapter) runUpstreamWS(ctx context.Context, streams []domain.StreamDescriptor) {
	var dataTypes []string
	for _, d := range streams {
		venueSymbol, err := a.VenueSymbol(d.Symbol)
		if err != nil {
			continue
		}
		switch d.Endpoint {
		case domain.EndpointOrderBook:
			dataTypes = append(dataTypes, venueSymbol+"@depth100")
		case domain.EndpointKline:
			dataTypes = append(dataTypes, venueSymbol+"@kline_1min")
		}
	}
	if len(dataTypes) == 0 {
		return
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, upstreamWSURL, nil)
	if err != nil {
		a.logger.Error().Err(err).Msg("bingx upstream dial failed")
		return
	}
	defer conn.Close()

	reqID := fmt.Sprintf("%d", time.Now().UnixNano())
	for _, dt := range dataTypes {
		frame, _ := json.Marshal(wsSubFrame{ID: reqID, ReqType: "sub", DataType: dt})
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
		time.Sleep(140 * time.Millisecond)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.BinaryMessage {
			inflated, err := gunzip(data)
			if err != nil {
				continue
			}
			data = inflated
		}
		text := string(data)

		if text == "Ping" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte("Pong"))
			continue
		}

		var pingProbe struct {
			Ping *int64 `json:"ping"`
			Time *int64 `json:"time"`
		}
		if json.Unmarshal(data, &pingProbe) == nil && pingProbe.Ping != nil && pingProbe.Time != nil {
			reply, _ := json.Marshal(map[string]int64{"pong": *pingProbe.Ping, "time": *pingProbe.Time})
			_ = conn.WriteMessage(websocket.TextMessage, reply)
			continue
		}

		a.relay.Publish(data)
	}
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type restPushFrame struct {
	Code      int             `json:"code"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	DataType  string          `json:"dataType"`
	Success   bool            `json:"success"`
}

// runRestPoller polls trades/ticker REST endpoints and republishes them
// into the relay with a synthetic dataType field, mirroring
// __get_data_from_api.
func (a *Adapter) runRestPoller(ctx context.Context, streams []domain.StreamDescriptor) {
	type target struct {
		endpoint domain.Endpoint
		symbol   string
	}
	var targets []target
	for _, d := range streams {
		venueSymbol, err := a.VenueSymbol(d.Symbol)
		if err != nil {
			continue
		}
		if d.Endpoint == domain.EndpointTrades || d.Endpoint == domain.EndpointTicker {
			targets = append(targets, target{endpoint: d.Endpoint, symbol: venueSymbol})
		}
	}
	if len(targets) == 0 {
		return
	}

	ticker := time.NewTicker(restPollInterval)
	defer ticker.Stop()

	idx := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		t := targets[idx%len(targets)]
		idx++

		var url, dataType string
		switch t.endpoint {
		case domain.EndpointTrades:
			url = fmt.Sprintf("%s/openApi/spot/v1/market/trades?symbol=%s&limit=100", a.APIURL(), t.symbol)
			dataType = t.symbol + "@trades"
		case domain.EndpointTicker:
			url = fmt.Sprintf("%s/openApi/spot/v1/ticker/24hr?timestamp=%d&symbol=%s", a.APIURL(), time.Now().UnixMilli(), t.symbol)
			dataType = t.symbol + "@ticker"
		}

		body, err := a.rest.Get(ctx, url)
		if err != nil || body == nil {
			continue
		}

		var raw struct {
			Code      int             `json:"code"`
			Data      json.RawMessage `json:"data"`
			Timestamp int64           `json:"timestamp"`
		}
		if json.Unmarshal(body, &raw) != nil {
			continue
		}
		out, err := json.Marshal(restPushFrame{Code: raw.Code, Data: raw.Data, Timestamp: raw.Timestamp, DataType: dataType, Success: true})
		if err != nil {
			continue
		}
		a.relay.Publish(out)
	}
}
