// Package binanceus implements the Binance.US spot venue adapter. The
// wire protocol, subscription framing and order-book delta algorithm are
// identical to Binance's (original_source/ccxw/binanceus.py is a near
// copy of binance.py): only the REST/WS base URLs, depth snapshot limit
// and stream-count ceiling differ.
package binanceus

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ccxgo/ccxgo/internal/adapter"
	"github.com/ccxgo/ccxgo/internal/domain"
	"github.com/ccxgo/ccxgo/internal/restclient"
	"github.com/ccxgo/ccxgo/internal/streamstate"
)

const (
	wsURLLive = "wss://stream.binance.us:9443/ws"
	wsURLTest = "wss://testnet.binance.vision/ws"
	apiURLLive = "https://api.binance.us/api/v3"
	apiURLTest = "https://testnet.binance.vision/api/v3"

	depthLimit = 1000
)

func init() {
	adapter.Register(domain.ExchangeBinanceUS, New)
}

type bookState struct {
	mu           sync.Mutex
	lastUpdateID int64
	bids         []domain.Level
	asks         []domain.Level
	initialized  bool
}

// Adapter is the Binance.US venue plugin.
type Adapter struct {
	testmode bool
	logger   zerolog.Logger
	rest     *restclient.Client
	ctx      context.Context

	dataMaxLen   int
	resultMaxLen int

	apiURLOverride string

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
}

// New constructs a Binance.US adapter.
func New(testmode bool, debug bool) (adapter.Adapter, error) {
	return &Adapter{
		testmode:     testmode,
		logger:       log.With().Str("venue", string(domain.ExchangeBinanceUS)).Logger(),
		rest:         restclient.New(restclient.Config{Venue: domain.ExchangeBinanceUS, RatePerSec: 10, Burst: 20}),
		ctx:          context.Background(),
		dataMaxLen:   2500,
		resultMaxLen: 5,
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

func (a *Adapter) Name() domain.Exchange { return domain.ExchangeBinanceUS }

func (a *Adapter) APIURL() string {
	if a.apiURLOverride != "" {
		return a.apiURLOverride
	}
	if a.testmode {
		return apiURLTest
	}
	return apiURLLive
}

func (a *Adapter) WebsocketURL() string {
	if a.testmode {
		return wsURLTest
	}
	return wsURLLive
}

func (a *Adapter) Start(ctx context.Context) error { a.ctx = ctx; return nil }
func (a *Adapter) Stop() error                      { return nil }

func (a *Adapter) ResetTransientState() {
	a.booksMu.Lock()
	a.books = make(map[string]*bookState)
	a.booksMu.Unlock()
}

func (a *Adapter) MaxStreams() int { return 1024 }

func (a *Adapter) ValidateStreams(streams []domain.StreamDescriptor) error {
	for _, d := range streams {
		if d.Endpoint == domain.EndpointKline {
			if _, err := a.VenueInterval(d.Interval); err != nil {
				return domain.NewConfigError(fmt.Sprintf("binanceus: unsupported kline interval %q", d.Interval), err)
			}
		}
	}
	return nil
}

func (a *Adapter) StreamKey(d domain.StreamDescriptor) string { return domain.StreamKey(d) }

func (a *Adapter) CanonicalizeInterval(venueInterval string) (string, error) {
	if venueInterval == "1M" {
		return "1mo", nil
	}
	for _, c := range domain.SupportedIntervals() {
		if c == venueInterval {
			return c, nil
		}
	}
	return "", fmt.Errorf("binanceus: unsupported venue interval %q", venueInterval)
}

func (a *Adapter) VenueInterval(canonicalInterval string) (string, error) {
	if canonicalInterval == "1mo" {
		return "1M", nil
	}
	for _, c := range domain.SupportedIntervals() {
		if c == canonicalInterval && c != "1mo" {
			return c, nil
		}
	}
	return "", fmt.Errorf("binanceus: unsupported canonical interval %q", canonicalInterval)
}

func (a *Adapter) VenueSymbol(canonicalSymbol string) (string, error) {
	if !strings.Contains(canonicalSymbol, "/") {
		return "", fmt.Errorf("binanceus: %q is not a canonical BASE/QUOTE symbol", canonicalSymbol)
	}
	return strings.ToUpper(strings.ReplaceAll(canonicalSymbol, "/", "")), nil
}

func (a *Adapter) CanonicalizeSymbol(venueSymbol string) (string, error) {
	a.catalogMu.Lock()
	catalog := a.catalog
	a.catalogMu.Unlock()
	if catalog != nil {
		for _, s := range catalog.Symbols {
			if strings.EqualFold(s.VenueSymbol, venueSymbol) {
				return s.Symbol, nil
			}
		}
	}
	return "", fmt.Errorf("binanceus: symbol %q not found in catalog", venueSymbol)
}

type exchangeInfoResponse struct {
	Symbols []struct {
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Status     string `json:"status"`
		Symbol     string `json:"symbol"`
	} `json:"symbols"`
}

func (a *Adapter) ExchangeInfo(ctx context.Context, fullList bool) (*domain.ExchangeInfo, error) {
	url := a.APIURL() + "/exchangeInfo"
	body, err := a.rest.GetCached(ctx, url, restclient.ExchangeInfoTTL)
	if err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBinanceUS, Op: "exchangeInfo", Cause: err}
	}
	if body == nil {
		return nil, nil
	}
	var parsed exchangeInfoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBinanceUS, Op: "exchangeInfo decode", Cause: err}
	}
	info := &domain.ExchangeInfo{Exchange: domain.ExchangeBinanceUS}
	for _, s := range parsed.Symbols {
		if s.BaseAsset == "" || s.QuoteAsset == "" {
			continue
		}
		info.Symbols = append(info.Symbols, domain.SymbolInfo{
			Symbol:      strings.ToUpper(s.BaseAsset) + "/" + strings.ToUpper(s.QuoteAsset),
			VenueSymbol: s.Symbol,
			Status:      s.Status,
		})
	}
	a.catalogMu.Lock()
	a.catalog = info
	a.catalogMu.Unlock()
	return info, nil
}

func (a *Adapter) FullSymbolList(ctx context.Context, sorted bool) ([]string, error) {
	info, err := a.ExchangeInfo(ctx, true)
	if err != nil || info == nil {
		return nil, err
	}
	out := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		out = append(out, s.Symbol)
	}
	if sorted {
		sort.Strings(out)
	}
	return out, nil
}

func (a *Adapter) IsSymbolSupported(ctx context.Context, canonicalSymbol string) (bool, error) {
	list, err := a.FullSymbolList(ctx, false)
	if err != nil {
		return false, err
	}
	for _, s := range list {
		if s == canonicalSymbol {
			return true, nil
		}
	}
	return false, nil
}

func (a *Adapter) resyncBook(venueSymbol string, state *bookState) error {
	url := fmt.Sprintf("%s/depth?symbol=%s&limit=%d", a.APIURL(), venueSymbol, depthLimit)
	body, err := a.rest.Get(a.ctx, url)
	if err != nil {
		return &domain.TransientNetworkError{Venue: domain.ExchangeBinanceUS, Op: "depth snapshot", Cause: err}
	}
	if body == nil {
		return &domain.TransientNetworkError{Venue: domain.ExchangeBinanceUS, Op: "depth snapshot", Cause: fmt.Errorf("rest helper returned no data")}
	}
	var snap struct {
		LastUpdateID int64      `json:"lastUpdateId"`
		Bids         [][]string `json:"bids"`
		Asks         [][]string `json:"asks"`
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		return &domain.TransientNetworkError{Venue: domain.ExchangeBinanceUS, Op: "depth snapshot decode", Cause: err}
	}
	state.bids = toLevels(snap.Bids)
	state.asks = toLevels(snap.Asks)
	state.lastUpdateID = snap.LastUpdateID
	state.initialized = true
	return nil
}

func toLevels(raw [][]string) []domain.Level {
	out := make([]domain.Level, 0, len(raw))
	for _, pair := range raw {
		if len(pair) != 2 {
			continue
		}
		out = append(out, domain.Level{Price: pair[0], Size: pair[1]})
	}
	return out
}
