// Package bybit implements the Bybit spot venue adapter (spec.md §4.4,
// §6). Grounded on original_source/ccxw/bybit.py: the v5 public spot
// websocket, topic-prefixed dispatch and the op:"ping"/"pong" keepalive.
// Order-book deltas are merged as they arrive: the "u" sequence id is
// recorded but not checked for monotonicity, and no resync is triggered.
package bybit

import (
	"context"
	"fmt"
	"strconv"
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
	wsURLLive = "wss://stream.bybit.com/v5/public/spot"
	wsURLTest = "wss://stream-testnet.bybit.com/v5/public/spot"
	apiURLLive = "https://api.bybit.com"
	apiURLTest = "https://api-testnet.bybit.com"

	// MaxStreamsLimit is Bybit's per-connection topic ceiling.
	MaxStreamsLimit = 10

	orderBookDepth = 50
	pingIntervalS  = 20
)

func init() {
	adapter.Register(domain.ExchangeBybit, New)
}

type bookState struct {
	mu          sync.Mutex
	seq         int64
	u           int64
	bids        []domain.Level
	asks        []domain.Level
	initialized bool
}

// Adapter is the Bybit venue plugin.
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

// New constructs a Bybit adapter.
func New(testmode bool, debug bool) (adapter.Adapter, error) {
	return &Adapter{
		testmode:     testmode,
		logger:       log.With().Str("venue", string(domain.ExchangeBybit)).Logger(),
		rest:         restclient.New(restclient.Config{Venue: domain.ExchangeBybit, RatePerSec: 10, Burst: 20}),
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

func (a *Adapter) Name() domain.Exchange { return domain.ExchangeBybit }

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

// MaxStreams is Bybit's strict per-connection topic ceiling (far tighter
// than the other five venues).
func (a *Adapter) MaxStreams() int { return MaxStreamsLimit }

func (a *Adapter) ValidateStreams(streams []domain.StreamDescriptor) error {
	for _, d := range streams {
		if d.Endpoint == domain.EndpointKline {
			if _, err := venueInterval(d.Interval); err != nil {
				return domain.NewConfigError(fmt.Sprintf("bybit: unsupported kline interval %q", d.Interval), err)
			}
		}
	}
	return nil
}

func (a *Adapter) StreamKey(d domain.StreamDescriptor) string { return domain.StreamKey(d) }

// venueInterval maps a canonical interval to Bybit's numeric-minute (or
// D/W/M) form, per __get_interval_from_unified_interval.
func venueInterval(canonical string) (string, error) {
	switch canonical {
	case "1m":
		return "1", nil
	case "3m":
		return "3", nil
	case "5m":
		return "5", nil
	case "15m":
		return "15", nil
	case "30m":
		return "30", nil
	case "1h":
		return "60", nil
	case "2h":
		return "120", nil
	case "4h":
		return "240", nil
	case "6h":
		return "360", nil
	case "12h":
		return "720", nil
	case "1d":
		return "D", nil
	case "1w":
		return "W", nil
	case "1mo":
		return "M", nil
	default:
		return "", fmt.Errorf("bybit: unsupported canonical interval %q", canonical)
	}
}

// canonicalInterval is venueInterval's inverse, grounded on
// get_unified_interval_from_interval.
func canonicalInterval(venue string) (string, error) {
	switch venue {
	case "D":
		return "1d", nil
	case "W":
		return "1w", nil
	case "M":
		return "1mo", nil
	}
	n, err := strconv.Atoi(venue)
	if err != nil {
		return "", fmt.Errorf("bybit: unsupported venue interval %q", venue)
	}
	switch n {
	case 1:
		return "1m", nil
	case 3:
		return "3m", nil
	case 5:
		return "5m", nil
	case 15:
		return "15m", nil
	case 30:
		return "30m", nil
	case 60:
		return "1h", nil
	case 120:
		return "2h", nil
	case 240:
		return "4h", nil
	case 360:
		return "6h", nil
	case 720:
		return "12h", nil
	}
	return "", fmt.Errorf("bybit: unsupported venue interval %q", venue)
}

func (a *Adapter) CanonicalizeInterval(venue string) (string, error) { return canonicalInterval(venue) }
func (a *Adapter) VenueInterval(canonical string) (string, error)    { return venueInterval(canonical) }

func (a *Adapter) VenueSymbol(canonicalSymbol string) (string, error) {
	if !strings.Contains(canonicalSymbol, "/") {
		return "", fmt.Errorf("bybit: %q is not a canonical BASE/QUOTE symbol", canonicalSymbol)
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
	return "", fmt.Errorf("bybit: symbol %q not found in catalog", venueSymbol)
}
