// Package binance implements the Binance spot venue adapter (spec.md
// §4.4, §6). Grounded throughout on original_source/ccxw/binance.py:
// REST URLs, combined-stream subscription frames, the order-book
// gap/resync rule, kline bar accumulation and the trade FIFO.
package binance

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ccxgo/ccxgo/internal/adapter"
	"github.com/ccxgo/ccxgo/internal/domain"
	"github.com/ccxgo/ccxgo/internal/restclient"
	"github.com/ccxgo/ccxgo/internal/streamstate"
)

const (
	wsURLLive = "wss://stream.binance.com:9443/ws"
	wsURLTest = "wss://testnet.binance.vision/ws"
	apiURLLive = "https://api.binance.com/api/v3"
	apiURLTest = "https://testnet.binance.vision/api/v3"

	// MaxDataLen is Binance's data_max_len ceiling (original source
	// clamps to 400, tighter than the library-wide 2500 default).
	MaxDataLen = 400
)

func init() {
	adapter.Register(domain.ExchangeBinance, New)
}

// Adapter is the Binance venue plugin.
type Adapter struct {
	testmode bool
	debug    bool
	logger   zerolog.Logger
	rest     *restclient.Client

	dataMaxLen   int
	resultMaxLen int

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

	ctx context.Context

	// apiURLOverride lets tests point REST calls at a httptest server
	// instead of the live/sandbox Binance endpoints.
	apiURLOverride string
}

type bookState struct {
	mu           sync.Mutex
	lastUpdateID int64
	bids         []domain.Level
	asks         []domain.Level
	initialized  bool
}

// New constructs a Binance adapter (factory signature for adapter.Register).
func New(testmode bool, debug bool) (adapter.Adapter, error) {
	a := &Adapter{
		testmode:     testmode,
		debug:        debug,
		logger:       log.With().Str("venue", string(domain.ExchangeBinance)).Logger(),
		dataMaxLen:   MaxDataLen,
		resultMaxLen: 5,
		books:        make(map[string]*bookState),
		klines:       make(map[string]*streamstate.KlineSeries),
		trades:       make(map[string]*streamstate.TradeFIFO),
		tickers:      make(map[string]domain.Ticker),
		ctx:          context.Background(),
	}
	a.rest = restclient.New(restclient.Config{Venue: domain.ExchangeBinance, RatePerSec: 10, Burst: 20})
	return a, nil
}

// SetDataMaxLen lets the facade push down its clamped data_max_len so
// per-stream kline/trade bounds match the configured policy.
func (a *Adapter) SetDataMaxLen(n int) {
	if n > 0 && n <= MaxDataLen {
		a.dataMaxLen = n
	}
}

// SetResultMaxLen lets the facade push down its configured result_max_len.
func (a *Adapter) SetResultMaxLen(n int) {
	if n > 0 {
		a.resultMaxLen = n
	}
}

func (a *Adapter) Name() domain.Exchange { return domain.ExchangeBinance }

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

func (a *Adapter) Start(ctx context.Context) error {
	a.ctx = ctx
	return nil
}

func (a *Adapter) Stop() error { return nil }

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
				return domain.NewConfigError(fmt.Sprintf("binance: unsupported kline interval %q", d.Interval), err)
			}
		}
	}
	return nil
}
