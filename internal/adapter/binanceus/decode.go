package binanceus

import (
	"encoding/json"
	"time"

	"github.com/ccxgo/ccxgo/internal/bookutil"
	"github.com/ccxgo/ccxgo/internal/domain"
	"github.com/ccxgo/ccxgo/internal/streamstate"
)

type wireEnvelope struct {
	EventType string      `json:"e"`
	EventTime int64       `json:"E"`
	Symbol    string      `json:"s"`
	Kline     *wireKline  `json:"k"`
	TradeID   json.Number `json:"t"`
	Price     string      `json:"p"`
	Quantity  string      `json:"q"`
	TradeTime int64       `json:"T"`
	IsBuyer   bool        `json:"m"`
}

type wireKline struct {
	StartTime int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	IsClosed  bool   `json:"x"`
}

type depthUpdateWire struct {
	U    int64      `json:"u"`
	U1   int64      `json:"U"`
	Bids [][]string `json:"b"`
	Asks [][]string `json:"a"`
}

type tickerWire struct {
	PriceChange        string `json:"p"`
	PriceChangePercent string `json:"P"`
	WeightedAvgPrice   string `json:"w"`
	LastPrice          string `json:"c"`
	OpenPrice          string `json:"o"`
	HighPrice          string `json:"h"`
	LowPrice           string `json:"l"`
	Volume             string `json:"v"`
	QuoteVolume        string `json:"q"`
	OpenTime           int64  `json:"O"`
	CloseTime          int64  `json:"C"`
}

// Decode mirrors binance.Adapter.Decode: same dispatch-by-event-type and
// order-book delta algorithm, different REST endpoints/limits only.
func (a *Adapter) Decode(raw []byte) (domain.Record, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBinanceUS, Op: "decode", Cause: err}
	}

	switch env.EventType {
	case "depthUpdate":
		var depth depthUpdateWire
		if err := json.Unmarshal(raw, &depth); err != nil {
			return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBinanceUS, Op: "depth decode", Cause: err}
		}
		return a.decodeOrderBook(env, depth)
	case "kline":
		return a.decodeKline(env)
	case "trade":
		return a.decodeTrade(env)
	case "24hrTicker":
		return a.decodeTicker(raw, env)
	default:
		return nil, nil
	}
}

func (a *Adapter) decodeOrderBook(env wireEnvelope, depth depthUpdateWire) (domain.Record, error) {
	symbol, err := a.CanonicalizeSymbol(env.Symbol)
	if err != nil {
		symbol = env.Symbol
	}

	a.booksMu.Lock()
	state, ok := a.books[symbol]
	if !ok {
		state = &bookState{}
		a.books[symbol] = state
	}
	a.booksMu.Unlock()

	state.mu.Lock()
	defer state.mu.Unlock()

	if !state.initialized || depth.U1-state.lastUpdateID > 1 {
		if err := a.resyncBook(env.Symbol, state); err != nil {
			return nil, err
		}
	}

	state.bids = bookutil.MergeLevels(state.bids, toLevels(depth.Bids), true)
	state.asks = bookutil.MergeLevels(state.asks, toLevels(depth.Asks), false)
	diffUpdateID := depth.U1 - state.lastUpdateID
	state.lastUpdateID = depth.U
	state.initialized = true

	now := time.Now().UTC()
	return domain.OrderBookSnapshot{
		Endpoint:     domain.EndpointOrderBook,
		Exchange:     domain.ExchangeBinanceUS,
		Symbol:       symbol,
		LastUpdateID: state.lastUpdateID,
		DiffUpdateID: diffUpdateID,
		Bids:         bookutil.Truncate(state.bids, a.resultMaxLen),
		Asks:         bookutil.Truncate(state.asks, a.resultMaxLen),
		Type:         "update",
		Timestamp:    float64(now.UnixNano()) / 1e9,
		Datetime:     now.Format("2006-01-02 15:04:05.000000"),
	}, nil
}

func (a *Adapter) decodeKline(env wireEnvelope) (domain.Record, error) {
	symbol, err := a.CanonicalizeSymbol(env.Symbol)
	if err != nil {
		symbol = env.Symbol
	}
	interval, err := a.CanonicalizeInterval(env.Kline.Interval)
	if err != nil {
		interval = env.Kline.Interval
	}

	streamKey := domain.StreamKey(domain.StreamDescriptor{Endpoint: domain.EndpointKline, Symbol: symbol, Interval: interval})
	a.klinesMu.Lock()
	series, ok := a.klines[streamKey]
	if !ok {
		series = streamstate.NewKlineSeries(a.dataMaxLen)
		a.klines[streamKey] = series
	}
	a.klinesMu.Unlock()

	bar := domain.KlineBar{
		Endpoint:      domain.EndpointKline,
		Exchange:      domain.ExchangeBinanceUS,
		Symbol:        symbol,
		Interval:      interval,
		LastUpdateID:  env.EventTime,
		OpenTime:      env.Kline.StartTime,
		CloseTime:     env.Kline.CloseTime,
		OpenTimeDate:  formatMillis(env.Kline.StartTime),
		CloseTimeDate: formatMillis(env.Kline.CloseTime),
		Open:          env.Kline.Open,
		Close:         env.Kline.Close,
		High:          env.Kline.High,
		Low:           env.Kline.Low,
		Volume:        env.Kline.Volume,
		IsClosed:      env.Kline.IsClosed,
	}
	series.Put(bar)
	return bar, nil
}

func (a *Adapter) decodeTrade(env wireEnvelope) (domain.Record, error) {
	symbol, err := a.CanonicalizeSymbol(env.Symbol)
	if err != nil {
		symbol = env.Symbol
	}
	side := "SELL"
	if env.IsBuyer {
		side = "BUY"
	}

	streamKey := domain.StreamKey(domain.StreamDescriptor{Endpoint: domain.EndpointTrades, Symbol: symbol})
	a.tradesMu.Lock()
	fifo, ok := a.trades[streamKey]
	if !ok {
		fifo = streamstate.NewTradeFIFO(a.dataMaxLen, false)
		a.trades[streamKey] = fifo
	}
	a.tradesMu.Unlock()

	trade := domain.Trade{
		Endpoint:      domain.EndpointTrades,
		Exchange:      domain.ExchangeBinanceUS,
		Symbol:        symbol,
		EventTime:     env.EventTime,
		TradeID:       env.TradeID.String(),
		Price:         env.Price,
		Quantity:      env.Quantity,
		TradeTime:     env.TradeTime,
		TradeTimeDate: formatMillis(env.TradeTime),
		SideOfTaker:   side,
	}
	fifo.Push(trade)
	return trade, nil
}

func (a *Adapter) decodeTicker(raw []byte, env wireEnvelope) (domain.Record, error) {
	symbol, err := a.CanonicalizeSymbol(env.Symbol)
	if err != nil {
		symbol = env.Symbol
	}
	var w tickerWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBinanceUS, Op: "ticker decode", Cause: err}
	}

	ticker := domain.Ticker{
		Endpoint:           domain.EndpointTicker,
		Exchange:           domain.ExchangeBinanceUS,
		Symbol:             symbol,
		PriceChange:        w.PriceChange,
		PriceChangePercent: w.PriceChangePercent,
		WeightedAvgPrice:   w.WeightedAvgPrice,
		LastPrice:          w.LastPrice,
		OpenPrice:          w.OpenPrice,
		HighPrice:          w.HighPrice,
		LowPrice:           w.LowPrice,
		Volume:             w.Volume,
		QuoteVolume:        w.QuoteVolume,
		OpenTime:           w.OpenTime,
		CloseTime:          w.CloseTime,
	}

	streamKey := domain.StreamKey(domain.StreamDescriptor{Endpoint: domain.EndpointTicker, Symbol: symbol})
	a.tickersMu.Lock()
	a.tickers[streamKey] = ticker
	a.tickersMu.Unlock()
	return ticker, nil
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
