package bybit

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ccxgo/ccxgo/internal/bookutil"
	"github.com/ccxgo/ccxgo/internal/domain"
	"github.com/ccxgo/ccxgo/internal/streamstate"
)

type wireEnvelope struct {
	Topic  string          `json:"topic"`
	Type   string          `json:"type"`
	TS     int64           `json:"ts"`
	CS     int64           `json:"cs"`
	Data   json.RawMessage `json:"data"`
	Op     string          `json:"op"`
	RetMsg string          `json:"ret_msg"`
}

type orderBookWire struct {
	U    int64      `json:"u"`
	Seq  int64      `json:"seq"`
	Bids [][]string `json:"b"`
	Asks [][]string `json:"a"`
}

type klineWire struct {
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
	Open    string `json:"open"`
	Close   string `json:"close"`
	High    string `json:"high"`
	Low     string `json:"low"`
	Volume  string `json:"volume"`
	Confirm bool   `json:"confirm"`
}

type tradeWire struct {
	ID     json.Number `json:"i"`
	Price  string      `json:"p"`
	Volume string      `json:"v"`
	Time   int64       `json:"T"`
	Side   string      `json:"S"`
}

type tickerWire struct {
	PriceChangePercent string `json:"price24hPcnt"`
	LastPrice          string `json:"lastPrice"`
	PrevPrice24h       string `json:"prevPrice24h"`
	HighPrice24h       string `json:"highPrice24h"`
	LowPrice24h        string `json:"lowPrice24h"`
	Volume24h          string `json:"volume24h"`
	Turnover24h        string `json:"turnover24h"`
}

// Decode dispatches on the topic prefix, grounded on manage_websocket_message.
func (a *Adapter) Decode(raw []byte) (domain.Record, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBybit, Op: "decode", Cause: err}
	}

	if env.Op == "ping" || env.RetMsg == "pong" {
		return nil, nil
	}
	if env.Topic == "" {
		return nil, nil
	}

	parts := strings.Split(env.Topic, ".")
	switch parts[0] {
	case "orderbook":
		if len(parts) < 3 {
			return nil, nil
		}
		return a.decodeOrderBook(env, parts[2])
	case "kline":
		if len(parts) < 3 {
			return nil, nil
		}
		return a.decodeKline(env, parts[1], parts[2])
	case "publicTrade":
		if len(parts) < 2 {
			return nil, nil
		}
		return a.decodeTrade(env, parts[1])
	case "tickers":
		if len(parts) < 2 {
			return nil, nil
		}
		return a.decodeTicker(env, parts[1])
	default:
		return nil, nil
	}
}

func (a *Adapter) decodeOrderBook(env wireEnvelope, venueSymbol string) (domain.Record, error) {
	var wire orderBookWire
	if err := json.Unmarshal(env.Data, &wire); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBybit, Op: "order book decode", Cause: err}
	}

	symbol, err := a.CanonicalizeSymbol(venueSymbol)
	if err != nil {
		symbol = venueSymbol
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

	dataType := "snapshot"
	var diffUpdateID int64
	if !state.initialized || env.Type == "snapshot" {
		state.bids = toLevels(wire.Bids)
		state.asks = toLevels(wire.Asks)
	} else {
		state.bids = bookutil.MergeLevels(state.bids, toLevels(wire.Bids), true)
		state.asks = bookutil.MergeLevels(state.asks, toLevels(wire.Asks), false)
		diffUpdateID = wire.U - state.u
		dataType = "update"
	}
	state.u = wire.U
	state.seq = wire.Seq
	state.initialized = true

	now := time.Now().UTC()
	return domain.OrderBookSnapshot{
		Endpoint:     domain.EndpointOrderBook,
		Exchange:     domain.ExchangeBybit,
		Symbol:       symbol,
		LastUpdateID: state.u,
		DiffUpdateID: diffUpdateID,
		Bids:         bookutil.Truncate(state.bids, a.resultMaxLen),
		Asks:         bookutil.Truncate(state.asks, a.resultMaxLen),
		Type:         dataType,
		Timestamp:    float64(now.UnixNano()) / 1e9,
		Datetime:     now.Format("2006-01-02 15:04:05.000000"),
	}, nil
}

func (a *Adapter) decodeKline(env wireEnvelope, venueIntervalStr, venueSymbol string) (domain.Record, error) {
	var bars []klineWire
	if err := json.Unmarshal(env.Data, &bars); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBybit, Op: "kline decode", Cause: err}
	}
	symbol, err := a.CanonicalizeSymbol(venueSymbol)
	if err != nil {
		symbol = venueSymbol
	}
	interval, err := canonicalInterval(venueIntervalStr)
	if err != nil {
		interval = venueIntervalStr
	}

	streamKey := domain.StreamKey(domain.StreamDescriptor{Endpoint: domain.EndpointKline, Symbol: symbol, Interval: interval})
	a.klinesMu.Lock()
	series, ok := a.klines[streamKey]
	if !ok {
		series = streamstate.NewKlineSeries(a.dataMaxLen)
		a.klines[streamKey] = series
	}
	a.klinesMu.Unlock()

	var last domain.KlineBar
	for _, b := range bars {
		bar := domain.KlineBar{
			Endpoint:      domain.EndpointKline,
			Exchange:      domain.ExchangeBybit,
			Symbol:        symbol,
			Interval:      interval,
			LastUpdateID:  env.TS,
			OpenTime:      b.Start,
			CloseTime:     b.End,
			OpenTimeDate:  formatMillis(b.Start),
			CloseTimeDate: formatMillis(b.End),
			Open:          b.Open,
			Close:         b.Close,
			High:          b.High,
			Low:           b.Low,
			Volume:        b.Volume,
			IsClosed:      b.Confirm,
		}
		series.Put(bar)
		last = bar
	}
	return last, nil
}

func (a *Adapter) decodeTrade(env wireEnvelope, venueSymbol string) (domain.Record, error) {
	var trades []tradeWire
	if err := json.Unmarshal(env.Data, &trades); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBybit, Op: "trade decode", Cause: err}
	}
	symbol, err := a.CanonicalizeSymbol(venueSymbol)
	if err != nil {
		symbol = venueSymbol
	}

	streamKey := domain.StreamKey(domain.StreamDescriptor{Endpoint: domain.EndpointTrades, Symbol: symbol})
	a.tradesMu.Lock()
	fifo, ok := a.trades[streamKey]
	if !ok {
		fifo = streamstate.NewTradeFIFO(a.dataMaxLen, false)
		a.trades[streamKey] = fifo
	}
	a.tradesMu.Unlock()

	var last domain.Trade
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		trade := domain.Trade{
			Endpoint:      domain.EndpointTrades,
			Exchange:      domain.ExchangeBybit,
			Symbol:        symbol,
			EventTime:     env.TS,
			TradeID:       t.ID.String(),
			Price:         t.Price,
			Quantity:      t.Volume,
			TradeTime:     t.Time,
			TradeTimeDate: formatMillis(t.Time),
			SideOfTaker:   strings.ToUpper(t.Side),
		}
		fifo.Push(trade)
		last = trade
	}
	return last, nil
}

func (a *Adapter) decodeTicker(env wireEnvelope, venueSymbol string) (domain.Record, error) {
	var w tickerWire
	if err := json.Unmarshal(env.Data, &w); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBybit, Op: "ticker decode", Cause: err}
	}
	symbol, err := a.CanonicalizeSymbol(venueSymbol)
	if err != nil {
		symbol = venueSymbol
	}

	priceChange := ""
	if pct, err1 := strconv.ParseFloat(w.PriceChangePercent, 64); err1 == nil {
		if last, err2 := strconv.ParseFloat(w.LastPrice, 64); err2 == nil {
			priceChange = strconv.FormatFloat(pct*last, 'f', 8, 64)
		}
	}

	ticker := domain.Ticker{
		Endpoint:           domain.EndpointTicker,
		Exchange:           domain.ExchangeBybit,
		Symbol:             symbol,
		PriceChange:        priceChange,
		PriceChangePercent: w.PriceChangePercent,
		LastPrice:          w.LastPrice,
		OpenPrice:          w.PrevPrice24h,
		HighPrice:          w.HighPrice24h,
		LowPrice:           w.LowPrice24h,
		Volume:             w.Volume24h,
		QuoteVolume:        w.Turnover24h,
	}

	streamKey := domain.StreamKey(domain.StreamDescriptor{Endpoint: domain.EndpointTicker, Symbol: symbol})
	a.tickersMu.Lock()
	a.tickers[streamKey] = ticker
	a.tickersMu.Unlock()
	return ticker, nil
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

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
