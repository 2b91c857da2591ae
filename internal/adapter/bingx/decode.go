package bingx

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ccxgo/ccxgo/internal/bookutil"
	"github.com/ccxgo/ccxgo/internal/domain"
	"github.com/ccxgo/ccxgo/internal/streamstate"
)

type wireEnvelope struct {
	DataType string          `json:"dataType"`
	Data     json.RawMessage `json:"data"`
	Code     *int            `json:"code"`
	Success  *bool           `json:"success"`
}

type depthWire struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

type klineEventWire struct {
	EventTime int64 `json:"E"`
	K         struct {
		Start int64  `json:"t"`
		End   int64  `json:"T"`
		Open  string `json:"o"`
		Close string `json:"c"`
		High  string `json:"h"`
		Low   string `json:"l"`
		Volume string `json:"v"`
	} `json:"K"`
}

type tradeWire struct {
	ID         json.Number `json:"id"`
	Price      string      `json:"price"`
	Quantity   string      `json:"qty"`
	Time       int64       `json:"time"`
	BuyerMaker bool        `json:"buyerMaker"`
}

type tickerWire struct {
	LastPrice   string `json:"lastPrice"`
	OpenPrice   string `json:"openPrice"`
	HighPrice   string `json:"highPrice"`
	LowPrice    string `json:"lowPrice"`
	Volume      string `json:"volume"`
	QuoteVolume string `json:"quoteVolume"`
}

// Decode dispatches on the "@"-suffixed dataType field, grounded on
// manage_websocket_message. Frames reaching here already passed through
// the adapter's own upstream gzip/ping handling via the local relay.
func (a *Adapter) Decode(raw []byte) (domain.Record, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBingx, Op: "decode", Cause: err}
	}
	if env.DataType == "" || !strings.Contains(env.DataType, "@") {
		return nil, nil
	}

	parts := strings.SplitN(env.DataType, "@", 2)
	venueSymbol, channel := parts[0], parts[1]

	switch {
	case strings.HasPrefix(channel, "depth"):
		return a.decodeOrderBook(venueSymbol, env.Data)
	case strings.HasPrefix(channel, "kline_"):
		return a.decodeKline(venueSymbol, env.Data)
	case strings.HasPrefix(channel, "trades"):
		return a.decodeTrades(venueSymbol, env.Data)
	case strings.HasPrefix(channel, "ticker"):
		return a.decodeTicker(venueSymbol, env.Data)
	default:
		return nil, nil
	}
}

func (a *Adapter) decodeOrderBook(venueSymbol string, raw json.RawMessage) (domain.Record, error) {
	var wire depthWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBingx, Op: "order book decode", Cause: err}
	}
	symbol, err := a.CanonicalizeSymbol(venueSymbol)
	if err != nil {
		symbol = venueSymbol
	}

	asks := toLevels(wire.Asks)
	reverseLevels(asks)

	now := time.Now().UTC()
	return domain.OrderBookSnapshot{
		Endpoint:     domain.EndpointOrderBook,
		Exchange:     domain.ExchangeBingx,
		Symbol:       symbol,
		LastUpdateID: now.UnixNano(),
		DiffUpdateID: 0,
		Bids:         bookutil.Truncate(toLevels(wire.Bids), a.resultMaxLen),
		Asks:         bookutil.Truncate(asks, a.resultMaxLen),
		Type:         "snapshot",
		Timestamp:    float64(now.UnixNano()) / 1e9,
		Datetime:     now.Format("2006-01-02 15:04:05.000000"),
	}, nil
}

func (a *Adapter) decodeKline(venueSymbol string, raw json.RawMessage) (domain.Record, error) {
	var wire klineEventWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBingx, Op: "kline decode", Cause: err}
	}
	symbol, err := a.CanonicalizeSymbol(venueSymbol)
	if err != nil {
		symbol = venueSymbol
	}

	streamKey := domain.StreamKey(domain.StreamDescriptor{Endpoint: domain.EndpointKline, Symbol: symbol, Interval: "1m"})
	a.klinesMu.Lock()
	series, ok := a.klines[streamKey]
	if !ok {
		series = streamstate.NewKlineSeries(a.dataMaxLen)
		a.klines[streamKey] = series
	}
	a.klinesMu.Unlock()

	bar := domain.KlineBar{
		Endpoint:      domain.EndpointKline,
		Exchange:      domain.ExchangeBingx,
		Symbol:        symbol,
		Interval:      "1m",
		LastUpdateID:  wire.EventTime,
		OpenTime:      wire.K.Start,
		CloseTime:     wire.K.End,
		OpenTimeDate:  formatMillis(wire.K.Start),
		CloseTimeDate: formatMillis(wire.K.End),
		Open:          wire.K.Open,
		Close:         wire.K.Close,
		High:          wire.K.High,
		Low:           wire.K.Low,
		Volume:        wire.K.Volume,
	}
	series.Put(bar)
	return bar, nil
}

func (a *Adapter) decodeTrades(venueSymbol string, raw json.RawMessage) (domain.Record, error) {
	var trades []tradeWire
	if err := json.Unmarshal(raw, &trades); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBingx, Op: "trades decode", Cause: err}
	}
	symbol, err := a.CanonicalizeSymbol(venueSymbol)
	if err != nil {
		symbol = venueSymbol
	}

	streamKey := domain.StreamKey(domain.StreamDescriptor{Endpoint: domain.EndpointTrades, Symbol: symbol})
	a.tradesMu.Lock()
	fifo, ok := a.trades[streamKey]
	if !ok {
		fifo = streamstate.NewTradeFIFO(a.dataMaxLen, true)
		a.trades[streamKey] = fifo
	}
	a.tradesMu.Unlock()

	var last domain.Trade
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		side := "BUY"
		if t.BuyerMaker {
			side = "SELL"
		}
		trade := domain.Trade{
			Endpoint:      domain.EndpointTrades,
			Exchange:      domain.ExchangeBingx,
			Symbol:        symbol,
			TradeID:       t.ID.String(),
			Price:         t.Price,
			Quantity:      t.Quantity,
			TradeTime:     t.Time,
			TradeTimeDate: formatMillis(t.Time),
			SideOfTaker:   side,
		}
		fifo.Push(trade)
		last = trade
	}
	return last, nil
}

func (a *Adapter) decodeTicker(venueSymbol string, raw json.RawMessage) (domain.Record, error) {
	var tickers []tickerWire
	if err := json.Unmarshal(raw, &tickers); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBingx, Op: "ticker decode", Cause: err}
	}
	if len(tickers) == 0 {
		return nil, nil
	}
	symbol, err := a.CanonicalizeSymbol(venueSymbol)
	if err != nil {
		symbol = venueSymbol
	}
	w := tickers[0]

	ticker := domain.Ticker{
		Endpoint:    domain.EndpointTicker,
		Exchange:    domain.ExchangeBingx,
		Symbol:      symbol,
		LastPrice:   w.LastPrice,
		OpenPrice:   w.OpenPrice,
		HighPrice:   w.HighPrice,
		LowPrice:    w.LowPrice,
		Volume:      w.Volume,
		QuoteVolume: w.QuoteVolume,
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

func reverseLevels(levels []domain.Level) {
	for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
		levels[i], levels[j] = levels[j], levels[i]
	}
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
