package kucoin

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
	ID    string          `json:"id"`
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

type orderBookWire struct {
	Timestamp int64      `json:"timestamp"`
	Bids      [][]string `json:"bids"`
	Asks      [][]string `json:"asks"`
}

type klineWire struct {
	Symbol  string   `json:"symbol"`
	Candles []string `json:"candles"`
	Time    int64    `json:"time"`
}

type tradeWire struct {
	Symbol  string `json:"symbol"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	TradeID string `json:"tradeId"`
	Time    string `json:"time"`
}

type tickerWire struct {
	Price       string `json:"price"`
	Size        string `json:"size"`
	BestBid     string `json:"bestBid"`
	BestBidSize string `json:"bestBidSize"`
	BestAsk     string `json:"bestAsk"`
	BestAskSize string `json:"bestAskSize"`
}

// Decode dispatches on the topic's channel prefix (the part before the
// first ":"), grounded on manage_websocket_message. "welcome"/"pong"/
// "ack" control frames and anything without a topic are ignored.
func (a *Adapter) Decode(raw []byte) (domain.Record, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeKucoin, Op: "decode", Cause: err}
	}
	if env.Type != "message" || env.Topic == "" {
		return nil, nil
	}

	parts := strings.SplitN(env.Topic, ":", 2)
	if len(parts) != 2 {
		return nil, nil
	}
	channel, venueSymbol := parts[0], parts[1]

	switch channel {
	case "/spotMarket/level2Depth50":
		return a.decodeOrderBook(venueSymbol, env.Data)
	case "/market/candles":
		symbolAndInterval := strings.SplitN(venueSymbol, "_", 2)
		if len(symbolAndInterval) != 2 {
			return nil, nil
		}
		return a.decodeKline(symbolAndInterval[1], env.Data)
	case "/market/match":
		return a.decodeTrade(env.Data)
	case "/market/ticker":
		return a.decodeTicker(venueSymbol, env.Data)
	default:
		return nil, nil
	}
}

func (a *Adapter) decodeOrderBook(venueSymbol string, raw json.RawMessage) (domain.Record, error) {
	var wire orderBookWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeKucoin, Op: "order book decode", Cause: err}
	}
	symbol, err := a.CanonicalizeSymbol(venueSymbol)
	if err != nil {
		symbol = venueSymbol
	}

	now := time.Now().UTC()
	return domain.OrderBookSnapshot{
		Endpoint:     domain.EndpointOrderBook,
		Exchange:     domain.ExchangeKucoin,
		Symbol:       symbol,
		LastUpdateID: wire.Timestamp,
		DiffUpdateID: 0,
		Bids:         bookutil.Truncate(toLevels(wire.Bids), a.resultMaxLen),
		Asks:         bookutil.Truncate(toLevels(wire.Asks), a.resultMaxLen),
		Type:         "snapshot",
		Timestamp:    float64(now.UnixNano()) / 1e9,
		Datetime:     now.Format("2006-01-02 15:04:05.000000"),
	}, nil
}

// decodeKline reads the venue interval carried in the topic's
// "<symbol>_<venueInterval>" suffix (manage_websocket_message_kline's
// topic.split('_')[1]) to derive close_time from open_time, since the
// candle payload itself only carries an open timestamp.
func (a *Adapter) decodeKline(venueInterval string, raw json.RawMessage) (domain.Record, error) {
	var wire klineWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeKucoin, Op: "kline decode", Cause: err}
	}
	if len(wire.Candles) < 6 {
		return nil, nil
	}
	symbol, err := a.CanonicalizeSymbol(wire.Symbol)
	if err != nil {
		symbol = wire.Symbol
	}
	interval, err := a.CanonicalizeInterval(venueInterval)
	if err != nil {
		interval = venueInterval
	}

	openSec, err := strconv.ParseInt(wire.Candles[0], 10, 64)
	if err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeKucoin, Op: "kline open_time decode", Cause: err}
	}
	openTime := openSec * 1000

	closeTime := openTime
	if durationMs, durErr := intervalDurationMs(interval); durErr == nil {
		closeTime = openTime + durationMs - 1
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
		Exchange:      domain.ExchangeKucoin,
		Symbol:        symbol,
		Interval:      interval,
		LastUpdateID:  wire.Time,
		OpenTime:      openTime,
		CloseTime:     closeTime,
		OpenTimeDate:  formatMillis(openTime),
		CloseTimeDate: formatMillis(closeTime),
		Open:          wire.Candles[1],
		Close:         wire.Candles[2],
		High:          wire.Candles[3],
		Low:           wire.Candles[4],
		Volume:        wire.Candles[5],
	}
	series.Put(bar)
	return bar, nil
}

func (a *Adapter) decodeTrade(raw json.RawMessage) (domain.Record, error) {
	var wire tradeWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeKucoin, Op: "trade decode", Cause: err}
	}
	symbol, err := a.CanonicalizeSymbol(wire.Symbol)
	if err != nil {
		symbol = wire.Symbol
	}

	streamKey := domain.StreamKey(domain.StreamDescriptor{Endpoint: domain.EndpointTrades, Symbol: symbol})
	a.tradesMu.Lock()
	fifo, ok := a.trades[streamKey]
	if !ok {
		fifo = streamstate.NewTradeFIFO(a.dataMaxLen, false)
		a.trades[streamKey] = fifo
	}
	a.tradesMu.Unlock()

	tradeTimeNs, _ := strconv.ParseInt(wire.Time, 10, 64)
	tradeTimeMs := tradeTimeNs / 1_000_000

	trade := domain.Trade{
		Endpoint:      domain.EndpointTrades,
		Exchange:      domain.ExchangeKucoin,
		Symbol:        symbol,
		EventTime:     time.Now().UnixMilli(),
		TradeID:       wire.TradeID,
		Price:         wire.Price,
		Quantity:      wire.Size,
		TradeTime:     tradeTimeMs,
		TradeTimeDate: formatMillis(tradeTimeMs),
		SideOfTaker:   strings.ToUpper(wire.Side),
	}
	fifo.Push(trade)
	return trade, nil
}

func (a *Adapter) decodeTicker(venueSymbol string, raw json.RawMessage) (domain.Record, error) {
	var wire tickerWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeKucoin, Op: "ticker decode", Cause: err}
	}
	symbol, err := a.CanonicalizeSymbol(venueSymbol)
	if err != nil {
		symbol = venueSymbol
	}

	ticker := domain.Ticker{
		Endpoint:  domain.EndpointTicker,
		Exchange:  domain.ExchangeKucoin,
		Symbol:    symbol,
		LastPrice: wire.Price,
		Volume:    wire.Size,
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
