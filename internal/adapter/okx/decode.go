package okx

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ccxgo/ccxgo/internal/bookutil"
	"github.com/ccxgo/ccxgo/internal/domain"
	"github.com/ccxgo/ccxgo/internal/streamstate"
)

type wireArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type wireEnvelope struct {
	Arg    wireArg         `json:"arg"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
	Event  string          `json:"event"`
}

type orderBookEntryWire struct {
	Bids  [][]string `json:"bids"`
	Asks  [][]string `json:"asks"`
	TS    string     `json:"ts"`
	SeqID int64      `json:"seqId"`
}

type tradeEntryWire struct {
	TradeID string `json:"tradeId"`
	Px      string `json:"px"`
	Sz      string `json:"sz"`
	Side    string `json:"side"`
	TS      string `json:"ts"`
}

type tickerEntryWire struct {
	TS        string `json:"ts"`
	Last      string `json:"last"`
	LastSz    string `json:"lastSz"`
	Open24h   string `json:"open24h"`
	High24h   string `json:"high24h"`
	Low24h    string `json:"low24h"`
	Vol24h    string `json:"vol24h"`
	VolCcy24h string `json:"volCcy24h"`
}

// confirmRegistry records the is_confirmed flag that OKX candle rows
// carry (manage_websocket_message_kline's data[i][8]; decodeKline also
// copies it into KlineBar.IsClosed), keyed by stream+open_time so Extra
// can recover it for a bar returned from Decode. Entries are never
// removed.
var confirmRegistry sync.Map

func confirmKey(bar domain.KlineBar) string {
	return domain.StreamKey(domain.StreamDescriptor{Endpoint: bar.Endpoint, Symbol: bar.Symbol, Interval: bar.Interval}) +
		"|" + strconv.FormatInt(bar.OpenTime, 10)
}

// Extra recovers OKX's is_confirmed kline flag for a bar returned from
// Decode. ok is false if no such bar was ever decoded.
func Extra(bar domain.KlineBar) (confirmed bool, ok bool) {
	v, found := confirmRegistry.Load(confirmKey(bar))
	if !found {
		return false, false
	}
	return v.(bool), true
}

// Decode dispatches on the relay-forwarded envelope's arg.channel,
// grounded on manage_websocket_message. Plain "ping"/"pong" text frames
// never reach here (runUpstream filters them before relay.Publish), and
// subscribe-ack "event" frames have no arg.channel so they fall through
// to the default case.
func (a *Adapter) Decode(raw []byte) (domain.Record, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeOKX, Op: "decode", Cause: err}
	}
	if env.Arg.Channel == "" || len(env.Data) == 0 {
		return nil, nil
	}

	switch {
	case env.Arg.Channel == "books":
		return a.decodeOrderBook(env)
	case strings.HasPrefix(env.Arg.Channel, "candle"):
		return a.decodeKline(env)
	case env.Arg.Channel == "trades":
		return a.decodeTrade(env)
	case env.Arg.Channel == "tickers":
		return a.decodeTicker(env)
	default:
		return nil, nil
	}
}

func (a *Adapter) decodeOrderBook(env wireEnvelope) (domain.Record, error) {
	var entries []orderBookEntryWire
	if err := json.Unmarshal(env.Data, &entries); err != nil || len(entries) == 0 {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeOKX, Op: "order book decode", Cause: err}
	}
	entry := entries[0]

	symbol, err := a.CanonicalizeSymbol(env.Arg.InstID)
	if err != nil {
		symbol = env.Arg.InstID
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
	if !state.initialized || env.Action == "snapshot" {
		state.bids = toLevels(entry.Bids)
		state.asks = toLevels(entry.Asks)
	} else {
		diffUpdateID = entry.SeqID - state.seqID
		state.bids = bookutil.MergeLevels(state.bids, toLevels(entry.Bids), true)
		state.asks = bookutil.MergeLevels(state.asks, toLevels(entry.Asks), false)
		dataType = "update"
	}
	state.seqID = entry.SeqID
	state.initialized = true

	now := time.Now().UTC()
	return domain.OrderBookSnapshot{
		Endpoint:     domain.EndpointOrderBook,
		Exchange:     domain.ExchangeOKX,
		Symbol:       symbol,
		LastUpdateID: state.seqID,
		DiffUpdateID: diffUpdateID,
		Bids:         bookutil.Truncate(state.bids, a.resultMaxLen),
		Asks:         bookutil.Truncate(state.asks, a.resultMaxLen),
		Type:         dataType,
		Timestamp:    float64(now.UnixNano()) / 1e9,
		Datetime:     now.Format("2006-01-02 15:04:05.000000"),
	}, nil
}

// decodeKline reads the venue interval out of the channel name
// (arg.channel == "candle"+venueInterval) and each 9-element row
// [ts,open,high,low,close,vol,volCcy,volCcyQuote,confirm], grounded on
// manage_websocket_message_kline. Only the last row of a batch is
// returned, matching every other adapter's one-bar-per-Decode contract;
// earlier rows in the same frame still update the shared series.
func (a *Adapter) decodeKline(env wireEnvelope) (domain.Record, error) {
	var rows [][]string
	if err := json.Unmarshal(env.Data, &rows); err != nil || len(rows) == 0 {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeOKX, Op: "kline decode", Cause: err}
	}

	venueInt := strings.TrimPrefix(env.Arg.Channel, "candle")
	interval, err := canonicalizeInterval(venueInt)
	if err != nil {
		interval = venueInt
	}

	symbol, err := a.CanonicalizeSymbol(env.Arg.InstID)
	if err != nil {
		symbol = env.Arg.InstID
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
	for _, row := range rows {
		if len(row) < 9 {
			continue
		}
		openTime, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		closeTime := openTime + intervalDurationMs(interval) - 1
		confirmed := row[8] == "1"

		bar := domain.KlineBar{
			Endpoint:      domain.EndpointKline,
			Exchange:      domain.ExchangeOKX,
			Symbol:        symbol,
			Interval:      interval,
			LastUpdateID:  openTime,
			OpenTime:      openTime,
			CloseTime:     closeTime,
			OpenTimeDate:  formatMillis(openTime),
			CloseTimeDate: formatMillis(closeTime),
			Open:          row[1],
			Close:         row[4],
			High:          row[2],
			Low:           row[3],
			Volume:        row[5],
			IsClosed:      confirmed,
		}
		series.Put(bar)
		confirmRegistry.Store(confirmKey(bar), confirmed)
		last = bar
	}
	return last, nil
}

func (a *Adapter) decodeTrade(env wireEnvelope) (domain.Record, error) {
	var entries []tradeEntryWire
	if err := json.Unmarshal(env.Data, &entries); err != nil || len(entries) == 0 {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeOKX, Op: "trade decode", Cause: err}
	}

	symbol, err := a.CanonicalizeSymbol(env.Arg.InstID)
	if err != nil {
		symbol = env.Arg.InstID
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
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		tradeTimeMs, _ := strconv.ParseInt(e.TS, 10, 64)
		trade := domain.Trade{
			Endpoint:      domain.EndpointTrades,
			Exchange:      domain.ExchangeOKX,
			Symbol:        symbol,
			EventTime:     time.Now().UnixMilli(),
			TradeID:       e.TradeID,
			Price:         e.Px,
			Quantity:      e.Sz,
			TradeTime:     tradeTimeMs,
			TradeTimeDate: formatMillis(tradeTimeMs),
			SideOfTaker:   strings.ToUpper(e.Side),
		}
		fifo.Push(trade)
		last = trade
	}
	return last, nil
}

func (a *Adapter) decodeTicker(env wireEnvelope) (domain.Record, error) {
	var entries []tickerEntryWire
	if err := json.Unmarshal(env.Data, &entries); err != nil || len(entries) == 0 {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeOKX, Op: "ticker decode", Cause: err}
	}
	entry := entries[0]

	symbol, err := a.CanonicalizeSymbol(env.Arg.InstID)
	if err != nil {
		symbol = env.Arg.InstID
	}

	ticker := domain.Ticker{
		Endpoint:    domain.EndpointTicker,
		Exchange:    domain.ExchangeOKX,
		Symbol:      symbol,
		LastPrice:   entry.Last,
		OpenPrice:   entry.Open24h,
		HighPrice:   entry.High24h,
		LowPrice:    entry.Low24h,
		Volume:      entry.Vol24h,
		QuoteVolume: entry.VolCcy24h,
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
		if len(pair) < 2 {
			continue
		}
		out = append(out, domain.Level{Price: pair[0], Size: pair[1]})
	}
	return out
}

// intervalDurationMs returns the bar width in milliseconds for a
// canonical interval, grounded on manage_websocket_message_kline's
// __delta_time.
func intervalDurationMs(canonical string) int64 {
	if canonical == "" {
		return 60_000
	}
	unit := canonical[len(canonical)-1]
	numPart := canonical[:len(canonical)-1]
	if strings.HasSuffix(canonical, "mo") {
		numPart = strings.TrimSuffix(canonical, "mo")
		n, err := strconv.ParseInt(numPart, 10, 64)
		if err != nil {
			return 60_000
		}
		return n * 30 * 86_400_000
	}
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 60_000
	}
	switch unit {
	case 'm':
		return n * 60_000
	case 'h':
		return n * 3_600_000
	case 'd':
		return n * 86_400_000
	case 'w':
		return n * 7 * 86_400_000
	default:
		return 60_000
	}
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
