// Package domain holds the canonical, venue-neutral data model shared by
// every adapter and by the facade's snapshot store.
package domain

import "strings"

// Endpoint identifies one of the four supported market-data domains.
type Endpoint string

const (
	EndpointOrderBook Endpoint = "order_book"
	EndpointKline      Endpoint = "kline"
	EndpointTrades     Endpoint = "trades"
	EndpointTicker     Endpoint = "ticker"
)

// Exchange identifies a supported venue.
type Exchange string

const (
	ExchangeBinance   Exchange = "binance"
	ExchangeBinanceUS Exchange = "binanceus"
	ExchangeBybit     Exchange = "bybit"
	ExchangeBingx     Exchange = "bingx"
	ExchangeKucoin    Exchange = "kucoin"
	ExchangeOKX       Exchange = "okx"
)

// SupportedExchanges lists every venue this module can connect to.
func SupportedExchanges() []Exchange {
	return []Exchange{ExchangeBinance, ExchangeBinanceUS, ExchangeBybit, ExchangeBingx, ExchangeKucoin, ExchangeOKX}
}

// SupportedEndpoints lists every market-data domain this module normalizes.
func SupportedEndpoints() []Endpoint {
	return []Endpoint{EndpointOrderBook, EndpointKline, EndpointTrades, EndpointTicker}
}

// SupportedIntervals lists every canonical kline interval a venue subset may use.
func SupportedIntervals() []string {
	return []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w", "1mo"}
}

// StreamDescriptor names one logical data channel a consumer wants to observe.
type StreamDescriptor struct {
	Endpoint Endpoint
	Symbol   string // canonical "BASE/QUOTE", uppercase
	Interval string // only meaningful for EndpointKline
}

// StreamKey returns the deterministic key under which this descriptor's
// data is stored: "stream_<endpoint>_<symbolNoSlashLower>_<intervalOrNone>".
func StreamKey(d StreamDescriptor) string {
	symbol := strings.ToLower(strings.ReplaceAll(d.Symbol, "/", ""))
	interval := d.Interval
	if interval == "" {
		interval = "none"
	}
	return "stream_" + string(d.Endpoint) + "_" + symbol + "_" + interval
}

// Level is one price/size pair, preserving venue decimal precision as strings.
type Level struct {
	Price string
	Size  string
}

// OrderBookSnapshot is the canonical order-book record (spec.md §3).
type OrderBookSnapshot struct {
	Endpoint     Endpoint
	Exchange     Exchange
	Symbol       string
	LastUpdateID int64
	DiffUpdateID int64
	Bids         []Level
	Asks         []Level
	Type         string // "snapshot" | "update"
	Timestamp    float64
	Datetime     string
}

// KlineBar is the canonical kline/candlestick record.
type KlineBar struct {
	Endpoint      Endpoint
	Exchange      Exchange
	Symbol        string
	Interval      string
	LastUpdateID  int64
	OpenTime      int64
	CloseTime     int64
	OpenTimeDate  string
	CloseTimeDate string
	Open          string
	Close         string
	High          string
	Low           string
	Volume        string
	IsClosed      bool
}

// Trade is the canonical trade-tape record.
type Trade struct {
	Endpoint      Endpoint
	Exchange      Exchange
	Symbol        string
	EventTime     int64
	TradeID       string
	Price         string
	Quantity      string
	TradeTime     int64
	TradeTimeDate string
	SideOfTaker   string // "BUY" | "SELL"
}

// Ticker is the canonical 24h rolling-statistics record; only the most
// recent message for a stream key is ever retained (spec.md §4.4.5).
type Ticker struct {
	Endpoint           Endpoint
	Exchange           Exchange
	Symbol             string
	PriceChange        string
	PriceChangePercent string
	WeightedAvgPrice   string
	LastPrice          string
	OpenPrice          string
	HighPrice          string
	LowPrice           string
	Volume             string
	QuoteVolume        string
	OpenTime           int64
	CloseTime          int64
}

// Record is implemented by every canonical record type and lets the store
// hold any of them behind one interface.
type Record interface {
	recordMarker()
}

func (OrderBookSnapshot) recordMarker() {}
func (KlineBar) recordMarker()          {}
func (Trade) recordMarker()             {}
func (Ticker) recordMarker()            {}

// DescriptorOf derives the stream descriptor a decoded record belongs to,
// so the facade can resolve its store key without the adapter having to
// return one separately.
func DescriptorOf(rec Record) StreamDescriptor {
	switch r := rec.(type) {
	case OrderBookSnapshot:
		return StreamDescriptor{Endpoint: r.Endpoint, Symbol: r.Symbol}
	case KlineBar:
		return StreamDescriptor{Endpoint: r.Endpoint, Symbol: r.Symbol, Interval: r.Interval}
	case Trade:
		return StreamDescriptor{Endpoint: r.Endpoint, Symbol: r.Symbol}
	case Ticker:
		return StreamDescriptor{Endpoint: r.Endpoint, Symbol: r.Symbol}
	default:
		return StreamDescriptor{}
	}
}

// ExchangeInfo is the normalized symbol catalog returned by an adapter's
// REST helper, cached with a 7200s TTL (spec.md §4.3.2).
type ExchangeInfo struct {
	Exchange Exchange
	Symbols  []SymbolInfo
}

// SymbolInfo describes one tradeable instrument in canonical form.
type SymbolInfo struct {
	Symbol     string // canonical "BASE/QUOTE"
	VenueSymbol string
	Status     string
}
