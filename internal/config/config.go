// Package config validates and normalizes the arguments a Facade is
// constructed with (spec.md §4.1): supported exchange/endpoint/interval
// checks, per-venue stream-count ceilings, and data_max_len/result_max_len
// clamping. Grounded on the teacher's internal/data/facade/facade.go
// HotConfig/WarmConfig validation block, generalized from one venue's
// fixed bounds to a per-venue ceiling table.
package config

import (
	"fmt"

	"github.com/ccxgo/ccxgo/internal/domain"
)

// MaxDataLen is the hard ceiling data_max_len is clamped into before any
// venue-specific ceiling is applied (spec.md §3 invariant 3).
const MaxDataLen = 2500

// DefaultResultMaxLen and DefaultDataMaxLen match spec.md §4.1's defaults.
const (
	DefaultResultMaxLen = 5
	DefaultDataMaxLen   = 2500
	DefaultTradingType  = "SPOT"
)

// streamCeiling is the maximum number of concurrently subscribed streams
// per venue (spec.md §4.1).
var streamCeiling = map[domain.Exchange]int{
	domain.ExchangeBinance:   1024,
	domain.ExchangeBinanceUS: 1024,
	domain.ExchangeBybit:     10,
	domain.ExchangeBingx:     1024,
	domain.ExchangeKucoin:    100,
	domain.ExchangeOKX:       480,
}

// dataLenCeiling overrides MaxDataLen for venues with a tighter retention
// ceiling (spec.md §3 invariant 3: "2500 typical; 400 for some"). Binance
// is the one venue with a narrower per-stream retention budget.
var dataLenCeiling = map[domain.Exchange]int{
	domain.ExchangeBinance: 400,
}

// Params is the fully-validated, normalized facade configuration.
type Params struct {
	Exchange     domain.Exchange
	Streams      []domain.StreamDescriptor
	TradingType  string
	Testmode     bool
	ResultMaxLen int
	DataMaxLen   int
	Debug        bool
}

// Input is the raw, as-supplied constructor configuration.
type Input struct {
	Exchange     domain.Exchange
	Streams      []domain.StreamDescriptor
	TradingType  string
	Testmode     bool
	ResultMaxLen int
	DataMaxLen   int
	Debug        bool
}

// StreamCeiling returns the venue's maximum concurrent stream count.
func StreamCeiling(exchange domain.Exchange) int {
	if v, ok := streamCeiling[exchange]; ok {
		return v
	}
	return MaxDataLen
}

// dataLenCeilingFor returns the venue's data_max_len ceiling.
func dataLenCeilingFor(exchange domain.Exchange) int {
	if v, ok := dataLenCeiling[exchange]; ok {
		return v
	}
	return MaxDataLen
}

var validEndpoints = map[domain.Endpoint]bool{
	domain.EndpointOrderBook: true,
	domain.EndpointKline:     true,
	domain.EndpointTrades:    true,
	domain.EndpointTicker:    true,
}

// Validate checks in and returns normalized Params, or a *domain.ConfigError.
func Validate(in Input) (Params, error) {
	p := Params{
		Exchange:     in.Exchange,
		Streams:      in.Streams,
		TradingType:  in.TradingType,
		Testmode:     in.Testmode,
		ResultMaxLen: in.ResultMaxLen,
		DataMaxLen:   in.DataMaxLen,
		Debug:        in.Debug,
	}

	if p.TradingType == "" {
		p.TradingType = DefaultTradingType
	}
	if p.TradingType != "SPOT" {
		return Params{}, domain.NewConfigError(fmt.Sprintf("unsupported trading_type %q, only SPOT is supported", p.TradingType), nil)
	}

	if !isSupportedExchange(p.Exchange) {
		return Params{}, domain.NewConfigError(fmt.Sprintf("unsupported exchange %q", p.Exchange), nil)
	}

	if p.ResultMaxLen == 0 {
		p.ResultMaxLen = DefaultResultMaxLen
	}
	if p.DataMaxLen == 0 {
		p.DataMaxLen = DefaultDataMaxLen
	}

	ceiling := dataLenCeilingFor(p.Exchange)
	if p.DataMaxLen < 1 {
		p.DataMaxLen = 1
	}
	if p.DataMaxLen > ceiling {
		p.DataMaxLen = ceiling
	}

	if p.ResultMaxLen < 1 {
		return Params{}, domain.NewConfigError(fmt.Sprintf("result_max_len must be >= 1, got %d", p.ResultMaxLen), nil)
	}
	if p.ResultMaxLen > p.DataMaxLen {
		return Params{}, domain.NewConfigError(
			fmt.Sprintf("result_max_len (%d) must be <= data_max_len (%d)", p.ResultMaxLen, p.DataMaxLen), nil)
	}

	if len(p.Streams) == 0 {
		return Params{}, domain.NewConfigError("at least one stream descriptor is required", nil)
	}

	maxStreams := StreamCeiling(p.Exchange)
	if len(p.Streams) > maxStreams {
		return Params{}, domain.NewConfigError(
			fmt.Sprintf("%s supports at most %d concurrent streams, got %d", p.Exchange, maxStreams, len(p.Streams)), nil)
	}

	seen := make(map[string]bool, len(p.Streams))
	for _, d := range p.Streams {
		if !validEndpoints[d.Endpoint] {
			return Params{}, domain.NewConfigError(fmt.Sprintf("unsupported endpoint %q", d.Endpoint), nil)
		}
		if d.Symbol == "" {
			return Params{}, domain.NewConfigError("stream descriptor is missing a symbol", nil)
		}
		if d.Endpoint == domain.EndpointKline && d.Interval == "" {
			return Params{}, domain.NewConfigError(fmt.Sprintf("kline stream for %s is missing an interval", d.Symbol), nil)
		}
		if d.Endpoint != domain.EndpointKline && d.Interval != "" {
			return Params{}, domain.NewConfigError(fmt.Sprintf("interval is only meaningful for kline streams, got %q for endpoint %q", d.Interval, d.Endpoint), nil)
		}

		key := domain.StreamKey(d)
		if seen[key] {
			return Params{}, domain.NewConfigError(fmt.Sprintf("duplicate stream descriptor resolves to key %q", key), nil)
		}
		seen[key] = true
	}

	return p, nil
}

func isSupportedExchange(e domain.Exchange) bool {
	for _, s := range domain.SupportedExchanges() {
		if s == e {
			return true
		}
	}
	return false
}
