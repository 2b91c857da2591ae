package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccxgo/ccxgo/internal/domain"
)

func validStream() domain.StreamDescriptor {
	return domain.StreamDescriptor{Endpoint: domain.EndpointTrades, Symbol: "BTC/USDT"}
}

func TestValidate_Defaults(t *testing.T) {
	p, err := Validate(Input{
		Exchange: domain.ExchangeBinance,
		Streams:  []domain.StreamDescriptor{validStream()},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultResultMaxLen, p.ResultMaxLen)
	assert.Equal(t, DefaultDataMaxLen, p.DataMaxLen)
	assert.Equal(t, DefaultTradingType, p.TradingType)
}

func TestValidate_UnsupportedExchange(t *testing.T) {
	_, err := Validate(Input{
		Exchange: "notreal",
		Streams:  []domain.StreamDescriptor{validStream()},
	})
	require.Error(t, err)
	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidate_StreamCeilingPerVenue(t *testing.T) {
	streams := make([]domain.StreamDescriptor, 11)
	for i := range streams {
		streams[i] = domain.StreamDescriptor{Endpoint: domain.EndpointTrades, Symbol: "SYM" + string(rune('A'+i)) + "/USDT"}
	}

	_, err := Validate(Input{Exchange: domain.ExchangeBybit, Streams: streams})
	require.Error(t, err, "bybit's ceiling of 10 must reject an 11th stream")
}

func TestValidate_DataMaxLenClampedToVenueCeiling(t *testing.T) {
	p, err := Validate(Input{
		Exchange:     domain.ExchangeBinance,
		Streams:      []domain.StreamDescriptor{validStream()},
		DataMaxLen:   2500,
		ResultMaxLen: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 400, p.DataMaxLen, "binance's data_max_len ceiling is 400, not the global 2500")
}

func TestValidate_ResultMaxLenMustNotExceedDataMaxLen(t *testing.T) {
	_, err := Validate(Input{
		Exchange:     domain.ExchangeBinance,
		Streams:      []domain.StreamDescriptor{validStream()},
		DataMaxLen:   10,
		ResultMaxLen: 11,
	})
	require.Error(t, err)
}

func TestValidate_KlineRequiresInterval(t *testing.T) {
	_, err := Validate(Input{
		Exchange: domain.ExchangeBinance,
		Streams:  []domain.StreamDescriptor{{Endpoint: domain.EndpointKline, Symbol: "BTC/USDT"}},
	})
	require.Error(t, err)
}

func TestValidate_NonKlineRejectsInterval(t *testing.T) {
	_, err := Validate(Input{
		Exchange: domain.ExchangeBinance,
		Streams:  []domain.StreamDescriptor{{Endpoint: domain.EndpointTrades, Symbol: "BTC/USDT", Interval: "1m"}},
	})
	require.Error(t, err)
}

func TestValidate_DuplicateStreamKeyRejected(t *testing.T) {
	_, err := Validate(Input{
		Exchange: domain.ExchangeBinance,
		Streams: []domain.StreamDescriptor{
			{Endpoint: domain.EndpointTrades, Symbol: "BTC/USDT"},
			{Endpoint: domain.EndpointTrades, Symbol: "btc/usdt"},
		},
	})
	require.Error(t, err)
}

func TestValidate_RejectsNonSpotTradingType(t *testing.T) {
	_, err := Validate(Input{
		Exchange:    domain.ExchangeBinance,
		Streams:     []domain.StreamDescriptor{validStream()},
		TradingType: "MARGIN",
	})
	require.Error(t, err)
}
