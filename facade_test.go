package ccxgo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccxgo/ccxgo/internal/domain"
)

func TestNew_RejectsUnsupportedExchange(t *testing.T) {
	_, err := New(domain.Exchange("nope"), []domain.StreamDescriptor{
		{Endpoint: domain.EndpointTicker, Symbol: "BTC/USDT"},
	})
	require.Error(t, err)
	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNew_RejectsEmptyStreamList(t *testing.T) {
	_, err := New(domain.ExchangeBinanceUS, nil)
	require.Error(t, err)
}

func TestNew_RejectsTooManyStreamsForVenue(t *testing.T) {
	streams := make([]domain.StreamDescriptor, 0, 11)
	for i := 0; i < 11; i++ {
		streams = append(streams, domain.StreamDescriptor{Endpoint: domain.EndpointTicker, Symbol: "BTC/USDT"})
	}
	_, err := New(domain.ExchangeBybit, streams)
	require.Error(t, err)
}

func TestNew_AppliesFunctionalOptions(t *testing.T) {
	f, err := New(domain.ExchangeBinanceUS,
		[]domain.StreamDescriptor{{Endpoint: domain.EndpointTicker, Symbol: "BTC/USDT"}},
		WithResultMaxLen(3),
		WithDataMaxLen(10),
		WithTestmode(true),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, f.params.ResultMaxLen)
	assert.Equal(t, 10, f.params.DataMaxLen)
	assert.True(t, f.params.Testmode)
}

func TestGetCurrentData_MissingKeyReturnsFalse(t *testing.T) {
	f, err := New(domain.ExchangeBinanceUS,
		[]domain.StreamDescriptor{{Endpoint: domain.EndpointTicker, Symbol: "BTC/USDT"}},
	)
	require.NoError(t, err)
	rec, ok := f.GetCurrentData(domain.EndpointTicker, "ETH/USDT", "")
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestGetCurrentData_DeclaredButEmptyBeforeStart(t *testing.T) {
	f, err := New(domain.ExchangeBinanceUS,
		[]domain.StreamDescriptor{{Endpoint: domain.EndpointTicker, Symbol: "BTC/USDT"}},
	)
	require.NoError(t, err)
	// Declare happens in Start, so before Start the key is not yet present.
	_, ok := f.GetCurrentData(domain.EndpointTicker, "BTC/USDT", "")
	assert.False(t, ok)
}

func TestStop_IdempotentWithoutStart(t *testing.T) {
	f, err := New(domain.ExchangeBinanceUS,
		[]domain.StreamDescriptor{{Endpoint: domain.EndpointTicker, Symbol: "BTC/USDT"}},
	)
	require.NoError(t, err)
	assert.NoError(t, f.Stop(time.Second))
	assert.NoError(t, f.Stop(time.Second))
}

func TestIsConnectionsOk_TrueDuringWarmup(t *testing.T) {
	f, err := New(domain.ExchangeBinanceUS,
		[]domain.StreamDescriptor{{Endpoint: domain.EndpointTicker, Symbol: "BTC/USDT"}},
	)
	require.NoError(t, err)

	key := f.adapter.StreamKey(domain.StreamDescriptor{Endpoint: domain.EndpointTicker, Symbol: "BTC/USDT"})
	f.store.Declare(key)
	f.startTime = time.Now()

	assert.True(t, f.IsConnectionsOk())
}

func TestIsConnectionsOk_FalseWhenStaleKlineStream(t *testing.T) {
	f, err := New(domain.ExchangeBinanceUS,
		[]domain.StreamDescriptor{{Endpoint: domain.EndpointKline, Symbol: "BTC/USDT", Interval: "1m"}},
	)
	require.NoError(t, err)

	// No lastSeen entry recorded and a long-past start_time: the 1m
	// kline stream's 5*interval staleness bound (5m) is exceeded.
	f.startTime = time.Now().Add(-2 * time.Hour)

	assert.False(t, f.IsConnectionsOk())
}

func TestIsConnectionsOk_TrueWhenRecentlySeen(t *testing.T) {
	f, err := New(domain.ExchangeBinanceUS,
		[]domain.StreamDescriptor{{Endpoint: domain.EndpointOrderBook, Symbol: "BTC/USDT"}},
	)
	require.NoError(t, err)

	d := domain.StreamDescriptor{Endpoint: domain.EndpointOrderBook, Symbol: "BTC/USDT"}
	key := f.adapter.StreamKey(d)
	f.startTime = time.Now().Add(-2 * time.Hour)
	f.lastSeen[key] = time.Now()

	assert.True(t, f.IsConnectionsOk())
}

func TestSplitInterval(t *testing.T) {
	cases := map[string]struct {
		n    int
		unit string
	}{
		"1m": {1, "m"}, "15m": {15, "m"}, "4h": {4, "h"}, "1d": {1, "d"}, "1w": {1, "w"}, "1mo": {1, "mo"},
	}
	for in, want := range cases {
		n, unit := splitInterval(in)
		assert.Equal(t, want.n, n, in)
		assert.Equal(t, want.unit, unit, in)
	}
}
