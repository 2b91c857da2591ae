package kucoin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccxgo/ccxgo/internal/domain"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := New(false, false)
	require.NoError(t, err)
	return a.(*Adapter)
}

func TestDecode_OrderBookSnapshot(t *testing.T) {
	a := newTestAdapter(t)
	frame := []byte(`{"type":"message","topic":"/spotMarket/level2Depth50:BTC-USDT","data":{"timestamp":123,"bids":[["100","1"]],"asks":[["101","1"]]}}`)
	rec, err := a.Decode(frame)
	require.NoError(t, err)
	book := rec.(domain.OrderBookSnapshot)
	assert.Equal(t, "snapshot", book.Type)
	assert.Equal(t, "BTC/USDT", book.Symbol)
	assert.Equal(t, int64(123), book.LastUpdateID)
}

func TestDecode_Kline(t *testing.T) {
	a := newTestAdapter(t)
	frame := []byte(`{"type":"message","topic":"/market/candles:BTC-USDT_1hour","data":{"symbol":"BTC-USDT","candles":["1000","1","2","3","0.5","10"],"time":2000}}`)
	rec, err := a.Decode(frame)
	require.NoError(t, err)
	bar := rec.(domain.KlineBar)
	assert.Equal(t, "1h", bar.Interval)
	assert.Equal(t, int64(1000000), bar.OpenTime)
	assert.Equal(t, int64(1000000+3_600_000-1), bar.CloseTime)
}

func TestDecode_Trade(t *testing.T) {
	a := newTestAdapter(t)
	frame := []byte(`{"type":"message","topic":"/market/match:BTC-USDT","data":{"symbol":"BTC-USDT","side":"buy","price":"100","size":"1","tradeId":"t1","time":"1000000000"}}`)
	rec, err := a.Decode(frame)
	require.NoError(t, err)
	trade := rec.(domain.Trade)
	assert.Equal(t, "BUY", trade.SideOfTaker)
	assert.Equal(t, int64(1000), trade.TradeTime)
}

func TestDecode_Ticker(t *testing.T) {
	a := newTestAdapter(t)
	frame := []byte(`{"type":"message","topic":"/market/ticker:BTC-USDT","data":{"price":"101","size":"1","bestBid":"100","bestBidSize":"2","bestAsk":"102","bestAskSize":"3"}}`)
	rec, err := a.Decode(frame)
	require.NoError(t, err)
	ticker := rec.(domain.Ticker)
	assert.Equal(t, "101", ticker.LastPrice)
}

func TestVenueInterval_RoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	for _, canonical := range []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "1w"} {
		venue, err := a.VenueInterval(canonical)
		require.NoError(t, err)
		back, err := a.CanonicalizeInterval(venue)
		require.NoError(t, err)
		assert.Equal(t, canonical, back)
	}
}

func TestValidateStreams_RejectsUnsupportedIntervals(t *testing.T) {
	a := newTestAdapter(t)
	err := a.ValidateStreams([]domain.StreamDescriptor{{Endpoint: domain.EndpointKline, Symbol: "BTC/USDT", Interval: "3d"}})
	require.Error(t, err, "kucoin has no 3d candle type")

	err = a.ValidateStreams([]domain.StreamDescriptor{{Endpoint: domain.EndpointKline, Symbol: "BTC/USDT", Interval: "1mo"}})
	require.Error(t, err, "kucoin has no 1mo candle type")

	err = a.ValidateStreams([]domain.StreamDescriptor{{Endpoint: domain.EndpointKline, Symbol: "BTC/USDT", Interval: "1h"}})
	require.NoError(t, err)
}

func TestWebsocketURL_MintsTokenFromBulletPublic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"token":"abc123","instanceServers":[{"endpoint":"wss://ws.kucoin.com/endpoint","pingInterval":18000,"pingTimeout":10000}]}}`))
	}))
	defer server.Close()

	a := newTestAdapter(t)
	a.apiURLOverride = server.URL

	url := a.WebsocketURL()
	assert.Equal(t, "wss://ws.kucoin.com/endpoint?token=abc123", url)
	assert.Equal(t, 18, a.pingIntervalS)
	assert.Equal(t, 10, a.pingTimeoutS)
}

func TestVenueSymbol_UsesDashSeparator(t *testing.T) {
	a := newTestAdapter(t)
	vs, err := a.VenueSymbol("BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USDT", vs)
}
