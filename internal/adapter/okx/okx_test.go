package okx

import (
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

func TestDecode_OrderBookSnapshotThenUpdate(t *testing.T) {
	a := newTestAdapter(t)

	snapshot := []byte(`{"arg":{"channel":"books","instId":"BTC-USDT"},"action":"snapshot","data":[{"bids":[["100","1"]],"asks":[["101","1"]],"ts":"1","seqId":1}]}`)
	rec, err := a.Decode(snapshot)
	require.NoError(t, err)
	book := rec.(domain.OrderBookSnapshot)
	assert.Equal(t, "snapshot", book.Type)
	assert.Equal(t, "BTC/USDT", book.Symbol)
	assert.Equal(t, int64(1), book.LastUpdateID)

	update := []byte(`{"arg":{"channel":"books","instId":"BTC-USDT"},"action":"update","data":[{"bids":[["100","0"]],"asks":[["102","2"]],"ts":"2","seqId":2}]}`)
	rec, err = a.Decode(update)
	require.NoError(t, err)
	book = rec.(domain.OrderBookSnapshot)
	assert.Equal(t, "update", book.Type)
	assert.Empty(t, book.Bids)
	assert.Equal(t, []domain.Level{{Price: "101", Size: "1"}, {Price: "102", Size: "2"}}, book.Asks)
	assert.Equal(t, int64(2), book.LastUpdateID)
	assert.Equal(t, int64(1), book.DiffUpdateID)
}

func TestDecode_Kline_PreservesIsConfirmed(t *testing.T) {
	a := newTestAdapter(t)

	frame := []byte(`{"arg":{"channel":"candle1H","instId":"BTC-USDT"},"data":[["1000","1","3","0.5","2","10","1","1","1"]]}`)
	rec, err := a.Decode(frame)
	require.NoError(t, err)
	bar := rec.(domain.KlineBar)
	assert.Equal(t, "1h", bar.Interval)
	assert.Equal(t, int64(1000), bar.OpenTime)
	assert.Equal(t, int64(1000+3_600_000-1), bar.CloseTime)
	assert.True(t, bar.IsClosed)

	confirmed, ok := Extra(bar)
	require.True(t, ok)
	assert.True(t, confirmed)
}

func TestDecode_Trade(t *testing.T) {
	a := newTestAdapter(t)
	frame := []byte(`{"arg":{"channel":"trades","instId":"BTC-USDT"},"data":[{"tradeId":"1","px":"100","sz":"1","side":"buy","ts":"1000"}]}`)
	rec, err := a.Decode(frame)
	require.NoError(t, err)
	trade := rec.(domain.Trade)
	assert.Equal(t, "BUY", trade.SideOfTaker)
	assert.Equal(t, int64(1000), trade.TradeTime)
}

func TestDecode_Ticker(t *testing.T) {
	a := newTestAdapter(t)
	frame := []byte(`{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[{"ts":"1","last":"101","open24h":"99","high24h":"102","low24h":"98","vol24h":"1000","volCcy24h":"100000"}]}`)
	rec, err := a.Decode(frame)
	require.NoError(t, err)
	ticker := rec.(domain.Ticker)
	assert.Equal(t, "101", ticker.LastPrice)
	assert.Equal(t, "99", ticker.OpenPrice)
}

func TestVenueInterval_RoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	for _, canonical := range domain.SupportedIntervals() {
		venue, err := a.VenueInterval(canonical)
		require.NoError(t, err, canonical)
		back, err := a.CanonicalizeInterval(venue)
		require.NoError(t, err, venue)
		assert.Equal(t, canonical, back)
	}
}

func TestValidateStreams_AcceptsFullIntervalSet(t *testing.T) {
	a := newTestAdapter(t)
	for _, interval := range []string{"1m", "3d", "1mo"} {
		err := a.ValidateStreams([]domain.StreamDescriptor{{Endpoint: domain.EndpointKline, Symbol: "BTC/USDT", Interval: interval}})
		assert.NoError(t, err, interval)
	}
	err := a.ValidateStreams([]domain.StreamDescriptor{{Endpoint: domain.EndpointKline, Symbol: "BTC/USDT", Interval: "7m"}})
	assert.Error(t, err)
}

func TestChannelArgs_SplitsPublicAndBusiness(t *testing.T) {
	streams := []domain.StreamDescriptor{
		{Endpoint: domain.EndpointOrderBook, Symbol: "BTC/USDT"},
		{Endpoint: domain.EndpointKline, Symbol: "BTC/USDT", Interval: "1m"},
		{Endpoint: domain.EndpointTrades, Symbol: "BTC/USDT"},
		{Endpoint: domain.EndpointTicker, Symbol: "BTC/USDT"},
	}
	public, business := channelArgs(streams)
	assert.Len(t, public, 3)
	assert.Len(t, business, 1)
	assert.Equal(t, "candle1m", business[0].Channel)
	assert.Equal(t, "BTC-USDT", business[0].InstID)
}

func TestVenueSymbol_UsesDashSeparator(t *testing.T) {
	a := newTestAdapter(t)
	vs, err := a.VenueSymbol("BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USDT", vs)
}
