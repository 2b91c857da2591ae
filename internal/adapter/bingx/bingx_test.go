package bingx

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

func TestDecode_OrderBookSnapshotReversesAsks(t *testing.T) {
	a := newTestAdapter(t)

	frame := []byte(`{"dataType":"BTC-USDT@depth100","data":{"bids":[["100","1"]],"asks":[["103","3"],["102","2"],["101","1"]]}}`)
	rec, err := a.Decode(frame)
	require.NoError(t, err)
	book := rec.(domain.OrderBookSnapshot)
	assert.Equal(t, "snapshot", book.Type)
	assert.Equal(t, []domain.Level{{Price: "101", Size: "1"}, {Price: "102", Size: "2"}, {Price: "103", Size: "3"}}, book.Asks)
}

func TestDecode_KlineOnlyOneMinute(t *testing.T) {
	a := newTestAdapter(t)
	frame := []byte(`{"code":0,"dataType":"BTC-USDT@kline_1min","data":{"E":100,"K":{"t":1,"T":2,"o":"1","c":"2","h":"3","l":"0.5","v":"10"}}}`)
	rec, err := a.Decode(frame)
	require.NoError(t, err)
	bar := rec.(domain.KlineBar)
	assert.Equal(t, "1m", bar.Interval)
}

func TestDecode_TradesDedupeByTradeID(t *testing.T) {
	a := newTestAdapter(t)
	frame := []byte(`{"code":0,"dataType":"BTC-USDT@trades","timestamp":1,"data":[{"id":1,"price":"100","qty":"0.1","time":99,"buyerMaker":false}]}`)
	rec, err := a.Decode(frame)
	require.NoError(t, err)
	trade := rec.(domain.Trade)
	assert.Equal(t, "BUY", trade.SideOfTaker)

	streamKey := domain.StreamKey(domain.StreamDescriptor{Endpoint: domain.EndpointTrades, Symbol: "BTC/USDT"})
	assert.Equal(t, 1, a.trades[streamKey].Len())

	_, err = a.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, 1, a.trades[streamKey].Len(), "duplicate trade_id must not grow the FIFO")
}

func TestDecode_Ticker(t *testing.T) {
	a := newTestAdapter(t)
	frame := []byte(`{"code":0,"dataType":"BTC-USDT@ticker","timestamp":1,"data":[{"lastPrice":"101","openPrice":"100","highPrice":"102","lowPrice":"99","volume":"10","quoteVolume":"1000"}]}`)
	rec, err := a.Decode(frame)
	require.NoError(t, err)
	ticker := rec.(domain.Ticker)
	assert.Equal(t, "101", ticker.LastPrice)
}

func TestValidateStreams_RejectsNonOneMinuteKline(t *testing.T) {
	a := newTestAdapter(t)
	err := a.ValidateStreams([]domain.StreamDescriptor{{Endpoint: domain.EndpointKline, Symbol: "BTC/USDT", Interval: "5m"}})
	require.Error(t, err)

	err = a.ValidateStreams([]domain.StreamDescriptor{{Endpoint: domain.EndpointKline, Symbol: "BTC/USDT", Interval: "1m"}})
	require.NoError(t, err)
}

func TestVenueSymbol_UsesDashSeparator(t *testing.T) {
	a := newTestAdapter(t)
	vs, err := a.VenueSymbol("BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USDT", vs)
}
