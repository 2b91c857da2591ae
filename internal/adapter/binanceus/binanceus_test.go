package binanceus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccxgo/ccxgo/internal/domain"
)

func newTestAdapter(t *testing.T, depthBody string) *Adapter {
	t.Helper()
	a, err := New(false, false)
	require.NoError(t, err)
	adapter := a.(*Adapter)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(depthBody))
	}))
	t.Cleanup(server.Close)
	adapter.apiURLOverride = server.URL
	return adapter
}

func TestDecode_OrderBookResyncThenDelta(t *testing.T) {
	a := newTestAdapter(t, `{"lastUpdateId":500,"bids":[["100","2"]],"asks":[["101","2"]]}`)

	frame := []byte(`{"e":"depthUpdate","E":1,"s":"BTCUSD","U":501,"u":502,"b":[["100","0"]],"a":[["102","3"]]}`)
	rec, err := a.Decode(frame)
	require.NoError(t, err)

	book, ok := rec.(domain.OrderBookSnapshot)
	require.True(t, ok)
	assert.Empty(t, book.Bids)
	assert.Equal(t, []domain.Level{{Price: "101", Size: "2"}, {Price: "102", Size: "3"}}, book.Asks)
	assert.Equal(t, int64(502), book.LastUpdateID)
	assert.Equal(t, int64(1), book.DiffUpdateID)
}

func TestDecode_GapTriggersResync(t *testing.T) {
	a := newTestAdapter(t, `{"lastUpdateId":500,"bids":[["100","2"]],"asks":[["101","2"]]}`)

	_, err := a.Decode([]byte(`{"e":"depthUpdate","E":1,"s":"BTCUSD","U":501,"u":502,"b":[],"a":[]}`))
	require.NoError(t, err)

	rec, err := a.Decode([]byte(`{"e":"depthUpdate","E":1,"s":"BTCUSD","U":900,"u":901,"b":[],"a":[]}`))
	require.NoError(t, err)
	book := rec.(domain.OrderBookSnapshot)
	assert.Equal(t, int64(901), book.LastUpdateID)
}

func TestDecode_TradeAndKlineAndTicker(t *testing.T) {
	a := newTestAdapter(t, `{}`)

	tradeFrame := []byte(`{"e":"trade","E":100,"s":"BTCUSD","t":777,"p":"101.5","q":"0.2","T":99,"m":false}`)
	rec, err := a.Decode(tradeFrame)
	require.NoError(t, err)
	trade := rec.(domain.Trade)
	assert.Equal(t, "777", trade.TradeID)
	assert.Equal(t, "SELL", trade.SideOfTaker)

	klineFrame := []byte(`{"e":"kline","E":100,"s":"BTCUSD","k":{"t":1700000000000,"T":1700000059999,"i":"5m","o":"1","c":"2","h":"3","l":"0.5","v":"10","x":true}}`)
	rec, err = a.Decode(klineFrame)
	require.NoError(t, err)
	bar := rec.(domain.KlineBar)
	assert.Equal(t, "5m", bar.Interval)
	assert.True(t, bar.IsClosed)

	tickerFrame := []byte(`{"e":"24hrTicker","E":100,"s":"BTCUSD","p":"1","P":"0.5","w":"100","c":"101","o":"100","h":"105","l":"95","v":"50","q":"5000","O":1,"C":2}`)
	rec, err = a.Decode(tickerFrame)
	require.NoError(t, err)
	ticker := rec.(domain.Ticker)
	assert.Equal(t, "101", ticker.LastPrice)
}

func TestCanonicalizeInterval_MonthRoundTrip(t *testing.T) {
	a := newTestAdapter(t, `{}`)

	venue, err := a.VenueInterval("1mo")
	require.NoError(t, err)
	assert.Equal(t, "1M", venue)

	canonical, err := a.CanonicalizeInterval(venue)
	require.NoError(t, err)
	assert.Equal(t, "1mo", canonical)
}

func TestVenueSymbol_RejectsNonCanonical(t *testing.T) {
	a := newTestAdapter(t, `{}`)
	_, err := a.VenueSymbol("BTCUSD")
	require.Error(t, err)

	venueSymbol, err := a.VenueSymbol("BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD", venueSymbol)
}
