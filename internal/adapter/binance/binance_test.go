package binance

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

// S1: Binance order-book resync then delta application.
func TestDecode_S1_OrderBookResyncThenDelta(t *testing.T) {
	a := newTestAdapter(t, `{"lastUpdateId":100,"bids":[["30000","1"]],"asks":[["30001","1"]]}`)

	snapshotFrame := []byte(`{"e":"depthUpdate","E":1,"s":"BTCUSDT","U":101,"u":102,"b":[["30000","0"]],"a":[["30002","2"]]}`)
	rec, err := a.Decode(snapshotFrame)
	require.NoError(t, err)

	book, ok := rec.(domain.OrderBookSnapshot)
	require.True(t, ok)
	assert.Empty(t, book.Bids)
	assert.Equal(t, []domain.Level{{Price: "30001", Size: "1"}, {Price: "30002", Size: "2"}}, book.Asks)
	assert.Equal(t, int64(102), book.LastUpdateID)
	assert.Equal(t, int64(1), book.DiffUpdateID)
	assert.Equal(t, "update", book.Type)
}

// S2: a later gap (U jumps by more than 1) triggers another resync.
func TestDecode_S2_GapTriggersResync(t *testing.T) {
	a := newTestAdapter(t, `{"lastUpdateId":100,"bids":[["30000","1"]],"asks":[["30001","1"]]}`)

	_, err := a.Decode([]byte(`{"e":"depthUpdate","E":1,"s":"BTCUSDT","U":101,"u":102,"b":[],"a":[]}`))
	require.NoError(t, err)

	rec, err := a.Decode([]byte(`{"e":"depthUpdate","E":1,"s":"BTCUSDT","U":200,"u":201,"b":[],"a":[]}`))
	require.NoError(t, err)
	book := rec.(domain.OrderBookSnapshot)
	assert.Equal(t, int64(201), book.LastUpdateID, "resync refetches the snapshot then applies the gapped delta")
}

func TestDecode_TradeAndKlineAndTicker(t *testing.T) {
	a := newTestAdapter(t, `{}`)

	tradeFrame := []byte(`{"e":"trade","E":100,"s":"BTCUSDT","t":555,"p":"30000.5","q":"0.01","T":99,"m":true}`)
	rec, err := a.Decode(tradeFrame)
	require.NoError(t, err)
	trade := rec.(domain.Trade)
	assert.Equal(t, "555", trade.TradeID)
	assert.Equal(t, "BUY", trade.SideOfTaker)

	klineFrame := []byte(`{"e":"kline","E":100,"s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"i":"1m","o":"1","c":"2","h":"3","l":"0.5","v":"10","x":false}}`)
	rec, err = a.Decode(klineFrame)
	require.NoError(t, err)
	bar := rec.(domain.KlineBar)
	assert.Equal(t, "1m", bar.Interval)
	assert.Equal(t, int64(1700000000000), bar.OpenTime)

	tickerFrame := []byte(`{"e":"24hrTicker","E":100,"s":"BTCUSDT","p":"10","P":"1.0","w":"30000","c":"30010","o":"30000","h":"31000","l":"29000","v":"123","q":"456","O":1,"C":2}`)
	rec, err = a.Decode(tickerFrame)
	require.NoError(t, err)
	ticker := rec.(domain.Ticker)
	assert.Equal(t, "30010", ticker.LastPrice)
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
	_, err := a.VenueSymbol("BTCUSDT")
	require.Error(t, err)

	venueSymbol, err := a.VenueSymbol("BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", venueSymbol)
}
