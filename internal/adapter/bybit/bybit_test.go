package bybit

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

func TestDecode_OrderBookSnapshotThenDelta(t *testing.T) {
	a := newTestAdapter(t)

	snapshot := []byte(`{"topic":"orderbook.50.BTCUSDT","type":"snapshot","ts":1,"data":{"u":1,"seq":100,"b":[["100","1"]],"a":[["101","1"]]}}`)
	rec, err := a.Decode(snapshot)
	require.NoError(t, err)
	book := rec.(domain.OrderBookSnapshot)
	assert.Equal(t, "snapshot", book.Type)
	assert.Equal(t, int64(1), book.LastUpdateID)

	delta := []byte(`{"topic":"orderbook.50.BTCUSDT","type":"delta","ts":2,"data":{"u":2,"seq":101,"b":[["100","0"]],"a":[["102","2"]]}}`)
	rec, err = a.Decode(delta)
	require.NoError(t, err)
	book = rec.(domain.OrderBookSnapshot)
	assert.Equal(t, "update", book.Type)
	assert.Empty(t, book.Bids)
	assert.Equal(t, []domain.Level{{Price: "101", Size: "1"}, {Price: "102", Size: "2"}}, book.Asks)
	assert.Equal(t, int64(2), book.LastUpdateID)
	assert.Equal(t, int64(1), book.DiffUpdateID)
}

func TestDecode_KlineTradeTicker(t *testing.T) {
	a := newTestAdapter(t)

	kline := []byte(`{"topic":"kline.5.BTCUSDT","type":"snapshot","ts":100,"data":[{"start":1,"end":2,"open":"1","close":"2","high":"3","low":"0.5","volume":"10","confirm":false}]}`)
	rec, err := a.Decode(kline)
	require.NoError(t, err)
	bar := rec.(domain.KlineBar)
	assert.Equal(t, "5m", bar.Interval)

	trade := []byte(`{"topic":"publicTrade.BTCUSDT","ts":100,"data":[{"i":1,"p":"100","v":"0.1","T":99,"S":"Buy"}]}`)
	rec, err = a.Decode(trade)
	require.NoError(t, err)
	tr := rec.(domain.Trade)
	assert.Equal(t, "BUY", tr.SideOfTaker)

	ticker := []byte(`{"topic":"tickers.BTCUSDT","cs":1,"data":{"price24hPcnt":"0.01","lastPrice":"100","prevPrice24h":"99","highPrice24h":"101","lowPrice24h":"98","volume24h":"1000","turnover24h":"100000"}}`)
	rec, err = a.Decode(ticker)
	require.NoError(t, err)
	tk := rec.(domain.Ticker)
	assert.Equal(t, "100", tk.LastPrice)
}

func TestVenueInterval_RoundTrip(t *testing.T) {
	vi, err := venueInterval("1h")
	require.NoError(t, err)
	assert.Equal(t, "60", vi)

	ci, err := canonicalInterval(vi)
	require.NoError(t, err)
	assert.Equal(t, "1h", ci)
}

func TestMaxStreams_TenCeiling(t *testing.T) {
	a := newTestAdapter(t)
	assert.Equal(t, 10, a.MaxStreams())
}

func TestPingFrame_OpPing(t *testing.T) {
	frame := PingFrame()
	assert.Contains(t, string(frame), `"op":"ping"`)
}
