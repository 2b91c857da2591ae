package streamstate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ccxgo/ccxgo/internal/domain"
)

func TestKlineSeries_OverwriteAndEvict(t *testing.T) {
	s := NewKlineSeries(2)
	s.Put(domain.KlineBar{OpenTime: 100, Close: "1"})
	s.Put(domain.KlineBar{OpenTime: 200, Close: "2"})
	s.Put(domain.KlineBar{OpenTime: 100, Close: "1.5"}) // overwrite, not a new entry

	bars := s.Snapshot(0)
	assert.Len(t, bars, 2)
	assert.Equal(t, int64(100), bars[0].OpenTime)
	assert.Equal(t, "1.5", bars[0].Close)

	s.Put(domain.KlineBar{OpenTime: 300, Close: "3"})
	bars = s.Snapshot(0)
	assert.Len(t, bars, 2, "inserting past capacity evicts the smallest open_time")
	assert.Equal(t, int64(200), bars[0].OpenTime)
	assert.Equal(t, int64(300), bars[1].OpenTime)
}

func TestKlineSeries_SnapshotTruncated(t *testing.T) {
	s := NewKlineSeries(5)
	for i := int64(1); i <= 5; i++ {
		s.Put(domain.KlineBar{OpenTime: i * 100})
	}
	bars := s.Snapshot(2)
	assert.Len(t, bars, 2)
	assert.Equal(t, int64(100), bars[0].OpenTime)
	assert.Equal(t, int64(200), bars[1].OpenTime)
}

func TestTradeFIFO_EvictionAndSnapshot(t *testing.T) {
	f := NewTradeFIFO(3, false)
	for i := 1; i <= 4; i++ {
		f.Push(domain.Trade{TradeID: string(rune('0' + i))})
	}
	assert.Equal(t, 3, f.Len())

	got := f.Snapshot(2)
	assert.Len(t, got, 2)
	assert.Equal(t, "3", got[0].TradeID)
	assert.Equal(t, "4", got[1].TradeID)
}

func TestTradeFIFO_DedupeByTradeID(t *testing.T) {
	f := NewTradeFIFO(10, true)
	f.Push(domain.Trade{TradeID: "1", Price: "100"})
	f.Push(domain.Trade{TradeID: "1", Price: "200"})
	assert.Equal(t, 1, f.Len(), "dedupe mode must ignore a repeated trade id")
}
