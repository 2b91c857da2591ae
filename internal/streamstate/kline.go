// Package streamstate holds the bounded per-stream accumulators shared
// by every venue adapter: the kline bar map keyed by open_time
// (spec.md §4.4.3) and the trade FIFO (spec.md §4.4.4). Grounded on
// original_source/ccxw/binance.py's manage_websocket_message_kline
// (dict keyed by open_time, oldest evicted past data_max_len) and
// manage_websocket_message_trades (bounded queue.Queue, FIFO eviction).
package streamstate

import (
	"sort"
	"sync"

	"github.com/ccxgo/ccxgo/internal/domain"
)

// KlineSeries is a bounded open_time -> bar map for one stream key. An
// update to an existing open_time overwrites in place (handles an
// in-progress bar being repeatedly updated); inserting past capacity
// evicts the bar with the smallest open_time.
type KlineSeries struct {
	mu       sync.Mutex
	capacity int
	bars     map[int64]domain.KlineBar
}

// NewKlineSeries creates a series bounded to capacity bars.
func NewKlineSeries(capacity int) *KlineSeries {
	if capacity < 1 {
		capacity = 1
	}
	return &KlineSeries{capacity: capacity, bars: make(map[int64]domain.KlineBar)}
}

// Put inserts or overwrites the bar at its open_time, evicting the
// oldest bar(s) if capacity is exceeded.
func (s *KlineSeries) Put(bar domain.KlineBar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bars[bar.OpenTime] = bar
	for len(s.bars) > s.capacity {
		var oldest int64
		first := true
		for openTime := range s.bars {
			if first || openTime < oldest {
				oldest = openTime
				first = false
			}
		}
		delete(s.bars, oldest)
	}
}

// Snapshot returns every retained bar ordered by open_time ascending,
// truncated to resultMaxLen.
func (s *KlineSeries) Snapshot(resultMaxLen int) []domain.KlineBar {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.KlineBar, 0, len(s.bars))
	for _, bar := range s.bars {
		out = append(out, bar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })

	if resultMaxLen > 0 && len(out) > resultMaxLen {
		out = out[:resultMaxLen]
	}
	return out
}
