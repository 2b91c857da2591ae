package streamstate

import (
	"sync"

	"github.com/ccxgo/ccxgo/internal/domain"
)

// TradeFIFO is a bounded, insertion-ordered buffer of trades. Overflow
// evicts the oldest entry. Grounded on
// original_source/ccxw/binance.py's queue.Queue(maxsize=data_max_len).
type TradeFIFO struct {
	mu       sync.Mutex
	capacity int
	order    []string // trade ids, oldest first
	byID     map[string]domain.Trade
	dedupe   bool
}

// NewTradeFIFO creates a FIFO bounded to capacity trades. When dedupe is
// true, Push ignores an id already present instead of appending a
// duplicate (Bingx's REST-polled path, spec.md §4.4.4).
func NewTradeFIFO(capacity int, dedupe bool) *TradeFIFO {
	if capacity < 1 {
		capacity = 1
	}
	return &TradeFIFO{capacity: capacity, byID: make(map[string]domain.Trade), dedupe: dedupe}
}

// Push appends one trade, evicting the oldest on overflow.
func (f *TradeFIFO) Push(t domain.Trade) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dedupe {
		if _, exists := f.byID[t.TradeID]; exists {
			return
		}
	}

	f.order = append(f.order, t.TradeID)
	f.byID[t.TradeID] = t

	for len(f.order) > f.capacity {
		oldest := f.order[0]
		f.order = f.order[1:]
		delete(f.byID, oldest)
	}
}

// Snapshot returns the most recent resultMaxLen trades in FIFO
// (chronological) order: the window is the newest entries, but those
// entries are presented oldest-to-newest (spec.md §8 S4: ids 1..4 with
// data_max_len=3, result_max_len=2 retains [2,3,4] and returns [3,4]).
func (f *TradeFIFO) Snapshot(resultMaxLen int) []domain.Trade {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.order)
	start := 0
	if resultMaxLen > 0 && resultMaxLen < n {
		start = n - resultMaxLen
	}

	out := make([]domain.Trade, 0, n-start)
	for i := start; i < n; i++ {
		out = append(out, f.byID[f.order[i]])
	}
	return out
}

// Len reports the current number of retained trades.
func (f *TradeFIFO) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}
