// Package bookutil implements the order-book delta-merge algorithm shared
// by every venue whose incremental update is "replace or delete an
// individual price level": Binance, Binance-US, Bybit, and OKX's
// "update" message type. Grounded on
// original_source/ccxw/binance.py's __manage_websocket_diff_data: merge
// the incoming levels into a price->size map, drop zero-size entries,
// and resort numerically (spec.md §4.4.2, invariant 5).
package bookutil

import (
	"sort"
	"strconv"

	"github.com/ccxgo/ccxgo/internal/domain"
)

// MergeLevels applies delta on top of current, keyed by price string, and
// returns the new sorted level set. descending=true sorts bids
// (highest price first); descending=false sorts asks (lowest first).
// A delta entry whose size parses to zero removes that price level
// entirely rather than retaining a zero-size level (spec.md invariant 5).
func MergeLevels(current []domain.Level, delta []domain.Level, descending bool) []domain.Level {
	byPrice := make(map[string]string, len(current)+len(delta))
	for _, l := range current {
		byPrice[l.Price] = l.Size
	}

	for _, d := range delta {
		size, err := strconv.ParseFloat(d.Size, 64)
		if err == nil && size == 0 {
			delete(byPrice, d.Price)
			continue
		}
		byPrice[d.Price] = d.Size
	}

	out := make([]Level, 0, len(byPrice))
	for price, size := range byPrice {
		out = append(out, Level{Price: price, Size: size})
	}

	sort.Slice(out, func(i, j int) bool {
		pi, _ := strconv.ParseFloat(out[i].Price, 64)
		pj, _ := strconv.ParseFloat(out[j].Price, 64)
		if descending {
			return pi > pj
		}
		return pi < pj
	})

	result := make([]domain.Level, len(out))
	for i, l := range out {
		result[i] = domain.Level{Price: l.Price, Size: l.Size}
	}
	return result
}

// Level is an internal (price, size) pair used only during merge/sort.
type Level struct {
	Price string
	Size  string
}

// Truncate returns at most n leading levels (spec.md: "truncated to
// result_max_len"). n <= 0 returns levels unchanged.
func Truncate(levels []domain.Level, n int) []domain.Level {
	if n <= 0 || len(levels) <= n {
		return levels
	}
	return levels[:n]
}
