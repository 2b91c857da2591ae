package bookutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ccxgo/ccxgo/internal/domain"
)

func TestMergeLevels_DeleteZeroSizeAndResort(t *testing.T) {
	current := []domain.Level{{Price: "30000", Size: "1"}}
	delta := []domain.Level{
		{Price: "30000", Size: "0"}, // deletes
		{Price: "30002", Size: "2"},
	}

	bids := MergeLevels(current, delta, true)
	assert.Equal(t, []domain.Level{{Price: "30002", Size: "2"}}, bids)
}

func TestMergeLevels_SortOrder(t *testing.T) {
	current := []domain.Level{{Price: "10", Size: "1"}, {Price: "30", Size: "1"}}
	delta := []domain.Level{{Price: "20", Size: "1"}}

	bids := MergeLevels(current, delta, true)
	assert.Equal(t, []string{"30", "20", "10"}, priceList(bids))

	asks := MergeLevels(current, delta, false)
	assert.Equal(t, []string{"10", "20", "30"}, priceList(asks))
}

func TestTruncate(t *testing.T) {
	levels := []domain.Level{{Price: "1"}, {Price: "2"}, {Price: "3"}}
	assert.Len(t, Truncate(levels, 2), 2)
	assert.Equal(t, levels, Truncate(levels, 0))
	assert.Equal(t, levels, Truncate(levels, 10))
}

func priceList(levels []domain.Level) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = l.Price
	}
	return out
}
