package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccxgo/ccxgo/internal/domain"
)

func TestStore_MissingKeyVsEmptyValue(t *testing.T) {
	s := New()

	_, ok := s.Get("stream_order_book_btcusdt_none")
	assert.False(t, ok, "undeclared key must be distinguishable from an empty value")

	s.Declare("stream_order_book_btcusdt_none")
	rec, ok := s.Get("stream_order_book_btcusdt_none")
	require.True(t, ok)
	assert.Nil(t, rec, "declared-but-not-yet-decoded key returns nil record, not missing")
}

func TestStore_SetThenGet(t *testing.T) {
	s := New()
	key := "stream_trades_btcusdt_none"
	s.Declare(key)

	want := domain.Trade{Symbol: "BTC/USDT", TradeID: "1"}
	s.Set(key, want)

	got, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

// TestStore_ConcurrentAccessNeverTorn exercises many concurrent writers on
// distinct keys and many concurrent readers, asserting every observed
// record is one of the values a writer actually stored (never a torn mix).
func TestStore_ConcurrentAccessNeverTorn(t *testing.T) {
	s := New()
	const keys = 8
	const writes = 200

	keyNames := make([]string, keys)
	for i := 0; i < keys; i++ {
		keyNames[i] = domain.StreamKey(domain.StreamDescriptor{
			Endpoint: domain.EndpointTrades,
			Symbol:   "SYM" + string(rune('A'+i)) + "/USDT",
		})
		s.Declare(keyNames[i])
	}

	var writers sync.WaitGroup
	for _, key := range keyNames {
		key := key
		writers.Add(1)
		go func() {
			defer writers.Done()
			for i := 0; i < writes; i++ {
				s.Set(key, domain.Trade{TradeID: key})
			}
		}()
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, key := range keyNames {
					rec, ok := s.Get(key)
					if !ok {
						continue
					}
					if rec == nil {
						continue
					}
					trade, ok := rec.(domain.Trade)
					require.True(t, ok)
					assert.Equal(t, key, trade.TradeID, "reader must never see a torn record from another key")
				}
			}
		}()
	}

	// let readers race with writers, then stop both.
	writers.Wait()
	close(stop)
	readers.Wait()
}
