// Package store implements the facade's snapshot store: a concurrent
// stream-key -> latest-canonical-record cache with single-writer-per-key,
// many-reader semantics (spec.md §4.2).
package store

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/ccxgo/ccxgo/internal/domain"
)

const shardCount = 16

type shard struct {
	mu   sync.RWMutex
	data map[string]*atomic.Pointer[domain.Record]
}

// Store is a sharded map keyed by stream key. Each key owns its own
// atomic pointer so a reader of one stream is never blocked by, or able
// to observe a torn write from, a decode goroutine updating another
// stream. Keys are pre-declared by the facade at start so that a missing
// key (never subscribed) and an empty value (subscribed, no data yet) are
// distinguishable.
type Store struct {
	shards [shardCount]*shard
}

// New creates an empty store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{data: make(map[string]*atomic.Pointer[domain.Record])}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// Declare pre-registers a stream key with no value, so Get can distinguish
// "not subscribed" (ok=false) from "subscribed, nothing decoded yet"
// (ok=true, rec=nil).
func (s *Store) Declare(key string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.data[key]; !exists {
		sh.data[key] = &atomic.Pointer[domain.Record]{}
	}
}

// Set overwrites the latest record for a stream key. Safe to call from
// any single writer goroutine owning that key; writes to the same key
// from the same adapter's decode path are serialized by the caller
// (spec.md §5 ordering guarantee), so no lock is needed here beyond the
// atomic swap itself.
func (s *Store) Set(key string, rec domain.Record) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	ptr, exists := sh.data[key]
	sh.mu.RUnlock()
	if !exists {
		sh.mu.Lock()
		ptr, exists = sh.data[key]
		if !exists {
			ptr = &atomic.Pointer[domain.Record]{}
			sh.data[key] = ptr
		}
		sh.mu.Unlock()
	}
	ptr.Store(&rec)
}

// Get returns the latest record for a stream key. ok is false only when
// the key was never declared/subscribed; a declared key with no data yet
// returns (nil, true).
func (s *Store) Get(key string) (domain.Record, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	ptr, exists := sh.data[key]
	sh.mu.RUnlock()
	if !exists {
		return nil, false
	}
	rec := ptr.Load()
	if rec == nil {
		return nil, true
	}
	return *rec, true
}

// Keys returns every declared stream key, used by health checks that must
// walk all subscribed streams.
func (s *Store) Keys() []string {
	var keys []string
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.data {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	return keys
}
