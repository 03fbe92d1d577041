package handle

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dolthub/maphash"
)

const (
	shardCount      = 32               // must be a power of 2
	defaultMapSize  = 32               // initial size for new shard maps
	maxMapPower     = 20               // largest power of 2 a shard map may be pooled at
	maxMapSize      = 1 << maxMapPower // largest shard map that is pooled
	mapShrinkFactor = 8                // shrink a shard once it is this much emptier than its high-water mark
)

// ID identifies a live entry in a Table. Zero is never issued.
type ID uint64

// shard is one of the concurrent-safe partitions of a Table.
type shard[V any] struct {
	mu        sync.RWMutex
	pool      *pool[ID, V]
	entries   map[ID]V
	count     int32
	countHigh int32
}

func (s *shard[V]) get(id ID) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entries == nil {
		var zero V
		return zero, false
	}
	v, ok := s.entries[id]
	return v, ok
}

func (s *shard[V]) set(id ID, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries == nil {
		s.entries = s.pool.Get(defaultMapSize)
	}
	if _, exists := s.entries[id]; !exists {
		s.count++
	}
	s.entries[id] = v
	if s.count > s.countHigh {
		s.countHigh = s.count
	}
}

func (s *shard[V]) delete(id ID) (V, bool) {
	s.mu.Lock()

	var zero V
	if s.entries == nil {
		s.mu.Unlock()
		return zero, false
	}
	v, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return zero, false
	}
	delete(s.entries, id)
	s.count--
	s.mu.Unlock()

	s.compact()
	return v, true
}

func (s *shard[V]) compact() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		if s.entries != nil {
			s.pool.Put(s.entries)
			s.entries = nil
		}
		s.countHigh = 0
		return
	}
	if s.count > maxMapSize {
		return
	}
	if s.count*mapShrinkFactor >= s.countHigh {
		return
	}

	fresh := s.pool.Get(uint32(s.count) * 2)
	for id, v := range s.entries {
		fresh[id] = v
	}
	s.pool.Put(s.entries)
	s.entries = fresh
	s.countHigh = int32(len(fresh))
}

func (s *shard[V]) len() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Table is a sharded, concurrent-safe map from ID to owned handle values
// (in Kibosh, the control channel's *control.Accessor). It replaces the
// "pointer smuggled through an integer field" pattern the original C
// implementation relied on: Alloc hands back an opaque ID that the caller
// keeps on its per-open handle, and Release removes the entry under its
// shard lock so the Go runtime is free to collect it.
type Table[V any] struct {
	next        atomic.Uint64
	hasher      maphash.Hasher[ID]
	shards      [shardCount]*shard[V]
	lastCompact atomic.Int64 // unix nanos
}

// NewTable constructs an empty, ready-to-use handle table.
func NewTable[V any]() *Table[V] {
	t := &Table[V]{hasher: maphash.NewHasher[ID]()}
	p := &pool[ID, V]{defaultSize: defaultMapSize, maxSize: maxMapSize}
	for i := range t.shards {
		t.shards[i] = &shard[V]{pool: p}
	}
	return t
}

func (t *Table[V]) shardFor(id ID) *shard[V] {
	return t.shards[t.hasher.Hash(id)&(shardCount-1)]
}

// Alloc stores v under a freshly minted ID and returns it.
func (t *Table[V]) Alloc(v V) ID {
	id := ID(t.next.Add(1))
	t.shardFor(id).set(id, v)
	return id
}

// Get returns the value stored under id, if any.
func (t *Table[V]) Get(id ID) (V, bool) {
	return t.shardFor(id).get(id)
}

// Release removes and returns the entry stored under id.
func (t *Table[V]) Release(id ID) (V, bool) {
	return t.shardFor(id).delete(id)
}

// Len returns the number of live entries across all shards.
func (t *Table[V]) Len() int32 {
	var total int32
	for _, s := range t.shards {
		total += s.len()
	}
	return total
}

// Compact shrinks shards that have drained well below their high-water
// mark, one goroutine per shard, and returns once all of them are done.
// Safe to call frequently; it no-ops within 5 minutes of its previous run.
func (t *Table[V]) Compact() {
	last := time.Unix(0, t.lastCompact.Load())
	if time.Since(last) < 5*time.Minute {
		return
	}
	t.lastCompact.Store(time.Now().UnixNano())

	var wg sync.WaitGroup
	wg.Add(len(t.shards))
	for _, s := range t.shards {
		go func(s *shard[V]) {
			defer wg.Done()
			s.compact()
		}(s)
	}
	wg.Wait()
}
