package market

import (
	"sync"
)

// CacheKey identifies one memoized product value: the supplier's name
// plus the opaque id of the assembly pass that produced it.
type CacheKey struct {
	Supplier string
	Assembly string
}

func (k CacheKey) String() string {
	return k.Supplier + "@" + k.Assembly
}

// MemoStore is the pluggable cache backing a market's memoization. The
// engine touches the store only on the assemble/unpack and recall
// paths; any external store wired in via WithMemoStore sees exactly
// those mutations and nothing else.
type MemoStore interface {
	Load(key CacheKey) (any, bool)
	Store(key CacheKey, value any)
	Delete(key CacheKey)
}

// outcome is the unit of memoization: the produced value or the
// failure, replayed identically on later unpacks.
type outcome struct {
	value any
	err   error
}

// MemoryStore is the default process-local MemoStore.
type MemoryStore struct {
	data sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(key CacheKey) (any, bool) {
	return s.data.Load(key)
}

func (s *MemoryStore) Store(key CacheKey, value any) {
	s.data.Store(key, value)
}

func (s *MemoryStore) Delete(key CacheKey) {
	s.data.Delete(key)
}

func (s *MemoryStore) Range(fn func(key CacheKey, value any) bool) {
	s.data.Range(func(key, value any) bool {
		return fn(key.(CacheKey), value)
	})
}

func (s *MemoryStore) Size() int {
	count := 0
	s.data.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}

func (s *MemoryStore) Clear() {
	s.data.Range(func(key, value any) bool {
		s.data.Delete(key)
		return true
	})
}
