// Package cache provides bounded, TTL-evicting key/value stores that are
// created once at startup and passed to the components that use them.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Stats is a point-in-time snapshot of a store.
type Stats struct {
	Name     string `json:"name"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Hits     int64  `json:"hits"`
	Misses   int64  `json:"misses"`
}

// Fill returns Size/Capacity in [0,1].
func (s Stats) Fill() float64 {
	if s.Capacity <= 0 {
		return 0
	}
	return float64(s.Size) / float64(s.Capacity)
}

// Store is a capacity-bounded LRU whose entries expire after ttl.
// Concurrent writers to the same key are last-write-wins.
type Store[K comparable, V any] struct {
	name     string
	capacity int
	lru      *expirable.LRU[K, V]
	hits     atomic.Int64
	misses   atomic.Int64
}

func New[K comparable, V any](name string, capacity int, ttl time.Duration) *Store[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Store[K, V]{
		name:     name,
		capacity: capacity,
		lru:      expirable.NewLRU[K, V](capacity, nil, ttl),
	}
}

func (s *Store[K, V]) Get(key K) (V, bool) {
	v, ok := s.lru.Get(key)
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return v, ok
}

func (s *Store[K, V]) Set(key K, value V) {
	s.lru.Add(key, value)
}

func (s *Store[K, V]) Remove(key K) {
	s.lru.Remove(key)
}

func (s *Store[K, V]) Len() int {
	return s.lru.Len()
}

func (s *Store[K, V]) Purge() {
	s.lru.Purge()
}

func (s *Store[K, V]) Stats() Stats {
	return Stats{
		Name:     s.name,
		Size:     s.lru.Len(),
		Capacity: s.capacity,
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
	}
}

// StatsProvider is implemented by every Store regardless of its type parameters.
type StatsProvider interface {
	Stats() Stats
}
