// Package store implements the in-memory, concurrent, sequence-numbered ring
// buffer that is the single source of truth for ingested log entries and the
// publisher of new-entry notifications to Tabs.
package store

import (
	"sort"
	"sync"

	"github.com/feedtriage/triage/internal/model"
)

// DefaultCapacity is the ring buffer size used when none is configured.
const DefaultCapacity = 100_000

// DefaultBroadcastCapacity is the notification channel size used when none
// is configured.
const DefaultBroadcastCapacity = 1024

// Store is a bounded ring buffer of model.LogEntry. It is the only shared
// mutable resource in the system: at most one goroutine calls Push at a
// time (readers_writers discipline), any number of goroutines may call
// Get/Range/Latest/Producers concurrently.
type Store struct {
	mu        sync.RWMutex
	entries   []model.LogEntry
	capacity  int
	nextSeq   uint64
	minSeq    uint64
	count     int
	producers map[string]int
	notify    *broadcaster
}

// New creates a Store with the given capacity and broadcast channel
// capacity. A non-positive value selects the package default.
func New(capacity, broadcastCapacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		entries:   make([]model.LogEntry, capacity),
		capacity:  capacity,
		producers: make(map[string]int),
		notify:    newBroadcaster(broadcastCapacity),
	}
}

// Push assigns e the next sequence number, appends it, evicting the oldest
// resident entry if the store is at capacity, then publishes the new
// sequence number to every subscriber. Push is infallible and never blocks
// on a slow subscriber.
func (s *Store) Push(e model.LogEntry) uint64 {
	s.mu.Lock()
	seq := s.nextSeq
	s.nextSeq++
	e.Seq = seq
	idx := int(seq % uint64(s.capacity))

	if s.count == s.capacity {
		evicted := s.entries[idx]
		s.decProducer(evicted.Producer)
		s.minSeq++
	} else {
		s.count++
	}

	s.entries[idx] = e
	s.incProducer(e.Producer)
	s.mu.Unlock()

	s.notify.publish(seq)
	return seq
}

func (s *Store) incProducer(p string) {
	if p == "" {
		return
	}
	s.producers[p]++
}

func (s *Store) decProducer(p string) {
	if p == "" {
		return
	}
	s.producers[p]--
	if s.producers[p] <= 0 {
		delete(s.producers, p)
	}
}

// Get returns the entry at seq, or false if seq has been evicted
// (seq < min resident seq) or has not been assigned yet (seq >= next seq).
func (s *Store) Get(seq uint64) (model.LogEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(seq)
}

func (s *Store) getLocked(seq uint64) (model.LogEntry, bool) {
	if seq < s.minSeq || seq >= s.nextSeq {
		return model.LogEntry{}, false
	}
	idx := int(seq % uint64(s.capacity))
	e := s.entries[idx]
	if e.Seq != seq {
		return model.LogEntry{}, false
	}
	return e.Clone(), true
}

// Range calls fn, in increasing sequence order, for every resident entry in
// [max(from, minSeq), min(to, nextSeq)) that matches filter. fn returning
// false stops iteration early — the caller's cancellation point. Each entry
// is copied out under its own brief read-lock acquisition so a slow or
// cancelled scan never holds the store back from concurrent writes.
func (s *Store) Range(from, to uint64, filter Filter, fn func(model.LogEntry) bool) {
	if from >= to {
		return
	}
	s.mu.RLock()
	minSeq, nextSeq := s.minSeq, s.nextSeq
	s.mu.RUnlock()

	if from < minSeq {
		from = minSeq
	}
	if to > nextSeq {
		to = nextSeq
	}
	for seq := from; seq < to; seq++ {
		e, ok := s.Get(seq)
		if !ok {
			continue
		}
		if !filter.Match(e) {
			continue
		}
		if !fn(e) {
			return
		}
	}
}

// Latest returns at most n of the most recent entries matching filter,
// oldest first within the result.
func (s *Store) Latest(n int, filter Filter) []model.LogEntry {
	if n <= 0 {
		return nil
	}
	s.mu.RLock()
	minSeq, nextSeq := s.minSeq, s.nextSeq
	s.mu.RUnlock()

	out := make([]model.LogEntry, 0, n)
	for seq := nextSeq; seq > minSeq && len(out) < n; {
		seq--
		e, ok := s.Get(seq)
		if !ok {
			continue
		}
		if !filter.Match(e) {
			continue
		}
		out = append(out, e)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Producers returns the set of distinct producer identifiers present in the
// current window, sorted for deterministic output.
func (s *Store) Producers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.producers))
	for p := range s.producers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of entries currently resident.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Capacity returns the ring buffer's fixed capacity.
func (s *Store) Capacity() int { return s.capacity }

// Bounds returns the current [minSeq, nextSeq) window. minSeq is the oldest
// resident sequence (undefined when the store is empty); nextSeq is the
// sequence the next Push will assign.
func (s *Store) Bounds() (minSeq, nextSeq uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minSeq, s.nextSeq
}

// Subscribe registers a new broadcast subscriber and returns the store's
// current minimum resident sequence (so the caller can compute an initial
// backfill range) along with the subscription itself. Callers must Close
// the subscription when done.
func (s *Store) Subscribe() (uint64, *Subscription) {
	s.mu.RLock()
	minSeq := s.minSeq
	s.mu.RUnlock()
	return minSeq, s.notify.subscribe()
}
