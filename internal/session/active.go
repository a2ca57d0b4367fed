package session

import (
	"errors"
	"sync"

	"prawnik-web/internal/metrics"
)

// MaxActiveQueries is the admission cap on queries whose fast answer is
// still being polled.
const MaxActiveQueries = 3

var ErrTooManyActiveQueries = errors.New("too many active queries")

// ActiveQuerySet is the admission gate for new submissions. Entries leave
// the set when the fast answer of that query reaches a terminal outcome;
// the accurate answer never holds a slot.
type ActiveQuerySet struct {
	mu      sync.Mutex
	max     int
	ids     []string
	metrics *metrics.Collectors
}

func NewActiveQuerySet(capacity int, m *metrics.Collectors) *ActiveQuerySet {
	if capacity <= 0 {
		capacity = MaxActiveQueries
	}
	return &ActiveQuerySet{max: capacity, metrics: m}
}

func (s *ActiveQuerySet) indexOf(id string) int {
	for i, v := range s.ids {
		if v == id {
			return i
		}
	}
	return -1
}

// TryAdd admits id unless the set is full. Adding an id that is already a
// member succeeds without changing the count.
func (s *ActiveQuerySet) TryAdd(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) >= 0 {
		return true
	}
	if len(s.ids) >= s.max {
		return false
	}
	s.ids = append(s.ids, id)
	s.metrics.ActiveQueriesDelta(1)
	return true
}

func (s *ActiveQuerySet) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}
	s.ids = append(s.ids[:i], s.ids[i+1:]...)
	s.metrics.ActiveQueriesDelta(-1)
}

// Replace swaps a reservation key for the real query id, keeping the slot.
func (s *ActiveQuerySet) Replace(oldID, newID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(oldID)
	if i < 0 {
		return false
	}
	if j := s.indexOf(newID); j >= 0 {
		s.ids = append(s.ids[:i], s.ids[i+1:]...)
		s.metrics.ActiveQueriesDelta(-1)
		return true
	}
	s.ids[i] = newID
	return true
}

func (s *ActiveQuerySet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(id) >= 0
}

func (s *ActiveQuerySet) CanAdd() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids) < s.max
}

func (s *ActiveQuerySet) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *ActiveQuerySet) Max() int {
	return s.max
}

func (s *ActiveQuerySet) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Clear drops every entry, e.g. when the session ends.
func (s *ActiveQuerySet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.ActiveQueriesDelta(-len(s.ids))
	s.ids = nil
}
