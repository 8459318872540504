package hubtest

import (
	"sync"
	"time"

	"github.com/ziyasal/iotedge/pkg/protocol"
)

// eventStore journals recorded telemetry the way a real gateway's
// store-and-forward queue does: insertion-ordered, optionally expiring
// entries after a TTL, optionally capped with oldest-first eviction.
// Expiry is lazy, checked on access; test lifetimes are short enough
// that a sweeper goroutine would be dead weight.
type eventStore struct {
	mu  sync.Mutex
	ttl time.Duration
	max int

	nowFn func() time.Time
	items []storedEvent
}

type storedEvent struct {
	ev      protocol.Event
	addedAt time.Time
}

func newEventStore(ttl time.Duration, max int) *eventStore {
	return &eventStore{ttl: ttl, max: max, nowFn: time.Now}
}

func (s *eventStore) Add(ev protocol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.items = append(s.items, storedEvent{ev: ev, addedAt: s.nowFn()})
	if s.max > 0 && len(s.items) > s.max {
		s.items = s.items[len(s.items)-s.max:]
	}
}

// Snapshot returns the live entries in arrival order.
func (s *eventStore) Snapshot() []protocol.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	out := make([]protocol.Event, len(s.items))
	for i, it := range s.items {
		out[i] = it.ev
	}
	return out
}

func (s *eventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	return len(s.items)
}

// pruneLocked drops entries older than the TTL. Items are in arrival
// order, so expired ones form a prefix.
func (s *eventStore) pruneLocked() {
	if s.ttl <= 0 || len(s.items) == 0 {
		return
	}
	cutoff := s.nowFn().Add(-s.ttl)
	keep := 0
	for keep < len(s.items) && !s.items[keep].addedAt.After(cutoff) {
		keep++
	}
	if keep > 0 {
		s.items = s.items[keep:]
	}
}
