package pkevents

import (
	"io"
	"sort"
	"sync"

	"golang.org/x/exp/slices"
)

// EventStore is the durable, ordered collection of events waiting to be uploaded.
//
// The event manager is the only writer. Implementations keep events in insertion order and must be
// safe for concurrent use, although the event manager only calls them from its own goroutine.
type EventStore interface {
	io.Closer

	// Append adds an event at the end of the store.
	Append(event StoredEvent) error

	// Prune removes events until the total stored size is at most maxBytes. Events with the lowest
	// priority are removed first, and within a priority the oldest first. It returns the number of
	// events removed.
	Prune(maxBytes int) (int, error)

	// Snapshot returns stored events in insertion order whose combined size is at most maxBytes. An
	// event that does not fit in the remaining budget is skipped. The store is not modified.
	Snapshot(maxBytes int) ([]StoredEvent, error)

	// Delete removes exactly the events with the given IDs. Unknown IDs are ignored.
	Delete(ids []string) error

	// DeleteAll removes every event.
	DeleteAll() error

	// Size returns the total size of all stored events in bytes.
	Size() (int, error)

	// Count returns the number of stored events.
	Count() (int, error)
}

type inMemoryEventStore struct {
	events []StoredEvent
	size   int
	lock   sync.Mutex
}

// NewInMemoryEventStore creates an EventStore that keeps events in memory only. Events are lost when
// the process exits.
func NewInMemoryEventStore() EventStore {
	return &inMemoryEventStore{}
}

func (s *inMemoryEventStore) Append(event StoredEvent) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.events = append(s.events, event)
	s.size += event.Size
	return nil
}

func (s *inMemoryEventStore) Prune(maxBytes int) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.size <= maxBytes {
		return 0, nil
	}
	order := PruneOrder(s.events)
	doomed := make(map[int]bool)
	for _, i := range order {
		if s.size <= maxBytes {
			break
		}
		doomed[i] = true
		s.size -= s.events[i].Size
	}
	kept := s.events[:0]
	for i, e := range s.events {
		if !doomed[i] {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(s.events); i++ {
		s.events[i] = StoredEvent{}
	}
	s.events = kept
	return len(doomed), nil
}

func (s *inMemoryEventStore) Snapshot(maxBytes int) ([]StoredEvent, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return SelectBatch(s.events, maxBytes), nil
}

func (s *inMemoryEventStore) Delete(ids []string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	kept := s.events[:0]
	for _, e := range s.events {
		if slices.Contains(ids, e.ID) {
			s.size -= e.Size
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(s.events); i++ {
		s.events[i] = StoredEvent{}
	}
	s.events = kept
	return nil
}

func (s *inMemoryEventStore) DeleteAll() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.events = nil
	s.size = 0
	return nil
}

func (s *inMemoryEventStore) Size() (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.size, nil
}

func (s *inMemoryEventStore) Count() (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.events), nil
}

func (s *inMemoryEventStore) Close() error {
	return nil
}

// PruneOrder returns the indexes of events, which must be in insertion order, in the order they
// should be pruned: lowest priority first, then oldest. Store implementations can use it to share
// the pruning rule.
func PruneOrder(events []StoredEvent) []int {
	order := make([]int, len(events))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return events[order[a]].Priority.Rank() < events[order[b]].Priority.Rank()
	})
	return order
}

// SelectBatch returns the events, in order, that fit within maxBytes, skipping any event that does
// not fit in the remaining budget.
func SelectBatch(events []StoredEvent, maxBytes int) []StoredEvent {
	var ret []StoredEvent
	total := 0
	for _, e := range events {
		if total+e.Size > maxBytes {
			continue
		}
		total += e.Size
		ret = append(ret, e)
	}
	return ret
}
