package pkautomation

import (
	"io"
	"sort"
	"sync"
)

// ScheduleStore holds schedules. The engine is its only writer, and calls it only from its own
// queue; implementations must still be safe for concurrent reads.
type ScheduleStore interface {
	io.Closer
	// Put inserts or replaces schedules.
	Put(schedules ...Schedule) error
	// Get returns the schedule with the given ID, or false if there is none.
	Get(id string) (Schedule, bool, error)
	// GetByGroup returns the schedules of a group, ordered by creation time.
	GetByGroup(group string) ([]Schedule, error)
	// GetAll returns every schedule, ordered by creation time.
	GetAll() ([]Schedule, error)
	// Delete removes schedules by ID. Unknown IDs are ignored.
	Delete(ids ...string) error
	// Count returns the number of schedules.
	Count() (int, error)
}

type inMemoryScheduleStore struct {
	schedules map[string]Schedule
	lock      sync.RWMutex
}

// NewInMemoryScheduleStore creates a ScheduleStore that keeps schedules only in memory.
func NewInMemoryScheduleStore() ScheduleStore {
	return &inMemoryScheduleStore{schedules: make(map[string]Schedule)}
}

func (s *inMemoryScheduleStore) Put(schedules ...Schedule) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, sched := range schedules {
		s.schedules[sched.ID] = sched.Clone()
	}
	return nil
}

func (s *inMemoryScheduleStore) Get(id string) (Schedule, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	sched, ok := s.schedules[id]
	if !ok {
		return Schedule{}, false, nil
	}
	return sched.Clone(), true, nil
}

func (s *inMemoryScheduleStore) GetByGroup(group string) ([]Schedule, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var ret []Schedule
	for _, sched := range s.schedules {
		if sched.Info.Group == group {
			ret = append(ret, sched.Clone())
		}
	}
	SortByCreation(ret)
	return ret, nil
}

func (s *inMemoryScheduleStore) GetAll() ([]Schedule, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	ret := make([]Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		ret = append(ret, sched.Clone())
	}
	SortByCreation(ret)
	return ret, nil
}

func (s *inMemoryScheduleStore) Delete(ids ...string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, id := range ids {
		delete(s.schedules, id)
	}
	return nil
}

func (s *inMemoryScheduleStore) Count() (int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.schedules), nil
}

func (s *inMemoryScheduleStore) Close() error {
	return nil
}

// SortByCreation sorts schedules by creation time, then by ID.
func SortByCreation(schedules []Schedule) {
	sort.Slice(schedules, func(i, j int) bool {
		a, b := schedules[i], schedules[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
