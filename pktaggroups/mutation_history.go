package pktaggroups

import (
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/subsystems"
)

// MaxSentMutationAge is how long sent mutations are kept. It must exceed the longest period for
// which a lookup response can be served from cache.
const MaxSentMutationAge = 24 * time.Hour

const (
	pendingKeyPrefix = "pk.tag_groups.pending."
	sentKey          = "pk.tag_groups.sent"
)

// SentMutation is a mutation that was accepted by the server, and when.
type SentMutation struct {
	Mutation Mutation
	Date     time.Time
}

// MutationHistory holds pending and sent tag-group mutations, persisted in a key-value store.
//
// The pending queue of each type is collapsed whenever a mutation is added, so it holds at most
// one mutation. Methods are safe for concurrent use.
type MutationHistory struct {
	kv      subsystems.KeyValueStore
	loggers ldlog.Loggers
	now     func() time.Time

	pending map[Type][]Mutation
	sent    []SentMutation
	loaded  bool
	lock    sync.Mutex
}

// NewMutationHistory creates a MutationHistory. If kv is nil the history is kept only in memory.
func NewMutationHistory(kv subsystems.KeyValueStore, loggers ldlog.Loggers) *MutationHistory {
	return &MutationHistory{kv: kv, loggers: loggers, now: time.Now, pending: make(map[Type][]Mutation)}
}

// AddPendingMutation appends a mutation to the pending queue of the given type, then collapses
// the queue.
func (h *MutationHistory) AddPendingMutation(m Mutation, t Type) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.loadIfNecessary()
	h.pending[t] = CollapseMutations(append(h.pending[t], m))
	h.savePending(t)
}

// PeekPendingMutation returns the head of the pending queue of the given type.
func (h *MutationHistory) PeekPendingMutation(t Type) (Mutation, bool) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.loadIfNecessary()
	if len(h.pending[t]) == 0 {
		return Mutation{}, false
	}
	return h.pending[t][0], true
}

// PopPendingMutation removes and returns the head of the pending queue of the given type.
func (h *MutationHistory) PopPendingMutation(t Type) (Mutation, bool) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.loadIfNecessary()
	return h.popLocked(t)
}

// popPendingMutationIfEqual removes the head of the queue only if it is still m. If other
// mutations were merged into the head since it was peeked, the merged head stays queued; sending
// it again is harmless because tag edits are idempotent.
func (h *MutationHistory) popPendingMutationIfEqual(t Type, m Mutation) bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.loadIfNecessary()
	if len(h.pending[t]) == 0 || !h.pending[t][0].Equal(m) {
		return false
	}
	h.popLocked(t)
	return true
}

func (h *MutationHistory) popLocked(t Type) (Mutation, bool) {
	if len(h.pending[t]) == 0 {
		return Mutation{}, false
	}
	head := h.pending[t][0]
	h.pending[t] = h.pending[t][1:]
	h.savePending(t)
	return head, true
}

// PendingMutations returns the pending mutations of every type collapsed together.
func (h *MutationHistory) PendingMutations() []Mutation {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.loadIfNecessary()
	var all []Mutation
	for _, t := range AllTypes {
		all = append(all, h.pending[t]...)
	}
	return CollapseMutations(all)
}

// CollapsePendingMutations collapses the pending queue of the given type.
func (h *MutationHistory) CollapsePendingMutations(t Type) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.loadIfNecessary()
	h.pending[t] = CollapseMutations(h.pending[t])
	h.savePending(t)
}

// ClearPendingMutations discards the pending queue of the given type.
func (h *MutationHistory) ClearPendingMutations(t Type) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.loadIfNecessary()
	delete(h.pending, t)
	h.savePending(t)
}

// AddSentMutation records a mutation the server accepted at the given time. Sent mutations older
// than MaxSentMutationAge are purged.
func (h *MutationHistory) AddSentMutation(m Mutation, date time.Time) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.loadIfNecessary()
	h.sent = append(h.sent, SentMutation{Mutation: m, Date: date})
	cutoff := h.now().Add(-MaxSentMutationAge)
	kept := h.sent[:0]
	for _, s := range h.sent {
		if !s.Date.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	h.sent = kept
	h.saveSent()
}

// SentMutationsWithMaxAge returns the sent mutations no older than maxAge, oldest first. Nothing is
// purged.
func (h *MutationHistory) SentMutationsWithMaxAge(maxAge time.Duration) []Mutation {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.loadIfNecessary()
	cutoff := h.now().Add(-maxAge)
	var ret []Mutation
	for _, s := range h.sent {
		if !s.Date.Before(cutoff) {
			ret = append(ret, s.Mutation)
		}
	}
	return ret
}

// ClearSentMutations discards every sent mutation.
func (h *MutationHistory) ClearSentMutations() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.loadIfNecessary()
	h.sent = nil
	h.saveSent()
}

// ClearAll discards all pending and sent mutations.
func (h *MutationHistory) ClearAll() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.loadIfNecessary()
	h.pending = make(map[Type][]Mutation)
	h.sent = nil
	for _, t := range AllTypes {
		h.savePending(t)
	}
	h.saveSent()
}

// ApplyHistory returns tg with the sent mutations no older than maxAge applied, followed by every
// pending mutation.
func (h *MutationHistory) ApplyHistory(tg TagGroups, maxAge time.Duration) TagGroups {
	ret := tg.Clone()
	for _, m := range h.SentMutationsWithMaxAge(maxAge) {
		ret = m.Apply(ret)
	}
	for _, m := range h.PendingMutations() {
		ret = m.Apply(ret)
	}
	return ret
}

func (h *MutationHistory) loadIfNecessary() {
	if h.loaded {
		return
	}
	h.loaded = true
	if h.kv == nil {
		return
	}
	for _, t := range AllTypes {
		value, found, err := h.kv.Get(pendingKeyPrefix + t.String())
		if err != nil {
			h.loggers.Errorf("Unable to read pending %s tag group mutations: %s", t, err)
			continue
		}
		if found {
			for i := 0; i < value.Count(); i++ {
				h.pending[t] = append(h.pending[t], MutationFromValue(value.GetByIndex(i)))
			}
		}
	}
	value, found, err := h.kv.Get(sentKey)
	if err != nil {
		h.loggers.Errorf("Unable to read sent tag group mutations: %s", err)
		return
	}
	if found {
		for i := 0; i < value.Count(); i++ {
			item := value.GetByIndex(i)
			date := time.UnixMilli(int64(ldtime.UnixMillisecondTime(item.GetByKey("date").Float64Value())))
			h.sent = append(h.sent, SentMutation{Mutation: MutationFromValue(item.GetByKey("mutation")), Date: date})
		}
	}
}

func (h *MutationHistory) savePending(t Type) {
	if h.kv == nil {
		return
	}
	key := pendingKeyPrefix + t.String()
	var err error
	if len(h.pending[t]) == 0 {
		err = h.kv.Remove(key)
	} else {
		arr := ldvalue.ArrayBuildWithCapacity(len(h.pending[t]))
		for _, m := range h.pending[t] {
			arr.Add(m.AsValue())
		}
		err = h.kv.Set(key, arr.Build())
	}
	if err != nil {
		h.loggers.Errorf("Unable to persist pending %s tag group mutations: %s", t, err)
	}
}

func (h *MutationHistory) saveSent() {
	if h.kv == nil {
		return
	}
	var err error
	if len(h.sent) == 0 {
		err = h.kv.Remove(sentKey)
	} else {
		arr := ldvalue.ArrayBuildWithCapacity(len(h.sent))
		for _, s := range h.sent {
			arr.Add(ldvalue.ObjectBuild().
				Set("mutation", s.Mutation.AsValue()).
				Set("date", ldvalue.Float64(float64(ldtime.UnixMillisFromTime(s.Date)))).
				Build())
		}
		err = h.kv.Set(sentKey, arr.Build())
	}
	if err != nil {
		h.loggers.Errorf("Unable to persist sent tag group mutations: %s", err)
	}
}
