package pktestdata

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/pkinapp"
	"github.com/pushkit/go-client-sdk/subsystems"
)

var errNoUpdateSink = errors.New("test remote data source was created without an update sink")

// TestRemoteData is a test fixture that provides dynamically updatable remote data to an SDK client
// in test scenarios.
//
// See package description for more details and usage examples.
type TestRemoteData struct {
	messages  map[string]messageEntry
	payloads  map[string]subsystems.RemoteDataPayload
	instances []*testRemoteDataImpl
	lastTime  time.Time
	now       func() time.Time
	lock      sync.Mutex
}

type messageEntry struct {
	builder     *MessageBuilder
	created     time.Time
	lastUpdated time.Time
}

type testRemoteDataImpl struct {
	owner *TestRemoteData
	sink  subsystems.RemoteDataUpdateSink
}

// RemoteData creates an instance of TestRemoteData.
func RemoteData() *TestRemoteData {
	return &TestRemoteData{
		messages: make(map[string]messageEntry),
		payloads: make(map[string]subsystems.RemoteDataPayload),
		now:      time.Now,
	}
}

// Message creates or copies a MessageBuilder for building a test in-app message.
//
// If this message ID has already been defined in this TestRemoteData instance, then the builder
// starts with the same configuration that was last provided for this message. Otherwise it starts
// with a banner that may be displayed once and that has no triggers.
//
// Once you have set the desired configuration, pass the builder to Update.
func (t *TestRemoteData) Message(id string) *MessageBuilder {
	t.lock.Lock()
	defer t.lock.Unlock()
	if existing, ok := t.messages[id]; ok {
		return existing.builder.copy()
	}
	return newMessageBuilder(id)
}

// Update adds or replaces in-app messages, then delivers the resulting in_app_messages payload to
// every client configured with this TestRemoteData.
//
// Any subsequent changes to the builders do not affect the test data, unless you call Update again.
func (t *TestRemoteData) Update(builders ...*MessageBuilder) *TestRemoteData {
	t.lock.Lock()
	now := t.tick()
	for _, b := range builders {
		entry, ok := t.messages[b.id]
		if !ok {
			entry.created = now
		}
		entry.builder = b.copy()
		entry.lastUpdated = now
		t.messages[b.id] = entry
	}
	t.storeMessagesPayload(now)
	t.lock.Unlock()

	t.broadcast()
	return t
}

// Remove deletes in-app messages. Clients cancel the schedules of messages that are gone.
func (t *TestRemoteData) Remove(messageIDs ...string) *TestRemoteData {
	t.lock.Lock()
	for _, id := range messageIDs {
		delete(t.messages, id)
	}
	t.storeMessagesPayload(t.tick())
	t.lock.Unlock()

	t.broadcast()
	return t
}

// UsePayload stores an arbitrary payload, replacing any previous payload of the same type, and
// delivers the updated data to every client.
//
// A payload with no timestamp gets the current time. Use this for payload types that have no
// builder, or to test how clients handle malformed documents.
func (t *TestRemoteData) UsePayload(payload subsystems.RemoteDataPayload) *TestRemoteData {
	t.lock.Lock()
	if payload.Timestamp.IsZero() {
		payload.Timestamp = t.tick()
	}
	t.payloads[payload.Type] = payload
	t.lock.Unlock()

	t.broadcast()
	return t
}

// Build is called internally by the SDK to associate this test data source with a client instance.
// You do not need to call this method.
func (t *TestRemoteData) Build(context subsystems.ClientContext) (subsystems.RemoteDataSource, error) {
	sink := context.GetRemoteDataUpdateSink()
	if sink == nil {
		return nil, errNoUpdateSink
	}
	instance := &testRemoteDataImpl{owner: t, sink: sink}
	t.lock.Lock()
	t.instances = append(t.instances, instance)
	t.lock.Unlock()
	return instance, nil
}

// tick returns a time at least a millisecond later than any previously returned, so that every
// change is newer than the last payload a client processed. Clients persist times in milliseconds.
func (t *TestRemoteData) tick() time.Time {
	now := t.now().Truncate(time.Millisecond)
	if !now.After(t.lastTime) {
		now = t.lastTime.Add(time.Millisecond)
	}
	t.lastTime = now
	return now
}

func (t *TestRemoteData) storeMessagesPayload(timestamp time.Time) {
	ids := make([]string, 0, len(t.messages))
	for id := range t.messages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	messages := ldvalue.ArrayBuild()
	for _, id := range ids {
		entry := t.messages[id]
		messages.Add(entry.builder.build(entry.created, entry.lastUpdated))
	}
	t.payloads[pkinapp.RemoteDataPayloadType] = subsystems.RemoteDataPayload{
		Type:      pkinapp.RemoteDataPayloadType,
		Timestamp: timestamp,
		Data:      ldvalue.ObjectBuild().Set(pkinapp.RemoteDataPayloadType, messages.Build()).Build(),
	}
}

func (t *TestRemoteData) currentPayloads() []subsystems.RemoteDataPayload {
	t.lock.Lock()
	defer t.lock.Unlock()
	ret := make([]subsystems.RemoteDataPayload, 0, len(t.payloads))
	for _, p := range t.payloads {
		ret = append(ret, p)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Type < ret[j].Type })
	return ret
}

func (t *TestRemoteData) broadcast() {
	t.lock.Lock()
	instances := make([]*testRemoteDataImpl, len(t.instances))
	copy(instances, t.instances)
	t.lock.Unlock()

	payloads := t.currentPayloads()
	for _, instance := range instances {
		instance.sink.Update(payloads)
	}
}

func (t *TestRemoteData) closedInstance(instance *testRemoteDataImpl) {
	t.lock.Lock()
	defer t.lock.Unlock()
	for i, in := range t.instances {
		if in == instance {
			copy(t.instances[i:], t.instances[i+1:])
			t.instances[len(t.instances)-1] = nil
			t.instances = t.instances[:len(t.instances)-1]
			break
		}
	}
}

func (d *testRemoteDataImpl) Close() error {
	d.owner.closedInstance(d)
	return nil
}

func (d *testRemoteDataImpl) IsInitialized() bool {
	return true
}

func (d *testRemoteDataImpl) Start(closeWhenReady chan<- struct{}) {
	d.sink.Update(d.owner.currentPayloads())
	close(closeWhenReady)
}
