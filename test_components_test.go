package pkclient

import (
	"context"
	"sync"
	"time"

	"github.com/pushkit/go-client-sdk/internal/sharedtest"
	"github.com/pushkit/go-client-sdk/pkcomponents"
	"github.com/pushkit/go-client-sdk/pkevents"
	"github.com/pushkit/go-client-sdk/pkinapp"
	"github.com/pushkit/go-client-sdk/subsystems"
)

const (
	testAppKey  = sharedtest.TestAppKey
	waitTimeout = time.Second
)

type recordedEvent struct {
	event     pkevents.Event
	sessionID string
}

// recordingEventManager is an EventManager that reports every call on channels.
type recordingEventManager struct {
	eventsCh  chan recordedEvent
	callsCh   chan string
	lastSend  time.Time
	closed    bool
	closeLock sync.Mutex
}

func newRecordingEventManager() *recordingEventManager {
	return &recordingEventManager{
		eventsCh: make(chan recordedEvent, 100),
		callsCh:  make(chan string, 100),
	}
}

func (m *recordingEventManager) AddEvent(event pkevents.Event, sessionID string) {
	m.eventsCh <- recordedEvent{event, sessionID}
}

func (m *recordingEventManager) ScheduleUpload(pkevents.Priority) { m.callsCh <- "schedule" }

func (m *recordingEventManager) Flush() { m.callsCh <- "flush" }

func (m *recordingEventManager) CancelUpload() { m.callsCh <- "cancel" }

func (m *recordingEventManager) DeleteAllEvents() { m.callsCh <- "delete" }

func (m *recordingEventManager) SetUploadsEnabled(enabled bool) {
	if enabled {
		m.callsCh <- "uploads on"
	} else {
		m.callsCh <- "uploads off"
	}
}

func (m *recordingEventManager) LastSendTime() time.Time { return m.lastSend }

func (m *recordingEventManager) Close() error {
	m.closeLock.Lock()
	m.closed = true
	m.closeLock.Unlock()
	return nil
}

func (m *recordingEventManager) isClosed() bool {
	m.closeLock.Lock()
	defer m.closeLock.Unlock()
	return m.closed
}

// requireEventOfType skips events of other types, which the client may record along the way.
func (m *recordingEventManager) requireEventOfType(eventType string) (recordedEvent, bool) {
	deadline := time.After(waitTimeout)
	for {
		select {
		case e := <-m.eventsCh:
			if e.event.Type == eventType {
				return e, true
			}
		case <-deadline:
			return recordedEvent{}, false
		}
	}
}

// testAdapter displays a message by handing its done function to the test.
type testAdapter struct {
	displayCh chan<- func(pkinapp.Resolution)
}

func (a testAdapter) Prepare(context.Context) pkinapp.AdapterPrepareResult {
	return pkinapp.AdapterPrepareSuccess
}

func (a testAdapter) IsReadyToDisplay() bool { return true }

func (a testAdapter) Display(_ context.Context, done func(pkinapp.Resolution)) { a.displayCh <- done }

func testAdapterFactory(displayCh chan<- func(pkinapp.Resolution)) pkinapp.AdapterFactory {
	return pkinapp.AdapterFactoryFunc(func(pkinapp.Message) (pkinapp.Adapter, error) {
		return testAdapter{displayCh: displayCh}, nil
	})
}

type clientTestParams struct {
	client       *Client
	eventManager *recordingEventManager
	dataStore    *sharedtest.MockKeyValueStore
}

// makeTestConfig returns a Config that makes no network connections and records analytics calls.
func makeTestConfig(p *clientTestParams) Config {
	mockLog := sharedtest.NewTestLoggers()
	return Config{
		Analytics: sharedtest.SingleComponentConfigurer[pkevents.EventManager]{Instance: p.eventManager},
		DataStore: sharedtest.SingleComponentConfigurer[subsystems.KeyValueStore]{Instance: p.dataStore},
		Logging:   pkcomponents.Logging().Loggers(mockLog),
		RemoteData: sharedtest.SingleComponentConfigurer[subsystems.RemoteDataSource]{
			Instance: &sharedtest.MockRemoteDataSource{Initialized: true},
		},
	}
}

func clientTest(action func(p clientTestParams)) {
	clientTestWithConfig(nil, action)
}

func clientTestWithConfig(configAction func(*Config), action func(p clientTestParams)) {
	p := clientTestParams{
		eventManager: newRecordingEventManager(),
		dataStore:    sharedtest.NewMockKeyValueStore(),
	}
	config := makeTestConfig(&p)
	if configAction != nil {
		configAction(&config)
	}
	client, err := MakeCustomClient(testAppKey, config, 0)
	if err != nil {
		panic(err)
	}
	defer client.Close()
	p.client = client
	action(p)
}
