package pkevents

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// fakeClock controls the event manager's notion of time. Timers only fire when the test says so.
type fakeClock struct {
	current time.Time
	timers  []*fakeTimer
	armedCh chan time.Duration
	lock    sync.Mutex
}

type fakeTimer struct {
	ch      chan time.Time
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.UnixMilli(1_700_000_000_000), armedCh: make(chan time.Duration, 100)}
}

func (c *fakeClock) clock() eventClock {
	return eventClock{now: c.now, newTimer: c.newTimer}
}

func (c *fakeClock) now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.lock.Lock()
	c.current = c.current.Add(d)
	c.lock.Unlock()
}

func (c *fakeClock) newTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := &fakeTimer{ch: make(chan time.Time, 1)}
	c.lock.Lock()
	c.timers = append(c.timers, t)
	c.lock.Unlock()
	c.armedCh <- d
	return t.ch, func() bool {
		c.lock.Lock()
		defer c.lock.Unlock()
		wasActive := !t.stopped
		t.stopped = true
		return wasActive
	}
}

// fire triggers the most recently armed timer, if it has not been stopped.
func (c *fakeClock) fire() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if len(c.timers) == 0 {
		return false
	}
	t := c.timers[len(c.timers)-1]
	if t.stopped {
		return false
	}
	t.stopped = true
	t.ch <- c.current
	return true
}

type sentPayload struct {
	body    []byte
	headers http.Header
	count   int
}

// mockEventSender records payloads and returns scripted results; once the script runs out it
// returns success.
type mockEventSender struct {
	payloadsCh chan sentPayload
	results    []EventSenderResult
	gate       chan struct{}
	lock       sync.Mutex
}

func newMockEventSender() *mockEventSender {
	return &mockEventSender{payloadsCh: make(chan sentPayload, 100)}
}

func (s *mockEventSender) setResults(results ...EventSenderResult) {
	s.lock.Lock()
	s.results = results
	s.lock.Unlock()
}

// block makes every subsequent send wait until unblock is called. The context is ignored, so that
// a send can complete successfully after being cancelled.
func (s *mockEventSender) block() {
	s.lock.Lock()
	s.gate = make(chan struct{})
	s.lock.Unlock()
}

func (s *mockEventSender) unblock() {
	s.lock.Lock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
	s.lock.Unlock()
}

func (s *mockEventSender) SendEventData(
	ctx context.Context,
	body []byte,
	headers http.Header,
	eventCount int,
) EventSenderResult {
	s.lock.Lock()
	gate := s.gate
	result := EventSenderResult{Success: true, StatusCode: 200}
	if len(s.results) > 0 {
		result = s.results[0]
		s.results = s.results[1:]
	}
	s.lock.Unlock()
	s.payloadsCh <- sentPayload{body: body, headers: headers, count: eventCount}
	if gate != nil {
		<-gate
	}
	return result
}

type mockDelegate struct{}

func (mockDelegate) AnalyticsHeaders() http.Header {
	h := http.Header{}
	h.Set("X-PK-Device-Family", "go")
	return h
}
