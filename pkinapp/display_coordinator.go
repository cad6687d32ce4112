package pkinapp

import (
	"sync"
	"time"

	"github.com/pushkit/go-client-sdk/internal"
)

// DefaultDisplayInterval is the default lock-out after a message finishes displaying.
const DefaultDisplayInterval = 30 * time.Second

// DisplayCoordinator decides when a message may be displayed.
type DisplayCoordinator interface {
	// IsReady returns true if a message may be displayed now.
	IsReady() bool
	// DidBeginDisplaying is called when a message is shown.
	DidBeginDisplaying(message Message)
	// DidFinishDisplaying is called when a message goes away.
	DidFinishDisplaying(message Message)
}

// AvailabilityNotifier is implemented by display coordinators that announce when they become
// ready. The manager re-checks prepared schedules whenever a true value arrives.
type AvailabilityNotifier interface {
	AddAvailabilityListener() <-chan bool
	RemoveAvailabilityListener(ch <-chan bool)
}

// DefaultDisplayCoordinator allows one message at a time, followed by a display interval during
// which no message is displayed.
type DefaultDisplayCoordinator struct {
	displaying  bool
	lockedUntil time.Time
	interval    time.Duration
	stopTimer   func() bool
	listeners   *internal.Broadcaster[bool]
	now         func() time.Time
	afterFunc   func(time.Duration, func()) func() bool
	lock        sync.Mutex
}

// NewDefaultDisplayCoordinator creates a DefaultDisplayCoordinator.
func NewDefaultDisplayCoordinator(interval time.Duration) *DefaultDisplayCoordinator {
	return &DefaultDisplayCoordinator{
		interval:  interval,
		listeners: internal.NewBroadcaster[bool](),
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) func() bool { return time.AfterFunc(d, f).Stop },
	}
}

// SetDisplayInterval changes the interval. It applies from the next message on.
func (c *DefaultDisplayCoordinator) SetDisplayInterval(interval time.Duration) {
	c.lock.Lock()
	c.interval = interval
	c.lock.Unlock()
}

// IsReady implements DisplayCoordinator.
func (c *DefaultDisplayCoordinator) IsReady() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return !c.displaying && !c.now().Before(c.lockedUntil)
}

// DidBeginDisplaying implements DisplayCoordinator.
func (c *DefaultDisplayCoordinator) DidBeginDisplaying(Message) {
	c.lock.Lock()
	c.displaying = true
	c.lock.Unlock()
}

// DidFinishDisplaying implements DisplayCoordinator.
func (c *DefaultDisplayCoordinator) DidFinishDisplaying(Message) {
	c.lock.Lock()
	c.displaying = false
	c.lockedUntil = c.now().Add(c.interval)
	if c.stopTimer != nil {
		c.stopTimer()
	}
	c.stopTimer = c.afterFunc(c.interval, func() { c.listeners.Broadcast(true) })
	c.lock.Unlock()
}

// AddAvailabilityListener implements AvailabilityNotifier.
func (c *DefaultDisplayCoordinator) AddAvailabilityListener() <-chan bool {
	return c.listeners.AddListener()
}

// RemoveAvailabilityListener implements AvailabilityNotifier.
func (c *DefaultDisplayCoordinator) RemoveAvailabilityListener(ch <-chan bool) {
	c.listeners.RemoveListener(ch)
}

// Close stops the coordinator's timer and closes its listeners.
func (c *DefaultDisplayCoordinator) Close() {
	c.lock.Lock()
	if c.stopTimer != nil {
		c.stopTimer()
	}
	c.lock.Unlock()
	c.listeners.Close()
}

// ImmediateDisplayCoordinator is always ready, so messages may overlap.
type ImmediateDisplayCoordinator struct{}

// IsReady implements DisplayCoordinator.
func (ImmediateDisplayCoordinator) IsReady() bool { return true }

// DidBeginDisplaying implements DisplayCoordinator.
func (ImmediateDisplayCoordinator) DidBeginDisplaying(Message) {}

// DidFinishDisplaying implements DisplayCoordinator.
func (ImmediateDisplayCoordinator) DidFinishDisplaying(Message) {}
