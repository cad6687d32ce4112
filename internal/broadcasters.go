package internal

import (
	"sync"
)

// This file defines the publish-subscribe model we use for state-change notifications in the SDK:
// schedule state changes, display coordinator availability, remote data payloads.
//
// The standard pattern is that AddListener returns a new receive-only channel; RemoveListener unsubscribes
// that channel, and closes the sending end of it; Broadcast sends a value to all of the subscribed channels
// (if any); and Close unsubscribes and closes all existing channels.
//
// Broadcast never blocks. Broadcasts are often made from a serialization domain (an event manager
// loop or the automation engine queue) that must not stall behind a slow consumer, so a value is
// dropped for any subscriber whose buffer is full.

// Arbitrary buffer size to make it less likely that a subscriber misses values. It is still the
// consumer's responsibility to make sure they're reading the channel.
const subscriberChannelBufferLength = 10

// Broadcaster is our generalized implementation of broadcasters.
type Broadcaster[V any] struct {
	subscribers []channelPair[V]
	closed      bool
	lock        sync.Mutex
}

// We keep both ends of each channel: sendCh to deliver and close, receiveCh to match the value
// that the caller passes to RemoveListener, since those are two different types.
type channelPair[V any] struct {
	sendCh    chan<- V
	receiveCh <-chan V
}

// NewBroadcaster creates a Broadcaster that operates on the specified value type.
func NewBroadcaster[V any]() *Broadcaster[V] {
	return &Broadcaster[V]{}
}

// AddListener adds a subscriber and returns a channel for it to receive values. If the broadcaster
// has already been closed, the returned channel is closed.
func (b *Broadcaster[V]) AddListener() <-chan V {
	ch := make(chan V, subscriberChannelBufferLength)
	var receiveCh <-chan V = ch
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		close(ch)
		return receiveCh
	}
	b.subscribers = append(b.subscribers, channelPair[V]{sendCh: ch, receiveCh: receiveCh})
	return receiveCh
}

// RemoveListener removes a subscriber. The parameter is the same channel that was returned by
// AddListener.
func (b *Broadcaster[V]) RemoveListener(ch <-chan V) {
	b.lock.Lock()
	defer b.lock.Unlock()
	ss := b.subscribers
	for i, s := range ss {
		if s.receiveCh == ch {
			copy(ss[i:], ss[i+1:])
			ss[len(ss)-1] = channelPair[V]{}
			b.subscribers = ss[:len(ss)-1]
			close(s.sendCh)
			break
		}
	}
}

// HasListeners returns true if there are any current subscribers.
func (b *Broadcaster[V]) HasListeners() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subscribers) > 0
}

// Broadcast broadcasts a value to all current subscribers. It returns the number of subscribers
// that could not receive the value because their buffer was full.
func (b *Broadcaster[V]) Broadcast(value V) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	dropped := 0
	for _, ch := range b.subscribers {
		select {
		case ch.sendCh <- value:
		default:
			dropped++
		}
	}
	return dropped
}

// Close closes all current subscriber channels. Later broadcasts are ignored.
func (b *Broadcaster[V]) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, s := range b.subscribers {
		close(s.sendCh)
	}
	b.subscribers = nil
	b.closed = true
}
