package internal

import (
	"fmt"
	"testing"
	"time"

	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
)

func TestBroadcaster(t *testing.T) {
	var n int
	testBroadcasterGenerically(t, NewBroadcaster[string],
		func() string {
			n++
			return fmt.Sprintf("value%d", n)
		})
}

func testBroadcasterGenerically[V any](t *testing.T, broadcasterFactory func() *Broadcaster[V], valueFactory func() V) {
	timeout := time.Second

	withBroadcaster := func(t *testing.T, action func(*Broadcaster[V])) {
		b := broadcasterFactory()
		defer b.Close()
		action(b)
	}

	t.Run("broadcast with no subscribers", func(t *testing.T) {
		withBroadcaster(t, func(b *Broadcaster[V]) {
			assert.Equal(t, 0, b.Broadcast(valueFactory()))
		})
	})

	t.Run("broadcast with subscribers", func(t *testing.T) {
		withBroadcaster(t, func(b *Broadcaster[V]) {
			ch1 := b.AddListener()
			ch2 := b.AddListener()

			value := valueFactory()
			b.Broadcast(value)

			assert.Equal(t, value, th.RequireValue(t, ch1, timeout))
			assert.Equal(t, value, th.RequireValue(t, ch2, timeout))
		})
	})

	t.Run("unregister subscriber", func(t *testing.T) {
		withBroadcaster(t, func(b *Broadcaster[V]) {
			ch1 := b.AddListener()
			ch2 := b.AddListener()

			b.RemoveListener(ch1)
			th.AssertChannelClosed(t, ch1, time.Millisecond)

			value := valueFactory()
			b.Broadcast(value)

			assert.Equal(t, value, th.RequireValue(t, ch2, timeout))
		})
	})

	t.Run("hasListeners", func(t *testing.T) {
		withBroadcaster(t, func(b *Broadcaster[V]) {
			assert.False(t, b.HasListeners())

			ch1 := b.AddListener()
			ch2 := b.AddListener()
			assert.True(t, b.HasListeners())

			b.RemoveListener(ch1)
			assert.True(t, b.HasListeners())

			b.RemoveListener(ch2)
			assert.False(t, b.HasListeners())
		})
	})

	t.Run("full subscriber does not block others", func(t *testing.T) {
		withBroadcaster(t, func(b *Broadcaster[V]) {
			slow := b.AddListener()
			for i := 0; i < subscriberChannelBufferLength; i++ {
				b.Broadcast(valueFactory())
			}
			fast := b.AddListener()

			value := valueFactory()
			assert.Equal(t, 1, b.Broadcast(value))
			assert.Equal(t, value, th.RequireValue(t, fast, timeout))
			assert.Len(t, slow, subscriberChannelBufferLength)
		})
	})

	t.Run("close", func(t *testing.T) {
		b := broadcasterFactory()
		ch1 := b.AddListener()
		ch2 := b.AddListener()
		b.Close()
		th.AssertChannelClosed(t, ch1, time.Millisecond)
		th.AssertChannelClosed(t, ch2, time.Millisecond)

		ch3 := b.AddListener()
		th.AssertChannelClosed(t, ch3, time.Millisecond)
		assert.Equal(t, 0, b.Broadcast(valueFactory()))
	})
}
