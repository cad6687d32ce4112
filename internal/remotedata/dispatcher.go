package remotedata

import (
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/internal"
	"github.com/pushkit/go-client-sdk/subsystems"
)

// Dispatcher receives payload batches from a RemoteDataSource and delivers each payload to the
// subscribers of its type. A type that was present in an earlier batch but is missing from a new
// one is delivered as an empty payload with a null Data value.
type Dispatcher struct {
	broadcasters map[string]*internal.Broadcaster[subsystems.RemoteDataPayload]
	last         map[string]subsystems.RemoteDataPayload
	closed       bool
	lock         sync.Mutex
}

var _ subsystems.RemoteDataUpdateSink = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		broadcasters: make(map[string]*internal.Broadcaster[subsystems.RemoteDataPayload]),
		last:         make(map[string]subsystems.RemoteDataPayload),
	}
}

// Update implements subsystems.RemoteDataUpdateSink.
func (d *Dispatcher) Update(payloads []subsystems.RemoteDataPayload) {
	d.lock.Lock()
	if d.closed {
		d.lock.Unlock()
		return
	}
	seen := make(map[string]bool, len(payloads))
	var deliveries []subsystems.RemoteDataPayload
	for _, p := range payloads {
		seen[p.Type] = true
		d.last[p.Type] = p
		deliveries = append(deliveries, p)
	}
	for payloadType, previous := range d.last {
		if !seen[payloadType] {
			empty := subsystems.RemoteDataPayload{Type: payloadType, Data: ldvalue.Null(), Metadata: previous.Metadata}
			delete(d.last, payloadType)
			deliveries = append(deliveries, empty)
		}
	}
	targets := make([]*internal.Broadcaster[subsystems.RemoteDataPayload], len(deliveries))
	for i, p := range deliveries {
		targets[i] = d.broadcasters[p.Type]
	}
	d.lock.Unlock()

	for i, p := range deliveries {
		if targets[i] != nil {
			targets[i].Broadcast(p)
		}
	}
}

// Subscribe returns a channel that receives every payload of the given type delivered from now
// on. Use Last to get the payload delivered before subscribing.
func (d *Dispatcher) Subscribe(payloadType string) <-chan subsystems.RemoteDataPayload {
	d.lock.Lock()
	defer d.lock.Unlock()
	b := d.broadcasters[payloadType]
	if b == nil {
		b = internal.NewBroadcaster[subsystems.RemoteDataPayload]()
		d.broadcasters[payloadType] = b
		if d.closed {
			b.Close()
		}
	}
	return b.AddListener()
}

// Unsubscribe stops delivery to a channel returned by Subscribe.
func (d *Dispatcher) Unsubscribe(payloadType string, ch <-chan subsystems.RemoteDataPayload) {
	d.lock.Lock()
	b := d.broadcasters[payloadType]
	d.lock.Unlock()
	if b != nil {
		b.RemoveListener(ch)
	}
}

// Last returns the most recent payload of the given type, or false if there is none.
func (d *Dispatcher) Last(payloadType string) (subsystems.RemoteDataPayload, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	p, ok := d.last[payloadType]
	return p, ok
}

// Close closes every subscriber channel. Later updates are ignored.
func (d *Dispatcher) Close() {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, b := range d.broadcasters {
		b.Close()
	}
}
