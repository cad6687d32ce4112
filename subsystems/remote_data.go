package subsystems

import (
	"io"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// RemoteDataPayload is one type-tagged document delivered by the remote data service.
type RemoteDataPayload struct {
	// Type identifies the consumer of the payload, for instance "in_app_messages".
	Type string
	// Timestamp is the last-modified time of the payload on the server.
	Timestamp time.Time
	// Data is the payload document.
	Data ldvalue.Value
	// Metadata describes the request that produced the payload (URL, locale and so on). Consumers
	// compare it with the metadata they last acknowledged to detect a change of context.
	Metadata ldvalue.Value
}

// RemoteDataSource describes the interface for an object that receives remote data payloads.
type RemoteDataSource interface {
	io.Closer

	// IsInitialized returns true if the data source has successfully delivered its first batch.
	IsInitialized() bool

	// Start tells the data source to begin initializing. It should not try to make any connections
	// or do any other significant activity until Start is called.
	//
	// The data source should close the closeWhenReady channel if and when it has either successfully
	// initialized for the first time, or determined that initialization cannot ever succeed.
	Start(closeWhenReady chan<- struct{})
}

// RemoteDataUpdateSink is the interface that a RemoteDataSource uses to deliver payloads.
//
// Component code does not need to implement this interface; it is passed in by the SDK through
// ClientContext.GetRemoteDataUpdateSink().
type RemoteDataUpdateSink interface {
	// Update delivers a complete, versioned batch of payloads; a payload type missing from the
	// batch means that type currently has no data.
	Update(payloads []RemoteDataPayload)
}
