package remotedata

import "github.com/pushkit/go-client-sdk/subsystems"

// NewNullSource returns a RemoteDataSource that never delivers anything and reports itself as
// initialized immediately. It is used in offline mode and by pkcomponents.NoRemoteData.
func NewNullSource() subsystems.RemoteDataSource {
	return nullSource{}
}

type nullSource struct{}

func (nullSource) IsInitialized() bool { return true } //nolint:revive

func (nullSource) Start(closeWhenReady chan<- struct{}) { //nolint:revive
	close(closeWhenReady)
}

func (nullSource) Close() error { return nil } //nolint:revive
