package remotedata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/pushkit/go-client-sdk/internal"
	"github.com/pushkit/go-client-sdk/subsystems"
)

const (
	pollingErrorContext     = "on remote data request"
	pollingWillRetryMessage = "will retry at next scheduled poll interval"
)

// PollingConfig describes the configuration for a polling remote data source. It is exported so
// that it can be used in the PollingRemoteDataBuilder.
type PollingConfig struct {
	BaseURI      string
	PollInterval time.Duration
}

// PollingSource is the internal implementation of the polling remote data source.
//
// This type is exported from internal so that the PollingRemoteDataBuilder tests can verify its
// configuration. All other code outside of this package should interact with it only via the
// RemoteDataSource interface.
type PollingSource struct {
	sink               subsystems.RemoteDataUpdateSink
	requestor          requestor
	baseURI            string
	pollInterval       time.Duration
	loggers            ldlog.Loggers
	setInitializedOnce sync.Once
	isInitialized      atomic.Bool
	ctx                context.Context
	cancel             context.CancelFunc
	closeOnce          sync.Once
}

// NewPollingSource creates the internal implementation of the polling remote data source.
func NewPollingSource(
	context subsystems.ClientContext,
	sink subsystems.RemoteDataUpdateSink,
	cfg PollingConfig,
) *PollingSource {
	r := newRequestorImpl(context, context.GetHTTP().CreateHTTPClient(), cfg.BaseURI)
	ps := newPollingSource(context, sink, r, cfg.PollInterval)
	ps.baseURI = cfg.BaseURI
	return ps
}

func newPollingSource(
	clientContext subsystems.ClientContext,
	sink subsystems.RemoteDataUpdateSink,
	requestor requestor,
	pollInterval time.Duration,
) *PollingSource {
	ctx, cancel := context.WithCancel(context.Background())
	loggers := clientContext.GetLogging().Loggers
	loggers.SetPrefix("RemoteData:")
	return &PollingSource{
		sink:         sink,
		requestor:    requestor,
		pollInterval: pollInterval,
		loggers:      loggers,
		ctx:          ctx,
		cancel:       cancel,
	}
}

//nolint:revive // no doc comment for standard method
func (ps *PollingSource) Start(closeWhenReady chan<- struct{}) {
	ps.loggers.Infof("Starting remote data polling with interval: %+v", ps.pollInterval)

	ticker := newTickerWithInitialTick(ps.pollInterval)

	go func() {
		defer ticker.Stop()

		var readyOnce sync.Once
		notifyReady := func() {
			readyOnce.Do(func() {
				close(closeWhenReady)
			})
		}
		// Stop waiting for initialization if we exit, even if initialization failed
		defer notifyReady()

		for {
			select {
			case <-ps.ctx.Done():
				return
			case <-ticker.C:
				if err := ps.poll(); err != nil {
					if ps.ctx.Err() != nil {
						return
					}
					var hse internal.HTTPStatusError
					if errors.As(err, &hse) {
						recoverable := internal.CheckIfErrorIsRecoverableAndLog(
							ps.loggers,
							internal.HTTPErrorDescription(hse.Code),
							pollingErrorContext,
							hse.Code,
							pollingWillRetryMessage,
						)
						if !recoverable {
							notifyReady()
							return
						}
					} else {
						internal.CheckIfErrorIsRecoverableAndLog(ps.loggers, err.Error(), pollingErrorContext, 0,
							pollingWillRetryMessage)
					}
					continue
				}
				ps.setInitializedOnce.Do(func() {
					ps.isInitialized.Store(true)
					ps.loggers.Info("First remote data request successful")
					notifyReady()
				})
			}
		}
	}()
}

func (ps *PollingSource) poll() error {
	payloads, cached, err := ps.requestor.request(ps.ctx)
	if err != nil {
		return err
	}
	// A cached response means nothing changed, so there is nothing to redeliver.
	if !cached {
		ps.sink.Update(payloads)
	}
	return nil
}

//nolint:revive // no doc comment for standard method
func (ps *PollingSource) Close() error {
	ps.closeOnce.Do(ps.cancel)
	return nil
}

//nolint:revive // no doc comment for standard method
func (ps *PollingSource) IsInitialized() bool {
	return ps.isInitialized.Load()
}

// GetBaseURI returns the configured base URI, for testing.
func (ps *PollingSource) GetBaseURI() string {
	return ps.baseURI
}

// GetPollInterval returns the configured polling interval, for testing.
func (ps *PollingSource) GetPollInterval() time.Duration {
	return ps.pollInterval
}

type tickerWithInitialTick struct {
	*time.Ticker
	C <-chan time.Time
}

func newTickerWithInitialTick(interval time.Duration) *tickerWithInitialTick {
	c := make(chan time.Time)
	ticker := time.NewTicker(interval)
	t := &tickerWithInitialTick{
		C:      c,
		Ticker: ticker,
	}
	go func() {
		c <- time.Now() // initial poll happens immediately
		for tt := range ticker.C {
			c <- tt
		}
	}()
	return t
}
