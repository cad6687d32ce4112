package pkclient

import (
	"fmt"

	"github.com/pushkit/go-client-sdk/pkcomponents"
	"github.com/pushkit/go-client-sdk/pkevents"
	"github.com/pushkit/go-client-sdk/subsystems"
)

func newClientContextFromConfig(
	appKey string,
	config Config,
	analyticsDelegate pkevents.Delegate,
) (*clientContextImpl, error) {
	basicContext := subsystems.BasicClientContext{
		AppKey:           appKey,
		ApplicationInfo:  config.ApplicationInfo,
		Offline:          config.Offline,
		ServiceEndpoints: config.ServiceEndpoints,
	}

	loggingFactory := config.Logging
	if loggingFactory == nil {
		loggingFactory = pkcomponents.Logging()
	}
	logging, err := loggingFactory.Build(basicContext)
	if err != nil {
		return nil, err
	}
	basicContext.Logging = logging

	httpFactory := config.HTTP
	if httpFactory == nil {
		httpFactory = pkcomponents.HTTPConfiguration()
	}
	http, err := httpFactory.Build(basicContext)
	if err != nil {
		return nil, err
	}
	basicContext.HTTP = http

	storeFactory := config.DataStore
	if storeFactory == nil {
		storeFactory = pkcomponents.InMemoryDataStore()
	}
	store, err := storeFactory.Build(basicContext)
	if err != nil {
		return nil, fmt.Errorf("creating data store: %w", err)
	}
	basicContext.DataStore = store

	return &clientContextImpl{
		BasicClientContext: basicContext,
		analyticsDelegate:  analyticsDelegate,
	}, nil
}
