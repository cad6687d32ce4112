package pkfiledata

import (
	"errors"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/pushkit/go-client-sdk/subsystems"
)

// Reloader tells the file data source when to reread its files. Its standard implementation is in
// the pkfilewatch package.
//
// The data source calls Watch before every load, so that a change made while watching was
// incomplete is still seen by the load that follows. If Watch fails, the source loads anyway and
// calls Watch again after the retry interval; that is how a file or directory created after the
// client started gets picked up. Close is called once, when the data source is closed.
type Reloader interface {
	Watch(paths []string) error
	// Changed receives a value when a watched file may have changed.
	Changed() <-chan struct{}
	Close() error
}

// ReloaderFactory creates the Reloader for DataSourceBuilder.Reloader.
type ReloaderFactory func(loggers ldlog.Loggers) (Reloader, error)

// DefaultReloadRetryInterval is the default value for DataSourceBuilder.ReloadRetryInterval.
const DefaultReloadRetryInterval = time.Second

// DuplicateTypesHandling is a parameter type used with DataSourceBuilder.DuplicateTypesHandling.
type DuplicateTypesHandling string

const (
	// DuplicateTypesFail means that loading fails if a payload type appears more than once. This is
	// the default behavior.
	DuplicateTypesFail DuplicateTypesHandling = "fail"

	// DuplicateTypesIgnoreAllButFirst means that the first payload of each type is used.
	DuplicateTypesIgnoreAllButFirst DuplicateTypesHandling = "ignore"
)

var errNoSink = errors.New("pkfiledata: no remote data update sink in client context")

// DataSourceBuilder is a builder for configuring the file-based remote data source.
//
// Obtain an instance of this type by calling DataSource(). Builder calls can be chained, for example:
//
//	config.RemoteData = pkfiledata.DataSource().FilePaths("file1").FilePaths("file2")
type DataSourceBuilder struct {
	filePaths              []string
	duplicateTypesHandling DuplicateTypesHandling
	reloaderFactory        ReloaderFactory
	retryInterval          time.Duration
}

// DataSource returns a configurable builder for a file-based remote data source.
func DataSource() *DataSourceBuilder {
	return &DataSourceBuilder{duplicateTypesHandling: DuplicateTypesFail, retryInterval: DefaultReloadRetryInterval}
}

// DuplicateTypesHandling specifies how to handle a payload type that appears more than once.
//
// If this is not specified, or if you set it to an unrecognized value, the default is
// DuplicateTypesFail.
func (b *DataSourceBuilder) DuplicateTypesHandling(handling DuplicateTypesHandling) *DataSourceBuilder {
	b.duplicateTypesHandling = handling
	return b
}

// FilePaths specifies the input data files. The paths may be any number of absolute or relative
// file paths.
func (b *DataSourceBuilder) FilePaths(paths ...string) *DataSourceBuilder {
	b.filePaths = append(b.filePaths, paths...)
	return b
}

// Reloader specifies a mechanism for reloading data files.
//
// It is normally used with the pkfilewatch package, as follows:
//
//	config := pkclient.Config{
//	    RemoteData: pkfiledata.DataSource().
//	        FilePaths(filePaths...).
//	        Reloader(pkfilewatch.WatchFiles),
//	}
func (b *DataSourceBuilder) Reloader(reloaderFactory ReloaderFactory) *DataSourceBuilder {
	b.reloaderFactory = reloaderFactory
	return b
}

// ReloadRetryInterval sets how long the source waits before calling the reloader's Watch again
// after it failed. It has no effect without a Reloader.
//
// The default value is DefaultReloadRetryInterval; zero or negative values select the default.
func (b *DataSourceBuilder) ReloadRetryInterval(interval time.Duration) *DataSourceBuilder {
	if interval <= 0 {
		interval = DefaultReloadRetryInterval
	}
	b.retryInterval = interval
	return b
}

// Build is called internally by the SDK.
func (b *DataSourceBuilder) Build(context subsystems.ClientContext) (subsystems.RemoteDataSource, error) {
	sink := context.GetRemoteDataUpdateSink()
	if sink == nil {
		return nil, errNoSink
	}
	return newFileDataSourceImpl(context, sink, b.filePaths, b.duplicateTypesHandling, b.reloaderFactory, b.retryInterval)
}
