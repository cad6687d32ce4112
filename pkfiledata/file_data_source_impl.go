package pkfiledata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"gopkg.in/ghodss/yaml.v1"

	"github.com/pushkit/go-client-sdk/subsystems"
)

type fileDataSource struct {
	sink            subsystems.RemoteDataUpdateSink
	absFilePaths    []string
	duplicateTypes  DuplicateTypesHandling
	reloaderFactory ReloaderFactory
	retryInterval   time.Duration
	loggers         ldlog.Loggers
	isInitialized   atomic.Bool
	readyCh         chan<- struct{}
	readyOnce       sync.Once
	reloadLock      sync.Mutex
	closeOnce       sync.Once
	closeReloaderCh chan struct{}
	reloaderDoneCh  chan struct{}
}

func newFileDataSourceImpl(
	context subsystems.ClientContext,
	sink subsystems.RemoteDataUpdateSink,
	filePaths []string,
	duplicateTypes DuplicateTypesHandling,
	reloaderFactory ReloaderFactory,
	retryInterval time.Duration,
) (subsystems.RemoteDataSource, error) {
	abs, err := absFilePaths(filePaths)
	if err != nil {
		return nil, err
	}

	fs := &fileDataSource{
		sink:            sink,
		absFilePaths:    abs,
		duplicateTypes:  duplicateTypes,
		reloaderFactory: reloaderFactory,
		retryInterval:   retryInterval,
		loggers:         context.GetLogging().Loggers,
	}
	fs.loggers.SetPrefix("FileDataSource:")
	return fs, nil
}

func (fs *fileDataSource) IsInitialized() bool {
	return fs.isInitialized.Load()
}

func (fs *fileDataSource) Start(closeWhenReady chan<- struct{}) {
	fs.readyCh = closeWhenReady

	var reloader Reloader
	if fs.reloaderFactory != nil {
		var err error
		if reloader, err = fs.reloaderFactory(fs.loggers); err != nil {
			fs.loggers.Errorf("Unable to start reloader: %s", err)
		}
	}
	// Without a reloader, readiness is signaled now whether or not the load succeeded.
	if reloader == nil {
		fs.reload()
		fs.signalStartComplete(fs.isInitialized.Load())
		return
	}

	// With a reloader, readiness is signaled the first time a load succeeds.
	fs.closeReloaderCh = make(chan struct{})
	fs.reloaderDoneCh = make(chan struct{})
	go fs.runReloader(reloader, fs.closeReloaderCh)
}

func (fs *fileDataSource) runReloader(reloader Reloader, closeCh <-chan struct{}) {
	defer close(fs.reloaderDoneCh)
	var retryCh <-chan time.Time
	for {
		if err := reloader.Watch(fs.absFilePaths); err != nil {
			if retryCh == nil {
				fs.loggers.Errorf("Unable to watch remote data files, will retry in %s: %s", fs.retryInterval, err)
				retryCh = time.After(fs.retryInterval)
			}
		} else {
			retryCh = nil
		}

		fs.reload()

		select {
		case <-closeCh:
			if err := reloader.Close(); err != nil {
				fs.loggers.Errorf("Error closing reloader: %s", err)
			}
			return
		case <-reloader.Changed():
		case <-retryCh:
			retryCh = nil
		}
	}
}

// reload rereads all of the configured files. If any file cannot be loaded or parsed, nothing is
// delivered.
func (fs *fileDataSource) reload() {
	fs.reloadLock.Lock()
	defer fs.reloadLock.Unlock()

	filesData := make([]fileData, 0, len(fs.absFilePaths))
	for _, path := range fs.absFilePaths {
		data, err := readFile(path)
		if err != nil {
			fs.loggers.Errorf("Unable to load remote data: %s [%s]", err, path)
			return
		}
		filesData = append(filesData, data)
	}
	payloads, err := mergeFileData(fs.duplicateTypes, filesData...)
	if err != nil {
		fs.loggers.Error(err)
		return
	}
	fs.sink.Update(payloads)
	fs.isInitialized.Store(true)
	fs.signalStartComplete(true)
}

func (fs *fileDataSource) signalStartComplete(succeeded bool) {
	fs.readyOnce.Do(func() {
		fs.isInitialized.Store(succeeded)
		if fs.readyCh != nil {
			close(fs.readyCh)
		}
	})
}

func absFilePaths(paths []string) ([]string, error) {
	absPaths := make([]string, 0, len(paths))
	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("unable to determine absolute path for '%s'", p)
		}
		absPaths = append(absPaths, absPath)
	}
	return absPaths, nil
}

type fileData struct {
	payloads []subsystems.RemoteDataPayload
}

func readFile(path string) (fileData, error) {
	rawData, err := os.ReadFile(path) //nolint:gosec // reading a configured file is the point
	if err != nil {
		return fileData{}, fmt.Errorf("unable to read file: %s", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fileData{}, fmt.Errorf("unable to read file: %s", err)
	}
	if !detectJSON(rawData) {
		if rawData, err = yaml.YAMLToJSON(rawData); err != nil {
			return fileData{}, fmt.Errorf("error parsing file: %s", err)
		}
	}
	doc := ldvalue.Parse(rawData)
	if doc.Type() != ldvalue.ObjectType {
		return fileData{}, fmt.Errorf("error parsing file: expected an object")
	}
	return parseFileData(doc, info.ModTime(), "file://"+filepath.ToSlash(path))
}

func parseFileData(doc ldvalue.Value, modTime time.Time, source string) (fileData, error) {
	var data fileData
	list := doc.GetByKey("payloads")
	if !list.IsNull() && list.Type() != ldvalue.ArrayType {
		return data, fmt.Errorf("error parsing file: \"payloads\" must be an array")
	}
	metadata := ldvalue.ObjectBuild().SetString("url", source).Build()
	for i := 0; i < list.Count(); i++ {
		item := list.GetByIndex(i)
		payloadType := item.GetByKey("type").StringValue()
		if payloadType == "" {
			return data, fmt.Errorf("error parsing file: payload %d has no type", i)
		}
		timestamp := modTime
		if ts := item.GetByKey("timestamp"); ts.IsString() {
			t, err := time.Parse(time.RFC3339, ts.StringValue())
			if err != nil {
				return data, fmt.Errorf("error parsing file: payload %q has an invalid timestamp: %s", payloadType, err)
			}
			timestamp = t
		}
		data.payloads = append(data.payloads, subsystems.RemoteDataPayload{
			Type:      payloadType,
			Timestamp: timestamp,
			Data:      item.GetByKey("data"),
			Metadata:  metadata,
		})
	}
	return data, nil
}

func detectJSON(rawData []byte) bool {
	// A valid JSON file for our purposes must be an object, i.e. it must start with '{'
	return strings.HasPrefix(strings.TrimLeftFunc(string(rawData), unicode.IsSpace), "{")
}

func mergeFileData(duplicateTypes DuplicateTypesHandling, allFileData ...fileData) ([]subsystems.RemoteDataPayload, error) {
	seen := make(map[string]bool)
	ret := []subsystems.RemoteDataPayload{}
	for _, d := range allFileData {
		for _, p := range d.payloads {
			if seen[p.Type] {
				if duplicateTypes == DuplicateTypesIgnoreAllButFirst {
					continue
				}
				return nil, fmt.Errorf("payload type '%s' is specified more than once", p.Type)
			}
			seen[p.Type] = true
			ret = append(ret, p)
		}
	}
	return ret, nil
}

// Close is called automatically when the client is closed.
func (fs *fileDataSource) Close() error {
	fs.closeOnce.Do(func() {
		if fs.closeReloaderCh != nil {
			close(fs.closeReloaderCh)
			<-fs.reloaderDoneCh
		}
	})
	return nil
}
