package pkfilewatch

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/pushkit/go-client-sdk/pkfiledata"
)

// fileWatcher watches the directory of each data file. Directory watches also report files that
// are created, replaced or renamed into place, which a watch on the file itself would miss.
type fileWatcher struct {
	watcher *fsnotify.Watcher
	loggers ldlog.Loggers
	changed chan struct{}
	lock    sync.Mutex
	files   map[string]bool
}

// WatchFiles is a pkfiledata.ReloaderFactory that reloads the data files whenever one of them
// changes. Use it as follows:
//
//	config := pkclient.Config{
//	    RemoteData: pkfiledata.DataSource().
//	        FilePaths(filePaths...).
//	        Reloader(pkfilewatch.WatchFiles),
//	}
//
// A file, or its directory, need not exist yet; the data source keeps trying to watch it.
func WatchFiles(loggers ldlog.Loggers) (pkfiledata.Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to create file watcher: %w", err)
	}
	fw := &fileWatcher{
		watcher: watcher,
		loggers: loggers,
		changed: make(chan struct{}, 1),
		files:   make(map[string]bool),
	}
	go fw.forwardEvents()
	return fw, nil
}

// Watch adds a watch for each path it can. It returns every failure joined; paths that failed are
// tried again on the next call.
func (fw *fileWatcher) Watch(paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := fw.watch(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (fw *fileWatcher) watch(path string) error {
	dir := filepath.Dir(path)
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("unable to resolve %q: %w", dir, err)
	}
	if err := fw.watcher.Add(realDir); err != nil {
		return fmt.Errorf("unable to watch %q: %w", realDir, err)
	}
	fw.lock.Lock()
	fw.files[filepath.Join(realDir, filepath.Base(path))] = true
	fw.lock.Unlock()
	return nil
}

func (fw *fileWatcher) Changed() <-chan struct{} {
	return fw.changed
}

func (fw *fileWatcher) Close() error {
	return fw.watcher.Close()
}

// forwardEvents turns events about the data files into change notifications. Notifications that
// the data source has not consumed yet are merged into one.
func (fw *fileWatcher) forwardEvents() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.isDataFile(event.Name) {
				continue
			}
			select {
			case fw.changed <- struct{}{}:
			default:
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.loggers.Errorf("File watcher error: %s", err)
		}
	}
}

func (fw *fileWatcher) isDataFile(name string) bool {
	fw.lock.Lock()
	defer fw.lock.Unlock()
	return fw.files[name]
}
