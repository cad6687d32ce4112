package pkfilewatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/internal/sharedtest"
	"github.com/pushkit/go-client-sdk/pkfiledata"
	"github.com/pushkit/go-client-sdk/subsystems"
)

const waitTimeout = 2 * time.Second

func replaceFileContents(t *testing.T, filename string, text string) {
	require.NoError(t, os.WriteFile(filename, []byte(text), 0600))
}

func newTestWatcher(t *testing.T) pkfiledata.Reloader {
	r, err := WatchFiles(ldlog.NewDisabledLoggers())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestWatcherReportsChangeToDataFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "payloads.json")
	replaceFileContents(t, filename, "{}")
	r := newTestWatcher(t)
	require.NoError(t, r.Watch([]string{filename}))

	replaceFileContents(t, filename, `{"payloads": []}`)
	th.RequireValue(t, r.Changed(), waitTimeout)
}

func TestWatcherIgnoresOtherFilesInDirectory(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "payloads.json")
	r := newTestWatcher(t)
	require.NoError(t, r.Watch([]string{filename}))

	replaceFileContents(t, filepath.Join(dir, "other.json"), "{}")
	th.AssertNoMoreValues(t, r.Changed(), 200*time.Millisecond)

	replaceFileContents(t, filename, "{}")
	th.RequireValue(t, r.Changed(), waitTimeout)
}

func TestWatcherFailsForMissingDirectoryUntilItExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "later")
	filename := filepath.Join(dir, "payloads.json")
	other := filepath.Join(t.TempDir(), "other.json")
	r := newTestWatcher(t)

	// The path that can be watched is watched even though the other one fails.
	assert.Error(t, r.Watch([]string{filename, other}))
	replaceFileContents(t, other, "{}")
	th.RequireValue(t, r.Changed(), waitTimeout)

	require.NoError(t, os.Mkdir(dir, 0700))
	require.NoError(t, r.Watch([]string{filename, other}))
	replaceFileContents(t, filename, "{}")
	th.RequireValue(t, r.Changed(), waitTimeout)
}

func TestCloseStopsWatcher(t *testing.T) {
	r, err := WatchFiles(ldlog.NewDisabledLoggers())
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Error(t, r.Watch([]string{filepath.Join(t.TempDir(), "payloads.json")}))
}

func payloadValue(sink *sharedtest.MockRemoteDataSink, payloadType string) (int, bool) {
	for _, p := range sink.Last() {
		if p.Type == payloadType {
			return p.Data.GetByKey("n").IntValue(), true
		}
	}
	return 0, false
}

func startWatchedSource(t *testing.T, filePath string) (subsystems.RemoteDataSource, *sharedtest.MockRemoteDataSink, chan struct{}) {
	sink := sharedtest.NewMockRemoteDataSink()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sink.UpdatesCh:
			case <-done:
				return
			}
		}
	}()
	context := sharedtest.NewSimpleTestContext("")
	context.RemoteDataUpdateSink = sink
	dataSource, err := pkfiledata.DataSource().
		FilePaths(filePath).
		Reloader(WatchFiles).
		ReloadRetryInterval(50 * time.Millisecond).
		Build(context)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = dataSource.Close()
		close(done)
	})
	closeWhenReady := make(chan struct{})
	dataSource.Start(closeWhenReady)
	return dataSource, sink, closeWhenReady
}

func TestWatchedSourceReloadsWhenFileBecomesValid(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "payloads.yml")
	replaceFileContents(t, filename, "payloads: bad\n")

	dataSource, sink, closeWhenReady := startWatchedSource(t, filename)
	th.AssertNoMoreValues(t, closeWhenReady, 100*time.Millisecond)

	replaceFileContents(t, filename, `
payloads:
  - type: in_app_messages
    data:
      n: 1
`)
	th.AssertChannelClosed(t, closeWhenReady, waitTimeout)
	assert.True(t, dataSource.IsInitialized())
	n, ok := payloadValue(sink, "in_app_messages")
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	replaceFileContents(t, filename, `
payloads:
  - type: in_app_messages
    data:
      n: 2
`)
	require.Eventually(t, func() bool {
		n, _ := payloadValue(sink, "in_app_messages")
		return n == 2
	}, waitTimeout, 10*time.Millisecond)
}

func TestWatchedSourcePicksUpFileCreatedLater(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "payloads.json")
	dataSource, sink, closeWhenReady := startWatchedSource(t, filename)

	replaceFileContents(t, filename, `{"payloads": [{"type": "in_app_messages", "data": {"n": 1}}]}`)
	th.AssertChannelClosed(t, closeWhenReady, waitTimeout)
	require.Eventually(t, func() bool {
		_, ok := payloadValue(sink, "in_app_messages")
		return ok
	}, waitTimeout, 10*time.Millisecond)
	assert.True(t, dataSource.IsInitialized())
}

func TestWatchedSourcePicksUpDirectoryCreatedLater(t *testing.T) {
	dirPath := filepath.Join(t.TempDir(), "test")
	filePath := filepath.Join(dirPath, "payloads.yml")
	dataSource, sink, closeWhenReady := startWatchedSource(t, filePath)

	require.NoError(t, os.Mkdir(dirPath, 0700))
	// Give the source a retry interval to start watching the new directory. A write that lands
	// before then is still seen by the load that follows the retry.
	time.Sleep(100 * time.Millisecond)
	replaceFileContents(t, filePath, `
payloads:
  - type: in_app_messages
    data:
      n: 1
`)
	th.AssertChannelClosed(t, closeWhenReady, waitTimeout)
	require.Eventually(t, func() bool {
		_, ok := payloadValue(sink, "in_app_messages")
		return ok
	}, waitTimeout, 10*time.Millisecond)
	assert.True(t, dataSource.IsInitialized())
}
