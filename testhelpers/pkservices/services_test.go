package pkservices

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const remoteDataPath = RemoteDataPathPrefix + "app-key/go"

func readBody(t *testing.T, resp *http.Response) string {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRemoteDataEndpoint(t *testing.T) {
	timestamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	data := NewRemoteData().Payload("in_app_messages", timestamp, ldvalue.ObjectBuild().Build())
	client := httphelpers.ClientFromHandler(RemoteDataServiceHandler(data))

	resp, err := client.Get("http://fake" + remoteDataPath)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	body := ldvalue.Parse([]byte(readBody(t, resp)))
	payload := body.GetByKey("payloads").GetByIndex(0)
	assert.Equal(t, "in_app_messages", payload.GetByKey("type").StringValue())
	assert.Equal(t, "2024-01-02T03:04:05Z", payload.GetByKey("timestamp").StringValue())
}

func TestRemoteDataReadsCurrentContentForEachRequest(t *testing.T) {
	data := NewRemoteData()
	client := httphelpers.ClientFromHandler(RemoteDataServiceHandler(data))

	resp, err := client.Get("http://fake" + remoteDataPath)
	require.NoError(t, err)
	assert.Equal(t, `{"payloads":[]}`, readBody(t, resp))

	data.Payload("a", time.Now(), ldvalue.Null()).Payload("a", time.Now(), ldvalue.Bool(true))
	resp, err = client.Get("http://fake" + remoteDataPath)
	require.NoError(t, err)
	payloads := ldvalue.Parse([]byte(readBody(t, resp))).GetByKey("payloads")
	require.Equal(t, 1, payloads.Count())
	assert.Equal(t, ldvalue.Bool(true), payloads.GetByIndex(0).GetByKey("data"))

	data.RemovePayload("a")
	assert.Equal(t, `{"payloads":[]}`, data.String())
}

func TestRemoteDataReturns404ForWrongURLAnd405ForWrongMethod(t *testing.T) {
	client := httphelpers.ClientFromHandler(RemoteDataServiceHandler(NewRemoteData()))

	resp, err := client.Get("http://fake/other/path")
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	resp, err = client.Post("http://fake"+remoteDataPath, "text/plain", bytes.NewBufferString("hello"))
	require.NoError(t, err)
	assert.Equal(t, 405, resp.StatusCode)
}

func TestEventsEndpoint(t *testing.T) {
	// The key is deliberately not in canonical form.
	headers := http.Header{"X-PK-Max-Batch": []string{"100"}}
	client := httphelpers.ClientFromHandler(EventsServiceHandler(headers))

	resp, err := client.Post("http://fake"+EventsPath, "application/json", bytes.NewBufferString("[]"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "100", resp.Header.Get("X-PK-Max-Batch"))

	resp, err = client.Get("http://fake" + EventsPath)
	require.NoError(t, err)
	assert.Equal(t, 405, resp.StatusCode)

	resp, err = client.Post("http://fake/other", "application/json", bytes.NewBufferString("[]"))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestTagGroupsEndpoints(t *testing.T) {
	lookup := ldvalue.Parse([]byte(`{"tag_groups":{"g":["a"]},"last_modified":"yesterday"}`))
	client := httphelpers.ClientFromHandler(TagGroupsServiceHandler(lookup))

	for _, path := range []string{ChannelTagsPath, NamedUserTagsPath} {
		resp, err := client.Post("http://fake"+path, "application/json", bytes.NewBufferString("{}"))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode, path)
	}

	resp, err := client.Post("http://fake"+TagGroupsLookupPath, "application/json", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, lookup.Equal(ldvalue.Parse([]byte(readBody(t, resp)))))

	resp, err = client.Get("http://fake" + ChannelTagsPath)
	require.NoError(t, err)
	assert.Equal(t, 405, resp.StatusCode)
}
