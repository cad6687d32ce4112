package pktaggroups

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/internal/endpoints"
)

func TestLookupRequestAndResponse(t *testing.T) {
	response := ldvalue.Parse([]byte(`{"tag_groups":{"g":["b","a"]},"last_modified":"2024-01-01T00:00:00"}`))
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithJSONResponse(response, nil))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		headers := http.Header{}
		headers.Set("Authorization", "Basic xyz")
		client := NewHTTPAPIClient(server.Client(), server.URL, headers, ldlog.NewDisabledLoggers())
		cached := &LookupResponse{LastModified: "earlier"}
		result, err := client.Lookup(context.Background(), "chan", TagGroups{"g": {"a"}}, cached)
		require.NoError(t, err)
		assert.Equal(t, TagGroups{"g": {"a", "b"}}, result.TagGroups)
		assert.Equal(t, "2024-01-01T00:00:00", result.LastModified)
		assert.Equal(t, 200, result.StatusCode)
		assert.False(t, result.FetchedAt.IsZero())

		r := th.RequireValue(t, requestsCh, time.Second)
		assert.Equal(t, endpoints.TagGroupsLookupRequestPath, r.Request.URL.Path)
		assert.Equal(t, "Basic xyz", r.Request.Header.Get("Authorization"))
		body := ldvalue.Parse(r.Body)
		assert.Equal(t, "chan", body.GetByKey("channel_id").StringValue())
		assert.Equal(t, "go", body.GetByKey("device_type").StringValue())
		assert.Equal(t, "earlier", body.GetByKey("if_modified_since").StringValue())
		assert.True(t, ldvalue.Parse([]byte(`{"g":["a"]}`)).Equal(body.GetByKey("tag_groups")))
	})
}

func TestLookupNotModifiedReturnsCachedTags(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(http.StatusNotModified), func(server *httptest.Server) {
		client := NewHTTPAPIClient(server.Client(), server.URL, nil, ldlog.NewDisabledLoggers())
		cached := &LookupResponse{TagGroups: TagGroups{"g": {"a"}}, LastModified: "x"}
		result, err := client.Lookup(context.Background(), "chan", TagGroups{"g": {"a"}}, cached)
		require.NoError(t, err)
		assert.Equal(t, cached.TagGroups, result.TagGroups)
		assert.Equal(t, http.StatusNotModified, result.StatusCode)
		assert.False(t, result.FetchedAt.IsZero())
	})
}

func TestLookupErrorStatus(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(500), func(server *httptest.Server) {
		client := NewHTTPAPIClient(server.Client(), server.URL, nil, ldlog.NewDisabledLoggers())
		result, err := client.Lookup(context.Background(), "chan", TagGroups{"g": {"a"}}, nil)
		assert.Error(t, err)
		assert.Equal(t, 500, result.StatusCode)
	})
}

func TestLookupMalformedResponse(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(200, nil, []byte(`not json`))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		client := NewHTTPAPIClient(server.Client(), server.URL, nil, ldlog.NewDisabledLoggers())
		_, err := client.Lookup(context.Background(), "chan", TagGroups{"g": {"a"}}, nil)
		assert.Error(t, err)
	})
}

func TestUpdateTagsRequest(t *testing.T) {
	for _, tc := range []struct {
		tagsType    Type
		path        string
		audienceKey string
	}{
		{ChannelType, endpoints.ChannelTagsRequestPath, "channel_id"},
		{NamedUserType, endpoints.NamedUserTagsRequestPath, "named_user_id"},
	} {
		t.Run(tc.tagsType.String(), func(t *testing.T) {
			handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
			httphelpers.WithServer(handler, func(server *httptest.Server) {
				client := NewHTTPAPIClient(server.Client(), server.URL, nil, ldlog.NewDisabledLoggers())
				status, err := client.UpdateTags(context.Background(), tc.tagsType, "id1", AddTagsMutation("g", "a"))
				require.NoError(t, err)
				assert.Equal(t, 200, status)

				r := th.RequireValue(t, requestsCh, time.Second)
				assert.Equal(t, tc.path, r.Request.URL.Path)
				expected := ldvalue.ObjectBuild().
					Set("audience", ldvalue.ObjectBuild().Set(tc.audienceKey, ldvalue.String("id1")).Build()).
					Set("add", ldvalue.Parse([]byte(`{"g":["a"]}`))).
					Build()
				assert.True(t, expected.Equal(ldvalue.Parse(r.Body)), string(r.Body))
			})
		})
	}
}

func TestUpdateTagsErrorStatus(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(400), func(server *httptest.Server) {
		client := NewHTTPAPIClient(server.Client(), server.URL, nil, ldlog.NewDisabledLoggers())
		status, err := client.UpdateTags(context.Background(), ChannelType, "id1", AddTagsMutation("g", "a"))
		assert.Error(t, err)
		assert.Equal(t, 400, status)
	})
}
