package pkservices

import (
	"net/http"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
)

const (
	// EventsPath is the expected request path for event uploads.
	EventsPath = "/api/events"
	// RemoteDataPathPrefix is the start of the request path for remote data polling; the app key
	// and platform follow it.
	RemoteDataPathPrefix = "/api/remote-data/app/"
	// ChannelTagsPath is the expected request path for channel tag-group mutations.
	ChannelTagsPath = "/api/channels/tags"
	// NamedUserTagsPath is the expected request path for named-user tag-group mutations.
	NamedUserTagsPath = "/api/named_users/tags"
	// TagGroupsLookupPath is the expected request path for tag-group lookups.
	TagGroupsLookupPath = "/api/channels/tags-lookup"
)

// RemoteDataServiceHandler creates an HTTP handler to mimic the remote data service. It returns the
// current content of data for any GET request whose path starts with RemoteDataPathPrefix; other
// paths get a 404 and other methods a 405.
func RemoteDataServiceHandler(data *RemoteData) http.Handler {
	get := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(data.String()))
	})
	return withPathPrefix(RemoteDataPathPrefix, httphelpers.HandlerForMethod(http.MethodGet, get, nil))
}

// EventsServiceHandler creates an HTTP handler to mimic the event collector. It accepts any POST
// to EventsPath. The headers, which may be nil, are added to every response; the SDK reads its
// batch limits from them.
func EventsServiceHandler(headers http.Header) http.Handler {
	// Keys written as literals may not be in canonical form, and Header.Get would not find them.
	canonical := make(http.Header, len(headers))
	for name, values := range headers {
		for _, v := range values {
			canonical.Add(name, v)
		}
	}
	return httphelpers.HandlerForPath(EventsPath,
		httphelpers.HandlerForMethod(http.MethodPost, httphelpers.HandlerWithResponse(http.StatusOK, canonical, nil), nil),
		nil)
}

// TagGroupsServiceHandler creates an HTTP handler to mimic the tag-group part of the device API. It
// accepts mutations for channels and named users, and answers lookups with lookupResponse, which
// has the form {"tag_groups": {...}, "last_modified": "..."}.
func TagGroupsServiceHandler(lookupResponse ldvalue.Value) http.Handler {
	ok := httphelpers.HandlerForMethod(http.MethodPost, httphelpers.HandlerWithStatus(http.StatusOK), nil)
	lookup := httphelpers.HandlerForMethod(http.MethodPost,
		httphelpers.HandlerWithJSONResponse(lookupResponse, nil), nil)
	return httphelpers.HandlerForPath(ChannelTagsPath, ok,
		httphelpers.HandlerForPath(NamedUserTagsPath, ok,
			httphelpers.HandlerForPath(TagGroupsLookupPath, lookup, nil)))
}

func withPathPrefix(prefix string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, prefix) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
