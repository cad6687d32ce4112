package pktaggroups

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/internal"
	"github.com/pushkit/go-client-sdk/internal/endpoints"
)

const deviceType = "go"

// LookupResponse is the server's view of the channel's tag groups.
type LookupResponse struct {
	TagGroups    TagGroups
	LastModified string
	StatusCode   int
	// FetchedAt is when the response was received.
	FetchedAt time.Time
}

// LookupAPIClient fetches the tag groups the server holds for a channel.
type LookupAPIClient interface {
	// Lookup requests the given groups. If cached is not nil, its LastModified value is sent so the
	// server can answer that nothing has changed; in that case the cached tag groups are returned
	// with a new FetchedAt time.
	Lookup(ctx context.Context, channelID string, requested TagGroups, cached *LookupResponse) (LookupResponse, error)
}

// UpdateAPIClient sends tag-group mutations to the server.
type UpdateAPIClient interface {
	// UpdateTags makes one attempt to apply the mutation to the identified channel or named user. It
	// returns the HTTP status, or zero and an error if there was no response.
	UpdateTags(ctx context.Context, t Type, identifier string, m Mutation) (int, error)
}

// HTTPAPIClient implements LookupAPIClient and UpdateAPIClient against the device API.
type HTTPAPIClient struct {
	client         *http.Client
	baseURI        string
	defaultHeaders http.Header
	loggers        ldlog.Loggers
	now            func() time.Time
}

// NewHTTPAPIClient creates an HTTPAPIClient. If client is nil, http.DefaultClient is used.
func NewHTTPAPIClient(client *http.Client, baseURI string, defaultHeaders http.Header, loggers ldlog.Loggers) *HTTPAPIClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAPIClient{
		client:         client,
		baseURI:        baseURI,
		defaultHeaders: defaultHeaders,
		loggers:        loggers,
		now:            time.Now,
	}
}

func (c *HTTPAPIClient) Lookup(
	ctx context.Context,
	channelID string,
	requested TagGroups,
	cached *LookupResponse,
) (LookupResponse, error) {
	b := ldvalue.ObjectBuild().
		Set("channel_id", ldvalue.String(channelID)).
		Set("device_type", ldvalue.String(deviceType)).
		Set("tag_groups", requested.AsValue())
	if cached != nil && cached.LastModified != "" {
		b.Set("if_modified_since", ldvalue.String(cached.LastModified))
	}
	uri := endpoints.AddPath(c.baseURI, endpoints.TagGroupsLookupRequestPath)
	status, body, err := c.post(ctx, uri, b.Build())
	if err != nil {
		return LookupResponse{}, err
	}
	if status == http.StatusNotModified && cached != nil {
		ret := *cached
		ret.StatusCode = status
		ret.FetchedAt = c.now()
		return ret, nil
	}
	if err := internal.CheckForHTTPError(status, uri); err != nil {
		return LookupResponse{StatusCode: status}, err
	}
	parsed := ldvalue.Parse(body)
	if parsed.Type() != ldvalue.ObjectType {
		return LookupResponse{StatusCode: status}, errors.New("malformed tag group lookup response")
	}
	return LookupResponse{
		TagGroups:    TagGroupsFromValue(parsed.GetByKey("tag_groups")),
		LastModified: parsed.GetByKey("last_modified").StringValue(),
		StatusCode:   status,
		FetchedAt:    c.now(),
	}, nil
}

func (c *HTTPAPIClient) UpdateTags(ctx context.Context, t Type, identifier string, m Mutation) (int, error) {
	var path string
	var audience ldvalue.Value
	switch t {
	case NamedUserType:
		path = endpoints.NamedUserTagsRequestPath
		audience = ldvalue.ObjectBuild().Set("named_user_id", ldvalue.String(identifier)).Build()
	default:
		path = endpoints.ChannelTagsRequestPath
		audience = ldvalue.ObjectBuild().Set("channel_id", ldvalue.String(identifier)).Build()
	}
	payload := m.AsValue()
	b := ldvalue.ObjectBuild().Set("audience", audience)
	for _, key := range payload.Keys(nil) {
		b.Set(key, payload.GetByKey(key))
	}
	uri := endpoints.AddPath(c.baseURI, path)
	status, _, err := c.post(ctx, uri, b.Build())
	if err != nil {
		return 0, err
	}
	return status, internal.CheckForHTTPError(status, uri)
}

func (c *HTTPAPIClient) post(ctx context.Context, uri string, payload ldvalue.Value) (int, []byte, error) {
	data := []byte(payload.JSONString())
	if c.loggers.IsDebugEnabled() {
		c.loggers.Debugf("POST %s: %s", uri, data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	for k, vv := range c.defaultHeaders {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.pushkit+json; version=3;")
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
