package remotedata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/internal"
	"github.com/pushkit/go-client-sdk/internal/endpoints"
	"github.com/pushkit/go-client-sdk/subsystems"
)

// requestor fetches one complete batch of payloads. cached is true if the server reported that
// nothing changed since the previous request.
type requestor interface {
	request(ctx context.Context) (payloads []subsystems.RemoteDataPayload, cached bool, err error)
}

type malformedJSONError struct {
	innerError error
}

func (e malformedJSONError) Error() string {
	return e.innerError.Error()
}

type requestorImpl struct {
	httpClient      *http.Client
	requestURI      string
	metadata        ldvalue.Value
	headers         http.Header
	loggers         ldlog.Loggers
	logDataPayloads bool
}

func newRequestorImpl(context subsystems.ClientContext, httpClient *http.Client, baseURI string) *requestorImpl {
	if httpClient == nil {
		httpClient = context.GetHTTP().CreateHTTPClient()
	}

	modifiedClient := *httpClient
	modifiedClient.Transport = &httpcache.Transport{
		Cache:               httpcache.NewMemoryCache(),
		MarkCachedResponses: true,
		Transport:           httpClient.Transport,
	}

	appInfo := context.GetApplicationInfo()
	query := url.Values{}
	if lang := appInfo.LanguageCode(); lang != "" {
		query.Set("language", lang)
	}
	if country := appInfo.CountryCode(); country != "" {
		query.Set("country", country)
	}
	query.Set("sdk_version", internal.SDKVersion)
	uri := endpoints.AddPath(baseURI, fmt.Sprintf(endpoints.RemoteDataRequestPathFormat, url.PathEscape(context.GetAppKey()))) +
		"?" + query.Encode()

	return &requestorImpl{
		httpClient: &modifiedClient,
		requestURI: uri,
		metadata: ldvalue.ObjectBuild().
			SetString("url", uri).
			SetString("language", appInfo.LanguageCode()).
			SetString("country", appInfo.CountryCode()).
			SetString("sdk_version", internal.SDKVersion).
			Build(),
		headers:         context.GetHTTP().DefaultHeaders,
		loggers:         context.GetLogging().Loggers,
		logDataPayloads: context.GetLogging().LogDataPayloads,
	}
}

func (r *requestorImpl) request(ctx context.Context) ([]subsystems.RemoteDataPayload, bool, error) {
	if r.loggers.IsDebugEnabled() {
		r.loggers.Debug("Polling for remote data updates")
	}

	body, cached, err := r.makeRequest(ctx)
	if err != nil {
		return nil, false, err
	}
	if cached {
		return nil, true, nil
	}
	if r.logDataPayloads && r.loggers.IsDebugEnabled() {
		r.loggers.Debugf("Received remote data: %s", body)
	}

	payloads, err := parsePayloads(body, r.metadata)
	if err != nil {
		return nil, false, malformedJSONError{err}
	}
	return payloads, false, nil
}

func (r *requestorImpl) makeRequest(ctx context.Context) ([]byte, bool, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, r.requestURI, nil)
	if reqErr != nil {
		return nil, false, reqErr
	}
	for k, vv := range r.headers {
		req.Header[k] = vv
	}

	res, resErr := r.httpClient.Do(req)
	if resErr != nil {
		return nil, false, resErr
	}
	defer func() {
		_, _ = io.ReadAll(res.Body)
		_ = res.Body.Close()
	}()

	if err := internal.CheckForHTTPError(res.StatusCode, r.requestURI); err != nil {
		return nil, false, err
	}

	cached := res.Header.Get(httpcache.XFromCache) != ""

	body, ioErr := io.ReadAll(res.Body)
	if ioErr != nil {
		return nil, false, ioErr
	}
	return body, cached, nil
}

// parsePayloads reads a response of the form {"payloads":[{"type":..., "timestamp":..., "data":{...}}]}.
// Payloads with no type are ignored; an unparseable timestamp is treated as unknown.
func parsePayloads(body []byte, metadata ldvalue.Value) ([]subsystems.RemoteDataPayload, error) {
	r := jreader.NewReader(body)
	var payloads []subsystems.RemoteDataPayload
	for obj := r.Object(); obj.Next(); {
		if string(obj.Name()) != "payloads" {
			continue
		}
		for arr := r.ArrayOrNull(); arr.Next(); {
			payload := subsystems.RemoteDataPayload{Metadata: metadata}
			for pobj := r.Object(); pobj.Next(); {
				switch string(pobj.Name()) {
				case "type":
					payload.Type = r.String()
				case "timestamp":
					if ts, ok := r.StringOrNull(); ok {
						if t, err := time.Parse(time.RFC3339, ts); err == nil {
							payload.Timestamp = t
						}
					}
				case "data":
					payload.Data.ReadFromJSONReader(&r)
				}
			}
			if payload.Type != "" {
				payloads = append(payloads, payload)
			}
		}
	}
	if err := r.Error(); err != nil {
		return nil, err
	}
	return payloads, nil
}
