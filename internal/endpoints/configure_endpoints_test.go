package endpoints

import (
	"fmt"
	"strings"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/stretchr/testify/assert"

	"github.com/pushkit/go-client-sdk/interfaces"
)

var allServices = []ServiceType{AnalyticsService, RemoteDataService, DeviceService}

func TestDefaultURISelectedIfNoCustomURISpecified(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	for _, service := range allServices {
		assert.Equal(t, strings.TrimSuffix(DefaultBaseURI(service), "/"),
			SelectBaseURI(interfaces.ServiceEndpoints{}, service, mockLog.Loggers))
	}
	assert.Empty(t, mockLog.GetOutput(ldlog.Error))
}

func TestSelectCustomURIs(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	const customURI = "http://custom_uri"

	cases := []struct {
		endpoints interfaces.ServiceEndpoints
		service   ServiceType
	}{
		{interfaces.ServiceEndpoints{Analytics: customURI}, AnalyticsService},
		{interfaces.ServiceEndpoints{RemoteData: customURI + "/"}, RemoteDataService},
		{interfaces.ServiceEndpoints{Device: customURI}, DeviceService},
	}
	for _, c := range cases {
		assert.Equal(t, customURI, SelectBaseURI(c.endpoints, c.service, mockLog.Loggers))
		assert.True(t, IsCustom(c.endpoints, c.service))
	}
	assert.Empty(t, mockLog.GetOutput(ldlog.Error))
}

func TestLogErrorIfAtLeastOneButNotAllCustomURISpecified(t *testing.T) {
	const customURI = "http://custom_uri"
	cases := []struct {
		endpoints interfaces.ServiceEndpoints
		service   ServiceType
	}{
		{interfaces.ServiceEndpoints{Analytics: customURI}, RemoteDataService},
		{interfaces.ServiceEndpoints{Device: customURI}, AnalyticsService},
		{interfaces.ServiceEndpoints{Analytics: customURI, RemoteData: customURI}, DeviceService},
	}
	mockLog := ldlogtest.NewMockLog()
	for _, c := range cases {
		assert.Equal(t, strings.TrimSuffix(DefaultBaseURI(c.service), "/"),
			SelectBaseURI(c.endpoints, c.service, mockLog.Loggers))
	}
	for _, c := range cases {
		mockLog.AssertMessageMatch(t, true, ldlog.Error,
			fmt.Sprintf("You have set custom ServiceEndpoints without specifying the %s base URI", c.service))
	}
}

func TestDefaultURIIsNotCustom(t *testing.T) {
	endpoints := interfaces.ServiceEndpoints{Analytics: DefaultAnalyticsBaseURI}
	assert.False(t, IsCustom(endpoints, AnalyticsService))
	assert.False(t, IsCustom(endpoints, DeviceService))
}

func TestAddPath(t *testing.T) {
	assert.Equal(t, "http://a/b", AddPath("http://a/", "/b"))
	assert.Equal(t, "http://a/b", AddPath("http://a", "b"))
}
