package endpoints

import (
	"fmt"
	"strings"
	"testing"

	"github.com/flagsync/go-client-sdk/interfaces"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"

	"github.com/stretchr/testify/assert"
)

var allServices = []ServiceType{SDKService, AuthService, StreamingService}

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
		{interfaces.ServiceEndpoints{SDK: customURI + "/"}, SDKService},
		{interfaces.ServiceEndpoints{Auth: customURI}, AuthService},
		{interfaces.ServiceEndpoints{Streaming: customURI}, StreamingService},
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
		{interfaces.ServiceEndpoints{Streaming: customURI}, SDKService},
		{interfaces.ServiceEndpoints{Auth: customURI, Streaming: customURI}, SDKService},
		{interfaces.ServiceEndpoints{SDK: customURI}, AuthService},
		{interfaces.ServiceEndpoints{SDK: customURI}, StreamingService},
	}

	mockLog := ldlogtest.NewMockLog()
	for _, c := range cases {
		assert.Equal(t, strings.TrimSuffix(DefaultBaseURI(c.service), "/"),
			SelectBaseURI(c.endpoints, c.service, mockLog.Loggers))
		mockLog.AssertMessageMatch(t, true, ldlog.Error,
			fmt.Sprintf("You have set custom ServiceEndpoints without specifying the %s base URI", c.service))
	}
}

func TestAddPath(t *testing.T) {
	assert.Equal(t, "http://a/b/c", AddPath("http://a/b/", "/c"))
	assert.Equal(t, "http://a/b/c", AddPath("http://a/b", "c"))
}
