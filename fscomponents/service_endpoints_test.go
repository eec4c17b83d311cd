package fscomponents

import (
	"testing"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/internal/endpoints"
	"github.com/flagsync/go-client-sdk/internal/sharedtest"

	"github.com/stretchr/testify/assert"
)

func TestRelayServiceEndpoints(t *testing.T) {
	e := RelayServiceEndpoints("http://relay:8080/")
	assert.Equal(t, interfaces.ServiceEndpoints{
		SDK:       "http://relay:8080/api",
		Auth:      "http://relay:8080/api/v2",
		Streaming: "http://relay:8080/sse",
	}, e)

	loggers := sharedtest.NewTestLoggers()
	assert.Equal(t, "http://relay:8080/api", endpoints.SelectBaseURI(e, endpoints.SDKService, loggers))
	assert.True(t, endpoints.IsCustom(e, endpoints.StreamingService))
}

func TestFlagFilters(t *testing.T) {
	assert.Equal(t, interfaces.FlagFilter{Sets: []string{"a", "b"}}, FlagSetsFilter("a", "b"))
	assert.Equal(t, interfaces.FlagFilter{Names: []string{"f1"}}, NamesFilter("f1"))
	assert.Equal(t, interfaces.FlagFilter{Prefixes: []string{"web_"}}, PrefixesFilter("web_"))
	assert.True(t, interfaces.FlagFilter{}.IsEmpty())
	assert.False(t, NamesFilter("f1").IsEmpty())
}
