package sharedtest

import (
	"encoding/json"
	"fmt"

	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
)

const occupancyChannelPrefix = "[?occupancy=metrics.publishers]"

// MakeMessageEvent returns a stream event carrying a notification payload on the given channel.
func MakeMessageEvent(channel string, timestamp int64, inner string) httphelpers.SSEEvent {
	envelope, _ := json.Marshal(map[string]interface{}{
		"id":        fmt.Sprintf("msg-%d", timestamp),
		"clientId":  "test-client",
		"timestamp": timestamp,
		"encoding":  "json",
		"channel":   channel,
		"data":      inner,
	})
	return httphelpers.SSEEvent{Event: "message", Data: string(envelope)}
}

// MakeOccupancyEvent returns a stream event reporting the publisher count of a control channel.
func MakeOccupancyEvent(channel string, timestamp int64, publishers int) httphelpers.SSEEvent {
	envelope, _ := json.Marshal(map[string]interface{}{
		"id":        fmt.Sprintf("occ-%d", timestamp),
		"timestamp": timestamp,
		"channel":   occupancyChannelPrefix + channel,
		"name":      "[meta]occupancy",
		"data":      fmt.Sprintf(`{"metrics":{"publishers":%d}}`, publishers),
	})
	return httphelpers.SSEEvent{Event: "message", Data: string(envelope)}
}

// MakeControlEvent returns a stream event carrying a control instruction.
func MakeControlEvent(channel string, timestamp int64, controlType string) httphelpers.SSEEvent {
	return MakeMessageEvent(channel, timestamp, fmt.Sprintf(`{"type":"CONTROL","controlType":"%s"}`, controlType))
}

// MakeErrorEvent returns an error frame as sent by the streaming service.
func MakeErrorEvent(code, statusCode int, message string) httphelpers.SSEEvent {
	data, _ := json.Marshal(map[string]interface{}{
		"message":    message,
		"code":       code,
		"statusCode": statusCode,
	})
	return httphelpers.SSEEvent{Event: "error", Data: string(data)}
}
