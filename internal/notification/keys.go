package notification

import (
	"encoding/base64"
	"sort"
	"strconv"
	"strings"

	"github.com/twmb/murmur3"
)

const (
	// OccupancyChannelPrefix is prepended to control channel names when subscribing, so that the
	// streaming service also sends occupancy metrics for them.
	OccupancyChannelPrefix = "[?occupancy=metrics.publishers]"

	primaryControlSuffix   = "control_pri"
	secondaryControlSuffix = "control_sec"

	mySegmentsChannelSuffix      = "_mySegments"
	myLargeSegmentsChannelSuffix = "_myLargeSegments"
)

// ChannelKeyHash returns the hash that identifies a user key in per-key channel names: the base64
// encoding of the decimal murmur3 32-bit hash of the key.
func ChannelKeyHash(key string) string {
	h := murmur3.StringSum32(key)
	return base64.StdEncoding.EncodeToString([]byte(strconv.FormatUint(uint64(h), 10)))
}

// KeyListHash returns the hash used for user keys in key-list payloads: the first 64 bits of the
// murmur3 128-bit hash of the key.
func KeyListHash(key string) uint64 {
	h1, _ := murmur3.StringSum128(key)
	return h1
}

// IsKeyInBitmap reports whether the bit selected by the hashed key is set in a bounded-fetch bitmap.
func IsKeyInBitmap(bitmap []byte, hashedKey uint64) bool {
	if len(bitmap) == 0 {
		return false
	}
	index := hashedKey % uint64(len(bitmap)*8)
	byteIndex := index / 8
	offset := index % 8
	return bitmap[byteIndex]&(1<<offset) != 0
}

// FetchDelayMillis spreads fetches triggered by one notification across the given interval, using
// a stable hash of the key so that each key always gets the same slot.
func FetchDelayMillis(key string, seed uint32, intervalMs int64) int64 {
	if intervalMs <= 0 {
		return 0
	}
	return int64(murmur3.SeedStringSum32(seed, key)) % intervalMs
}

// KeyHashFromChannel extracts the key hash from a per-key channel name of the form
// "{prefix}_{keyHash}_mySegments" or "{prefix}_{keyHash}_myLargeSegments".
func KeyHashFromChannel(channel string) (string, bool) {
	var rest string
	switch {
	case strings.HasSuffix(channel, mySegmentsChannelSuffix):
		rest = strings.TrimSuffix(channel, mySegmentsChannelSuffix)
	case strings.HasSuffix(channel, myLargeSegmentsChannelSuffix):
		rest = strings.TrimSuffix(channel, myLargeSegmentsChannelSuffix)
	default:
		return "", false
	}
	i := strings.LastIndex(rest, "_")
	if i < 0 || i == len(rest)-1 {
		return "", false
	}
	return rest[i+1:], true
}

// SubscriptionChannels turns the channel list from a streaming token into the value of the
// "channels" query parameter: sorted, with the occupancy prefix added to control channels.
func SubscriptionChannels(channels []string) string {
	sorted := make([]string, 0, len(channels))
	for _, c := range channels {
		if ControlChannelFromName(c) != ControlChannelUnknown {
			sorted = append(sorted, OccupancyChannelPrefix+c)
		} else {
			sorted = append(sorted, c)
		}
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
