package notification

import (
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
)

// Type identifies the kind of a notification.
type Type string

const (
	TypeSplitUpdate            Type = "SPLIT_UPDATE"             //nolint:revive // wire constant
	TypeSplitKill              Type = "SPLIT_KILL"               //nolint:revive // wire constant
	TypeRuleBasedSegmentUpdate Type = "RB_SEGMENT_UPDATE"        //nolint:revive // wire constant
	TypeMySegmentsUpdate       Type = "MY_SEGMENTS_UPDATE"       //nolint:revive // wire constant
	TypeMySegmentsUpdateV2     Type = "MY_SEGMENTS_UPDATE_V2"    //nolint:revive // wire constant
	TypeMyLargeSegmentsUpdate  Type = "MY_LARGE_SEGMENTS_UPDATE" //nolint:revive // wire constant
	TypeMembershipsMsUpdate    Type = "MEMBERSHIPS_MS_UPDATE"    //nolint:revive // wire constant
	TypeMembershipsLsUpdate    Type = "MEMBERSHIPS_LS_UPDATE"    //nolint:revive // wire constant
	TypeOccupancy              Type = "OCCUPANCY"                //nolint:revive // wire constant
	TypeControl                Type = "CONTROL"                  //nolint:revive // wire constant
	TypeSseError               Type = "SSE_ERROR"                //nolint:revive // wire constant

	// alternate spelling of TypeRuleBasedSegmentUpdate
	typeRuleBasedSegmentUpdateLong Type = "RULE_BASED_SEGMENT_UPDATE"
)

// Compression is the algorithm applied to a notification payload before base64 encoding.
type Compression int

const (
	CompressionNone Compression = 0 //nolint:revive // wire constant
	CompressionGzip Compression = 1 //nolint:revive // wire constant
	CompressionZlib Compression = 2 //nolint:revive // wire constant
)

// Strategy says how a segments notification should be applied.
type Strategy int

const (
	// StrategyUnboundedFetch means every key must fetch its memberships.
	StrategyUnboundedFetch Strategy = iota
	// StrategyBoundedFetch means only keys present in the payload bitmap must fetch.
	StrategyBoundedFetch
	// StrategyKeyList means the payload lists hashed keys added to and removed from the segments.
	StrategyKeyList
	// StrategySegmentRemoval means the named segments were deleted.
	StrategySegmentRemoval
)

func strategyFromCode(code int) Strategy {
	switch code {
	case 0:
		return StrategyUnboundedFetch
	case 1:
		return StrategyBoundedFetch
	case 3:
		return StrategySegmentRemoval
	default:
		return StrategyKeyList
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategyUnboundedFetch:
		return "unboundedFetch"
	case StrategyBoundedFetch:
		return "boundedFetch"
	case StrategyKeyList:
		return "keyList"
	case StrategySegmentRemoval:
		return "segmentRemoval"
	default:
		return "unknown"
	}
}

// Resource distinguishes the two kinds of per-key segment memberships.
type Resource int

const (
	ResourceMySegments      Resource = iota //nolint:revive // internal constant
	ResourceMyLargeSegments                 //nolint:revive // internal constant
)

func (r Resource) String() string {
	if r == ResourceMyLargeSegments {
		return "myLargeSegments"
	}
	return "mySegments"
}

// ControlType is the instruction carried by a CONTROL notification.
type ControlType string

const (
	ControlStreamingPaused   ControlType = "STREAMING_PAUSED"   //nolint:revive // wire constant
	ControlStreamingResumed  ControlType = "STREAMING_ENABLED"  //nolint:revive // wire constant
	ControlStreamingDisabled ControlType = "STREAMING_DISABLED" //nolint:revive // wire constant
	ControlStreamingReset    ControlType = "STREAMING_RESET"    //nolint:revive // wire constant
)

// ControlChannel identifies which of the two control channels an occupancy or control message came from.
type ControlChannel int

const (
	ControlChannelUnknown   ControlChannel = iota //nolint:revive // internal constant
	ControlChannelPrimary                         //nolint:revive // internal constant
	ControlChannelSecondary                       //nolint:revive // internal constant
)

// ControlChannelFromName classifies a channel name, ignoring any occupancy prefix.
func ControlChannelFromName(channel string) ControlChannel {
	name := strings.TrimPrefix(channel, OccupancyChannelPrefix)
	switch {
	case strings.HasSuffix(name, primaryControlSuffix):
		return ControlChannelPrimary
	case strings.HasSuffix(name, secondaryControlSuffix):
		return ControlChannelSecondary
	default:
		return ControlChannelUnknown
	}
}

// Meta holds the envelope properties shared by every notification.
type Meta struct {
	Channel   string
	Timestamp ldtime.UnixMillisecondTime
}

// Notification is implemented by every decoded notification type.
type Notification interface {
	NotificationType() Type
	Metadata() Meta
}

// SplitUpdate announces a new version of a definition, optionally carrying the definition itself.
type SplitUpdate struct {
	Meta
	ChangeNumber int64
	// PreviousChangeNumber is zero when absent.
	PreviousChangeNumber int64
	Compression          Compression
	// Data is the base64 payload, empty when the notification carries no definition.
	Data string
}

// RuleBasedSegmentUpdate announces a new version of a rule-based segment.
type RuleBasedSegmentUpdate struct {
	Meta
	ChangeNumber         int64
	PreviousChangeNumber int64
	Compression          Compression
	Data                 string
}

// SplitKill announces that a definition was killed.
type SplitKill struct {
	Meta
	ChangeNumber     int64
	SplitName        string
	DefaultTreatment string
}

// SegmentsUpdate announces a change to segment memberships. The same type covers every wire version
// of the mySegments and myLargeSegments notifications.
type SegmentsUpdate struct {
	Meta
	Type     Type
	Resource Resource
	// ChangeNumber is zero when absent.
	ChangeNumber int64
	Strategy     Strategy
	Compression  Compression
	Data         string
	SegmentNames []string

	// legacy per-key notification fields
	IncludesPayload bool
	SegmentList     []string
	// ChannelKeyHash is set when the notification arrived on a per-key channel.
	ChannelKeyHash string

	// UpdateIntervalMs spreads fetches over a window; zero means fetch immediately.
	UpdateIntervalMs int64
	HashSeed         uint32
}

// Occupancy reports the number of publishers on a control channel.
type Occupancy struct {
	Meta
	ControlChannel ControlChannel
	Publishers     int
}

// Control carries a streaming control instruction.
type Control struct {
	Meta
	ControlType ControlType
}

// SseError is an error frame sent by the streaming service.
type SseError struct {
	Meta
	Message    string
	Code       int
	StatusCode int
	Href       string
}

func (n SplitUpdate) NotificationType() Type            { return TypeSplitUpdate }            //nolint:revive
func (n RuleBasedSegmentUpdate) NotificationType() Type { return TypeRuleBasedSegmentUpdate } //nolint:revive
func (n SplitKill) NotificationType() Type              { return TypeSplitKill }              //nolint:revive
func (n SegmentsUpdate) NotificationType() Type         { return n.Type }                     //nolint:revive
func (n Occupancy) NotificationType() Type              { return TypeOccupancy }              //nolint:revive
func (n Control) NotificationType() Type                { return TypeControl }                //nolint:revive
func (n SseError) NotificationType() Type               { return TypeSseError }               //nolint:revive

func (m Meta) Metadata() Meta { return m } //nolint:revive

// IsRetryable returns true if the error code falls within the given inclusive band.
func (n SseError) IsRetryable(minCode, maxCode int) bool {
	return n.Code >= minCode && n.Code <= maxCode
}
