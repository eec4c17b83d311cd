package notification

import (
	"encoding/json"

	"github.com/flagsync/go-client-sdk/interfaces"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
)

// Parse decodes the inner payload of an envelope into a typed notification.
//
// Required fields that are missing or of the wrong type, and unknown compression tags, produce a
// *DecodeError. Unknown notification types produce a *DecodeError as well, so that callers can log
// and skip them.
func Parse(env *IncomingEnvelope) (Notification, error) {
	meta := Meta{Channel: env.Channel, Timestamp: env.Timestamp}
	switch env.Kind {
	case IncomingError:
		return parseError(meta, env.Data)
	case IncomingOccupancy:
		return parseOccupancy(meta, env.Data)
	case IncomingControl:
		return parseControl(meta, env.Data)
	}
	switch env.Type {
	case TypeSplitUpdate:
		return parseSplitUpdate(meta, env.Data)
	case TypeSplitKill:
		return parseSplitKill(meta, env.Data)
	case TypeRuleBasedSegmentUpdate, typeRuleBasedSegmentUpdateLong:
		return parseRuleBasedSegmentUpdate(meta, env.Data)
	case TypeMySegmentsUpdate, TypeMySegmentsUpdateV2, TypeMyLargeSegmentsUpdate,
		TypeMembershipsMsUpdate, TypeMembershipsLsUpdate:
		return parseSegmentsUpdate(meta, env.Type, env.Data)
	default:
		return nil, decodeErrorf(nil, "unknown notification type %q", env.Type)
	}
}

// readInt64 reads an integer through jreader, which parses every number as a float64. Values are
// exact up to 2^53; change numbers are millisecond timestamps, far below that.
func readInt64(r *jreader.Reader) int64 {
	return int64(r.Float64())
}

func readStringList(r *jreader.Reader) []string {
	var ret []string
	for arr := r.ArrayOrNull(); arr.Next(); {
		ret = append(ret, r.String())
	}
	return ret
}

func parseSplitUpdate(meta Meta, data string) (Notification, error) {
	ret := SplitUpdate{Meta: meta}
	var compression int
	r := jreader.NewReader([]byte(data))
	for obj := r.Object().WithRequiredProperties([]string{"changeNumber"}); obj.Next(); {
		switch string(obj.Name()) {
		case "changeNumber":
			ret.ChangeNumber = readInt64(&r)
		case "pcn":
			ret.PreviousChangeNumber = readInt64(&r)
		case "c":
			compression = r.Int()
		case "d":
			ret.Data, _ = r.StringOrNull()
		}
	}
	if err := r.Error(); err != nil {
		return nil, decodeErrorf(err, "invalid %s", TypeSplitUpdate)
	}
	c, err := compressionFromCode(compression)
	if err != nil {
		return nil, err
	}
	ret.Compression = c
	return ret, nil
}

func parseRuleBasedSegmentUpdate(meta Meta, data string) (Notification, error) {
	ret := RuleBasedSegmentUpdate{Meta: meta}
	var compression int
	r := jreader.NewReader([]byte(data))
	for obj := r.Object().WithRequiredProperties([]string{"changeNumber"}); obj.Next(); {
		switch string(obj.Name()) {
		case "changeNumber":
			ret.ChangeNumber = readInt64(&r)
		case "pcn":
			ret.PreviousChangeNumber = readInt64(&r)
		case "c":
			compression = r.Int()
		case "d":
			ret.Data, _ = r.StringOrNull()
		}
	}
	if err := r.Error(); err != nil {
		return nil, decodeErrorf(err, "invalid %s", TypeRuleBasedSegmentUpdate)
	}
	c, err := compressionFromCode(compression)
	if err != nil {
		return nil, err
	}
	ret.Compression = c
	return ret, nil
}

func parseSplitKill(meta Meta, data string) (Notification, error) {
	ret := SplitKill{Meta: meta}
	r := jreader.NewReader([]byte(data))
	required := []string{"changeNumber", "splitName", "defaultTreatment"}
	for obj := r.Object().WithRequiredProperties(required); obj.Next(); {
		switch string(obj.Name()) {
		case "changeNumber":
			ret.ChangeNumber = readInt64(&r)
		case "splitName":
			ret.SplitName = r.String()
		case "defaultTreatment":
			ret.DefaultTreatment = r.String()
		}
	}
	if err := r.Error(); err != nil {
		return nil, decodeErrorf(err, "invalid %s", TypeSplitKill)
	}
	return ret, nil
}

func segmentsRequiredFields(t Type) []string {
	switch t {
	case TypeMySegmentsUpdate:
		return []string{"changeNumber", "includesPayload"}
	default:
		return []string{"u"}
	}
}

func parseSegmentsUpdate(meta Meta, t Type, data string) (Notification, error) {
	ret := SegmentsUpdate{Meta: meta, Type: t}
	if t == TypeMyLargeSegmentsUpdate || t == TypeMembershipsLsUpdate {
		ret.Resource = ResourceMyLargeSegments
	}
	var compression, strategy int
	r := jreader.NewReader([]byte(data))
	for obj := r.Object().WithRequiredProperties(segmentsRequiredFields(t)); obj.Next(); {
		switch string(obj.Name()) {
		case "changeNumber", "cn":
			ret.ChangeNumber = readInt64(&r)
		case "u":
			strategy = r.Int()
		case "c":
			compression = r.Int()
		case "d":
			ret.Data, _ = r.StringOrNull()
		case "segmentName":
			if name, ok := r.StringOrNull(); ok && name != "" {
				ret.SegmentNames = append(ret.SegmentNames, name)
			}
		case "largeSegments", "n":
			ret.SegmentNames = append(ret.SegmentNames, readStringList(&r)...)
		case "includesPayload":
			ret.IncludesPayload = r.Bool()
		case "segmentList":
			ret.SegmentList = readStringList(&r)
		case "i":
			ret.UpdateIntervalMs = readInt64(&r)
		case "s":
			ret.HashSeed = uint32(readInt64(&r))
		}
	}
	if err := r.Error(); err != nil {
		return nil, decodeErrorf(err, "invalid %s", t)
	}
	c, err := compressionFromCode(compression)
	if err != nil {
		return nil, err
	}
	ret.Compression = c
	if t == TypeMySegmentsUpdate {
		// the legacy notification has no strategy; without a payload every key fetches
		if ret.IncludesPayload {
			ret.Strategy = StrategyKeyList
		} else {
			ret.Strategy = StrategyUnboundedFetch
		}
		if hash, ok := KeyHashFromChannel(meta.Channel); ok {
			ret.ChannelKeyHash = hash
		}
	} else {
		ret.Strategy = strategyFromCode(strategy)
	}
	return ret, nil
}

func parseOccupancy(meta Meta, data string) (Notification, error) {
	ret := Occupancy{Meta: meta, ControlChannel: ControlChannelFromName(meta.Channel)}
	r := jreader.NewReader([]byte(data))
	for obj := r.Object().WithRequiredProperties([]string{"metrics"}); obj.Next(); {
		if string(obj.Name()) == "metrics" {
			for metrics := r.Object().WithRequiredProperties([]string{"publishers"}); metrics.Next(); {
				if string(metrics.Name()) == "publishers" {
					ret.Publishers = r.Int()
				}
			}
		}
	}
	if err := r.Error(); err != nil {
		return nil, decodeErrorf(err, "invalid occupancy")
	}
	return ret, nil
}

func parseControl(meta Meta, data string) (Notification, error) {
	ret := Control{Meta: meta}
	r := jreader.NewReader([]byte(data))
	for obj := r.Object().WithRequiredProperties([]string{"controlType"}); obj.Next(); {
		if string(obj.Name()) == "controlType" {
			ret.ControlType = ControlType(r.String())
		}
	}
	if err := r.Error(); err != nil {
		return nil, decodeErrorf(err, "invalid %s", TypeControl)
	}
	return ret, nil
}

func parseError(meta Meta, data string) (Notification, error) {
	ret := SseError{Meta: meta}
	r := jreader.NewReader([]byte(data))
	for obj := r.Object().WithRequiredProperties([]string{"code"}); obj.Next(); {
		switch string(obj.Name()) {
		case "message":
			ret.Message, _ = r.StringOrNull()
		case "code":
			ret.Code = r.Int()
		case "statusCode":
			ret.StatusCode = r.Int()
		case "href":
			ret.Href, _ = r.StringOrNull()
		}
	}
	if err := r.Error(); err != nil {
		return nil, decodeErrorf(err, "invalid error frame")
	}
	return ret, nil
}

// DecodeDefinition returns the definition carried by the notification, or nil if it carries none.
func (n SplitUpdate) DecodeDefinition() (*interfaces.Definition, error) {
	if n.Data == "" {
		return nil, nil
	}
	data, err := Decompress(n.Compression, n.Data)
	if err != nil {
		return nil, err
	}
	var def interfaces.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, decodeErrorf(err, "invalid definition payload")
	}
	return &def, nil
}

// DecodeSegment returns the rule-based segment carried by the notification, or nil if it carries none.
func (n RuleBasedSegmentUpdate) DecodeSegment() (*interfaces.RuleBasedSegment, error) {
	if n.Data == "" {
		return nil, nil
	}
	data, err := Decompress(n.Compression, n.Data)
	if err != nil {
		return nil, err
	}
	var seg interfaces.RuleBasedSegment
	if err := json.Unmarshal(data, &seg); err != nil {
		return nil, decodeErrorf(err, "invalid rule-based segment payload")
	}
	return &seg, nil
}
