package notification

import (
	"errors"
	"io"
	"strings"

	es "github.com/launchdarkly/eventsource"
	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
)

const (
	errorEventName     = "error"
	occupancyEventName = "[meta]occupancy"
)

// IncomingKind is the coarse classification of a push frame, made before its inner payload is parsed.
type IncomingKind int

const (
	IncomingData      IncomingKind = iota //nolint:revive // internal constant
	IncomingOccupancy                     //nolint:revive // internal constant
	IncomingControl                       //nolint:revive // internal constant
	IncomingError                         //nolint:revive // internal constant
)

// IncomingEnvelope is a push frame whose outer envelope has been decoded.
type IncomingEnvelope struct {
	Kind      IncomingKind
	ID        string
	Channel   string
	Timestamp ldtime.UnixMillisecondTime
	// Type is the inner notification type for data and control frames.
	Type Type
	// Data is the inner JSON payload (the error object itself for error frames).
	Data string
}

// ParseIncoming decodes the envelope of one server-sent event. It returns nil with no error for
// events that carry nothing to process.
func ParseIncoming(event es.Event) (*IncomingEnvelope, error) {
	if event.Event() == errorEventName {
		return &IncomingEnvelope{Kind: IncomingError, ID: event.Id(), Type: TypeSseError, Data: event.Data()}, nil
	}
	if strings.TrimSpace(event.Data()) == "" {
		return nil, nil
	}

	env := IncomingEnvelope{ID: event.Id()}
	var name string
	r := jreader.NewReader([]byte(event.Data()))
	for obj := r.Object().WithRequiredProperties([]string{"channel", "data"}); obj.Next(); {
		switch string(obj.Name()) {
		case "id":
			env.ID = r.String()
		case "channel":
			env.Channel = r.String()
		case "timestamp":
			env.Timestamp = ldtime.UnixMillisecondTime(r.Float64())
		case "name":
			name, _ = r.StringOrNull()
		case "data":
			env.Data = r.String()
		}
	}
	if err := r.Error(); err != nil {
		return nil, decodeErrorf(err, "invalid envelope")
	}

	if name == occupancyEventName {
		env.Kind = IncomingOccupancy
		env.Type = TypeOccupancy
		return &env, nil
	}

	innerType, err := peekType(env.Data)
	if err != nil {
		return nil, err
	}
	env.Type = innerType
	if innerType == TypeControl {
		env.Kind = IncomingControl
	} else {
		env.Kind = IncomingData
	}
	return &env, nil
}

func peekType(data string) (Type, error) {
	var t string
	r := jreader.NewReader([]byte(data))
	for obj := r.Object().WithRequiredProperties([]string{"type"}); obj.Next(); {
		if string(obj.Name()) == "type" {
			t = r.String()
		}
	}
	if err := r.Error(); err != nil {
		return "", decodeErrorf(err, "invalid notification payload")
	}
	return Type(t), nil
}

// ParseIncomingLines decodes raw event-stream lines. Lines are grouped into events at blank lines;
// comment lines (starting with ":") contribute nothing, and a line without a colon is a field name
// with an empty value. Events that fail to decode are returned as errors alongside the others.
func ParseIncomingLines(lines []string) ([]*IncomingEnvelope, []error) {
	text := strings.Join(lines, "\n") + "\n\n"
	decoder := es.NewDecoder(strings.NewReader(text))
	var envs []*IncomingEnvelope
	var errs []error
	for {
		event, err := decoder.Decode()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				errs = append(errs, err)
			}
			break
		}
		env, err := ParseIncoming(event)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if env != nil {
			envs = append(envs, env)
		}
	}
	return envs, errs
}
