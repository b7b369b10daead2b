package bus

import (
	"fmt"

	"github.com/goccy/go-json"

	"cinematch/domain/event"
)

// Envelope frames a domain event for the wire. Kind selects the
// concrete payload type on decode. Decode hands back value types so
// sinks can assert on event.MessageAppended and friends directly.
type Envelope struct {
	Kind    event.Kind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func Encode(e event.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.Kind(), err)
	}
	return json.Marshal(Envelope{Kind: e.Kind(), Payload: payload})
}

func Decode(data []byte) (event.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Kind {
	case event.KindMessageAppended:
		var e event.MessageAppended
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, payloadError(env.Kind, err)
		}
		return e, nil
	case event.KindMatchFound:
		var e event.MatchFound
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, payloadError(env.Kind, err)
		}
		return e, nil
	case event.KindIdentityRevealed:
		var e event.IdentityRevealed
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, payloadError(env.Kind, err)
		}
		return e, nil
	case event.KindSearchExpired:
		var e event.SearchExpired
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, payloadError(env.Kind, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", env.Kind)
	}
}

func payloadError(kind event.Kind, err error) error {
	return fmt.Errorf("decode %s payload: %w", kind, err)
}
