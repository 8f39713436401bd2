package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Envelope wraps a payload with the metadata every consumer relies on.
// Envelopes are immutable once built.
type Envelope struct {
	ID        string
	Type      EventType
	Payload   Payload
	Timestamp time.Time
	Version   string
}

// wireEnvelope is the JSON shape on the channel.
type wireEnvelope struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
}

// Encode serializes the envelope to its wire form.
func Encode(env *Envelope) ([]byte, error) {
	if env.Payload == nil {
		return nil, invalid("envelope %s has no payload", env.ID)
	}
	if _, ok := env.Payload.(Unrecognized); ok {
		return nil, env.Payload.validate()
	}
	data, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", env.Type, err)
	}
	return json.Marshal(wireEnvelope{
		ID:        env.ID,
		Type:      env.Type,
		Data:      data,
		Timestamp: env.Timestamp,
		Version:   env.Version,
	})
}

// Decode parses a wire message. Known tags are decoded into their payload
// type and validated; unknown tags yield an Unrecognized payload so the
// consumer can decide what to do with them. Any error wraps
// ErrInvalidEnvelope.
func Decode(raw []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	switch {
	case w.ID == "":
		return nil, invalid("missing id")
	case w.Type == "":
		return nil, invalid("envelope %s: missing type", w.ID)
	case !strings.HasPrefix(w.Version, "1."):
		return nil, invalid("envelope %s: unsupported version %q", w.ID, w.Version)
	}

	var (
		payload Payload
		err     error
	)
	switch w.Type {
	case PostCreatedType:
		payload, err = decodePayload[PostCreated](w.Data)
	case PostLikedType:
		payload, err = decodePayload[PostLiked](w.Data)
	case PostCommentedType:
		payload, err = decodePayload[PostCommented](w.Data)
	case UserCreatedType:
		payload, err = decodePayload[UserCreated](w.Data)
	default:
		payload = Unrecognized{Tag: w.Type, Data: []byte(w.Data)}
	}
	if err != nil {
		return nil, fmt.Errorf("envelope %s: %w", w.ID, err)
	}

	return &Envelope{
		ID:        w.ID,
		Type:      w.Type,
		Payload:   payload,
		Timestamp: w.Timestamp,
		Version:   w.Version,
	}, nil
}

func decodePayload[T Payload](data json.RawMessage) (Payload, error) {
	var p T
	if len(data) == 0 {
		return nil, invalid("missing data")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}
