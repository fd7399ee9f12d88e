// Package codec encodes envelope messages for transport outside the
// process. Every encoding wraps the payload as
// {schema_version, kind, payload}; decoding checks the version and kind
// and re-validates the payload before handing it back.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/cognitive.radar/internal/messages"
)

// ErrSchemaVersion is returned for envelopes written by an incompatible
// schema.
var ErrSchemaVersion = errors.New("unsupported schema version")

// Message is implemented by IntelligencePacket and FeedbackPacket.
type Message interface {
	Kind() messages.MessageKind
	Validate() error
}

// Envelope is the versioned wrapper around one message.
type Envelope struct {
	SchemaVersion int                  `json:"schema_version"`
	Kind          messages.MessageKind `json:"kind"`
	Payload       json.RawMessage      `json:"payload"`
}

// EncodeJSON validates msg and returns its JSON envelope.
func EncodeJSON(msg Message) ([]byte, error) {
	env, err := envelope(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func envelope(msg Message) (Envelope, error) {
	if msg == nil {
		return Envelope{}, errors.New("encode: nil message")
	}
	if err := msg.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	return Envelope{SchemaVersion: messages.SchemaVersion, Kind: msg.Kind(), Payload: payload}, nil
}

// DecodeJSON parses a JSON envelope into an IntelligencePacket or a
// FeedbackPacket (returned by value).
func DecodeJSON(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return decodeEnvelope(env)
}

func decodeEnvelope(env Envelope) (Message, error) {
	if env.SchemaVersion != messages.SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchemaVersion, env.SchemaVersion, messages.SchemaVersion)
	}
	switch env.Kind {
	case messages.KindIntelligence:
		var p messages.IntelligencePacket
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
		}
		return messages.NewIntelligencePacket(p)
	case messages.KindFeedback:
		var p messages.FeedbackPacket
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
		}
		return messages.NewFeedbackPacket(p)
	}
	return nil, fmt.Errorf("decode envelope: unknown kind %q", env.Kind)
}

// DecodeIntelligence decodes data and requires an IntelligencePacket.
func DecodeIntelligence(data []byte) (messages.IntelligencePacket, error) {
	msg, err := DecodeJSON(data)
	if err != nil {
		return messages.IntelligencePacket{}, err
	}
	p, ok := msg.(messages.IntelligencePacket)
	if !ok {
		return messages.IntelligencePacket{}, fmt.Errorf("decode: got %s, want %s", msg.Kind(), messages.KindIntelligence)
	}
	return p, nil
}

// DecodeFeedback decodes data and requires a FeedbackPacket.
func DecodeFeedback(data []byte) (messages.FeedbackPacket, error) {
	msg, err := DecodeJSON(data)
	if err != nil {
		return messages.FeedbackPacket{}, err
	}
	p, ok := msg.(messages.FeedbackPacket)
	if !ok {
		return messages.FeedbackPacket{}, fmt.Errorf("decode: got %s, want %s", msg.Kind(), messages.KindFeedback)
	}
	return p, nil
}
