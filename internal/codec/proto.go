package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct returns msg's envelope as a protobuf Struct. Numbers travel as
// doubles, so integers above 2^53 lose precision.
func ToStruct(msg Message) (*structpb.Struct, error) {
	env, err := envelope(msg)
	if err != nil {
		return nil, err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]interface{}{
		"schema_version": env.SchemaVersion,
		"kind":           string(env.Kind),
		"payload":        payload,
	})
}

// FromStruct decodes an envelope produced by ToStruct.
func FromStruct(s *structpb.Struct) (Message, error) {
	if s == nil {
		return nil, fmt.Errorf("decode struct: nil")
	}
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, fmt.Errorf("decode struct: %w", err)
	}
	return DecodeJSON(data)
}

// EncodeProto returns the binary protobuf encoding of msg's Struct form.
func EncodeProto(msg Message) ([]byte, error) {
	s, err := ToStruct(msg)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// DecodeProto parses bytes written by EncodeProto.
func DecodeProto(data []byte) (Message, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode proto: %w", err)
	}
	return FromStruct(&s)
}
