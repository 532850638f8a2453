package course

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeState reads a state that crossed a serialization boundary and normalizes it. Missing
// or wrongly typed top-level fields fall back to their empty values instead of failing.
func DecodeState(data []byte) (*State, error) {
	fields, err := topLevel(data)
	if err != nil {
		return nil, err
	}
	s := DefaultState()
	decodeField(fields, "course", &s.Course)
	if !decodeField(fields, "modules", &s.Modules) {
		s.Modules = []Module{}
	}
	decodeField(fields, "conceptGraph", &s.ConceptGraph)
	decodeField(fields, "alignment", &s.Alignment)
	decodeField(fields, "metadata", &s.Metadata)
	return Normalize(s), nil
}

// EncodeState writes s in canonical form.
func EncodeState(s *State) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("course: encode nil state")
	}
	return json.Marshal(s)
}

func topLevel(data []byte) (map[string]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return map[string]json.RawMessage{}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("course: decode: %w", err)
	}
	return fields, nil
}

func decodeField(fields map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
