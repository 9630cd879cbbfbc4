package envelope

import "encoding/json"

// Encode serializes a value to JSON bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode deserializes JSON bytes into the given target.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Oversize reports whether the envelope's encoded form exceeds the inline
// payload policy ceiling.
func Oversize(v any, limit int) bool {
	if limit <= 0 {
		limit = MaxInlinePayload
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return len(data) > limit
}
