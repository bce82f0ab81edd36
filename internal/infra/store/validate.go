package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeStrict unmarshals data into a T, rejecting any field sqlite holds
// that the current domain type no longer declares, instead of silently
// dropping it. A row written by an older binary version should fail
// loudly here rather than produce a half-populated struct the core then
// clamps into looking valid.
func decodeStrict[T any](data []byte) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("store: decode %T: %w", v, err)
	}
	return v, nil
}

func encodeJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode %T: %w", v, err)
	}
	return data, nil
}
