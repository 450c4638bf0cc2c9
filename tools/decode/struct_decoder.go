package decode

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeMap decodes a frame payload (map[string]any straight from the
// JSON codec) into a typed payload struct T. Field names follow the
// `json` tag; input is weakly typed so "5" decodes into an int field
// and 1.0 into an int64.
func DecodeMap[T any](m map[string]any) (*T, error) {
	if m == nil {
		return nil, fmt.Errorf("payload is nil")
	}

	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}
