package jsonenc

import (
	"bytes"
	"encoding/json"
)

// Marshal encodes v using the canonical encoding: object keys sorted,
// no HTML escaping (objkeys routinely contain "<"/">"-hostile bytes
// only by accident, never by design, but the accumulator must not
// mangle them).
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// json.Encoder.Encode appends a trailing newline; trim it so callers
	// can concatenate fragments (e.g. SiteCache.Get's slot-by-slot join)
	// without stray whitespace.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MustMarshal is Marshal for values that are known to be encodable
// (e.g. model.Values produced by a conforming CacheModel).
func MustMarshal(v any) []byte {
	data, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// Unmarshal decodes JSON into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
