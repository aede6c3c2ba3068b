// Package json centralizes JSON handling behind bytedance/sonic for the
// hot marshal/unmarshal path, and tidwall/gjson+sjson for ad hoc
// get/set/delete on raw JSON bytes without a full unmarshal. Callers
// outside this package should never import encoding/json, gjson, or sjson
// directly so the whole tree shares one JSON engine.
package json

import (
	"bytes"
	stdjson "encoding/json"
	"io"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RawMessage and Number are re-exported from encoding/json: both are plain
// data types (not tied to encoding/json's own marshal/unmarshal codepath),
// and re-declaring them would break interop with any third-party struct
// tag still referencing the stdlib type.
type RawMessage = stdjson.RawMessage
type Number = stdjson.Number

// Result is gjson's parsed value, returned by Parse/ParseBytes for
// read-only traversal of a JSON document without allocating a struct.
type Result = gjson.Result

// Marshal encodes v as JSON using sonic.
func Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// MarshalIndent encodes v as indented JSON. Pretty-printing isn't on any
// hot path, so this defers to encoding/json rather than sonic.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return stdjson.MarshalIndent(v, prefix, indent)
}

// Unmarshal decodes JSON data into v using sonic.
func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// Valid reports whether data is well-formed JSON.
func Valid(data []byte) bool {
	return sonic.Valid(data)
}

// NewDecoder returns a streaming JSON decoder reading from r.
func NewDecoder(r io.Reader) *stdjson.Decoder {
	return stdjson.NewDecoder(r)
}

// NewEncoder returns a streaming JSON encoder writing to w.
func NewEncoder(w io.Writer) *stdjson.Encoder {
	return stdjson.NewEncoder(w)
}

// Parse parses a JSON string into a read-only Result tree.
func Parse(json string) Result {
	return gjson.Parse(json)
}

// ParseBytes parses JSON bytes into a read-only Result tree.
func ParseBytes(data []byte) Result {
	return gjson.ParseBytes(data)
}

// Get extracts the value at path from a JSON string without a full parse.
func Get(json, path string) Result {
	return gjson.Get(json, path)
}

// GetBytes extracts the value at path from JSON bytes without a full parse.
func GetBytes(data []byte, path string) Result {
	return gjson.GetBytes(data, path)
}

// Set returns json with the value at path replaced by value.
func Set(json, path string, value any) (string, error) {
	return sjson.Set(json, path, value)
}

// SetBytes returns data with the value at path replaced by value.
func SetBytes(data []byte, path string, value any) ([]byte, error) {
	return sjson.SetBytes(data, path, value)
}

// SetRaw returns json with the value at path replaced by the raw
// (already-encoded) JSON string rawValue.
func SetRaw(json, path, rawValue string) (string, error) {
	return sjson.SetRaw(json, path, rawValue)
}

// SetRawBytes returns data with the value at path replaced by the raw
// (already-encoded) JSON bytes rawValue.
func SetRawBytes(data []byte, path string, rawValue []byte) ([]byte, error) {
	return sjson.SetRawBytes(data, path, rawValue)
}

// Delete returns json with the value at path removed.
func Delete(json, path string) (string, error) {
	return sjson.Delete(json, path)
}

// DeleteBytes returns data with the value at path removed.
func DeleteBytes(data []byte, path string) ([]byte, error) {
	return sjson.DeleteBytes(data, path)
}

// MustMarshal encodes v as JSON, returning an empty JSON object on error
// instead of propagating it, for call sites that render best-effort debug
// output rather than a response body.
func MustMarshal(v any) []byte {
	b, err := Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// Compact returns the JSON-compacted form of data (whitespace stripped).
func Compact(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := stdjson.Compact(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
