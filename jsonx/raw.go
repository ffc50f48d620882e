package jsonx

import (
	"bytes"
	"encoding/json"
)

// RawMessage returns a normalized json.RawMessage.
// This is useful for testing json payload.
// The function will panic if the input is not valid json.
func RawMessage(in string) json.RawMessage {
	out, err := Canonical([]byte(in))
	if err != nil {
		panic(err)
	}

	return out
}

// Canonical re-encodes a JSON document so that equal documents produce equal
// bytes: whitespace is dropped and object keys are sorted at every depth.
// Numbers are kept as written.
func Canonical(in []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(in))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
