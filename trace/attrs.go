package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Attr is a single key/value pair inside a data payload. The value is kept
// as raw JSON and decoded lazily.
type Attr struct {
	Key   string
	Value json.RawMessage
}

// Attrs is an ordered attribute list. Unlike a map it preserves the
// insertion order of keys, both through marshaling and unmarshaling, since
// field order carries display semantics for consumers.
type Attrs []Attr

// Len returns the number of attributes.
func (a Attrs) Len() int { return len(a) }

// Get returns the raw value for key, scanning in order.
func (a Attrs) Get(key string) (json.RawMessage, bool) {
	for _, kv := range a {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// At returns the key/value pair at index i in insertion order.
func (a Attrs) At(i int) (string, json.RawMessage, bool) {
	if i < 0 || i >= len(a) {
		return "", nil, false
	}
	return a[i].Key, a[i].Value, true
}

// Set appends key with the JSON encoding of value, replacing an existing
// key in place. It returns the updated list.
func (a Attrs) Set(key string, value interface{}) Attrs {
	raw, err := json.Marshal(value)
	if err != nil {
		// Attrs carry primitive values and nested Attrs; both always encode.
		raw = []byte("null")
	}
	for i := range a {
		if a[i].Key == key {
			a[i].Value = raw
			return a
		}
	}
	return append(a, Attr{Key: key, Value: raw})
}

// String decodes the value for key as a JSON string.
func (a Attrs) String(key string) (string, bool) {
	raw, ok := a.Get(key)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Int64 decodes the value for key as a JSON number.
func (a Attrs) Int64(key string) (int64, bool) {
	raw, ok := a.Get(key)
	if !ok {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// MarshalJSON encodes the attributes as a JSON object in insertion order.
func (a Attrs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(kv.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(kv.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping keys in their original
// order. Values stay raw, including nested objects, so their internal
// ordering survives a round trip byte for byte.
func (a *Attrs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("attrs: expected object, got %v", tok)
	}

	out := make(Attrs, 0, 8)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("attrs: expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = append(out, Attr{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil { // consume closing brace
		return err
	}
	*a = out
	return nil
}
