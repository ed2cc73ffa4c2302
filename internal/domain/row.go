package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Field is a single key/value pair used to build a Row.
type Field struct {
	Key   string
	Value any
}

// Row is one record returned by the tabular store. Values are scalars as
// decoded from JSON: nil, string, bool or json.Number. Keys keep the order
// in which the store emitted them so exports reproduce the source column
// order.
type Row struct {
	keys   []string
	fields map[string]any
}

// NewRow builds a Row from fields in order. Later duplicates overwrite the
// value but keep the original position.
func NewRow(fields ...Field) Row {
	r := Row{fields: make(map[string]any, len(fields))}
	for _, f := range fields {
		r.Set(f.Key, f.Value)
	}
	return r
}

// Get returns the value stored under key.
func (r Row) Get(key string) (any, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// Set stores value under key, appending the key if it is new.
func (r *Row) Set(key string, value any) {
	if r.fields == nil {
		r.fields = make(map[string]any)
	}
	if _, ok := r.fields[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = value
}

// Keys returns the field names in source order.
func (r Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r Row) Len() int { return len(r.keys) }

// Clone returns a copy that can be modified without affecting r.
func (r Row) Clone() Row {
	c := Row{
		keys:   make([]string, len(r.keys)),
		fields: make(map[string]any, len(r.fields)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.fields {
		c.fields[k] = v
	}
	return c
}

// UnmarshalJSON decodes a JSON object, keeping key order and numeric literals.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("decode row: expected JSON object")
	}

	*r = Row{fields: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode row: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode row: unexpected key token %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode row field %q: %w", key, err)
		}
		r.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}

// MarshalJSON encodes the row as a JSON object in key order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.fields[k])
		if err != nil {
			return nil, fmt.Errorf("encode row field %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeRows reads a JSON array of row objects.
func DecodeRows(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// ReverseRows returns a new slice with rows in reverse order. Stores usually
// return newest-first; series and charts want oldest-first.
func ReverseRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r
	}
	return out
}
