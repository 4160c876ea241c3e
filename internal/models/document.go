// Package models defines typed views over the Get Notes JSON payloads.
//
// The vendor API is loosely shaped: the same logical field may live under
// several keys depending on the endpoint. Every view here reads from a
// generic Document and documents the key fallback order it applies.
package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Document is a decoded JSON object. Numbers are expected to be json.Number
// (decoders should call UseNumber) but float64 is accepted too.
type Document map[string]any

// String returns the first non-empty value among keys, formatted as text.
func (d Document) String(keys ...string) string {
	for _, k := range keys {
		if s := scalarString(d[k]); s != "" {
			return s
		}
	}
	return ""
}

// Trimmed is String with surrounding whitespace removed.
func (d Document) Trimmed(keys ...string) string {
	return strings.TrimSpace(d.String(keys...))
}

// Object returns the nested object at key, or nil.
func (d Document) Object(key string) Document {
	switch v := d[key].(type) {
	case map[string]any:
		return Document(v)
	case Document:
		return v
	}
	return nil
}

// List returns the array at key, or nil.
func (d Document) List(key string) []any {
	if v, ok := d[key].([]any); ok {
		return v
	}
	return nil
}

// Objects returns the object elements of the array at key, skipping others.
func (d Document) Objects(key string) []Document {
	var out []Document
	for _, item := range d.List(key) {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Document(m))
		}
	}
	return out
}

// Int returns the integer at key, accepting numbers and numeric strings.
func (d Document) Int(key string) int64 {
	switch v := d[key].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return 0
}

// Bool reports JSON truthiness: true, non-zero numbers, non-empty strings.
func (d Document) Bool(key string) bool {
	switch v := d[key].(type) {
	case bool:
		return v
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v != ""
	}
	return false
}

// Raw returns the value stored at key encoded as JSON ("null" when absent).
func (d Document) Raw(key string) json.RawMessage {
	data, err := json.Marshal(d[key])
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
