// Package record holds the structured log event handed to filters: an
// insertion-ordered string-keyed map plus the tag/time envelope sources emit.
package record

import (
	"encoding/base64"
	"maps"
	"slices"
	"time"
)

// Record is an ordered mapping from field names to values. Values are
// strings, int64, float64, bool, nil, []byte, or nested map[string]any and
// []any as produced by the codecs. The zero value is an empty record.
//
// A Record is not safe for concurrent mutation; filters receive exclusive
// ownership for the duration of one Apply call.
type Record struct {
	keys []string
	vals map[string]any
}

// Event is one record together with its routing tag and event time.
type Event struct {
	Tag    string
	Time   time.Time
	Record *Record
}

func New() *Record { return &Record{vals: map[string]any{}} }

// FromMap builds a record from m. Go maps carry no order, so keys are
// inserted sorted to keep output deterministic.
func FromMap(m map[string]any) *Record {
	r := New()
	for _, k := range slices.Sorted(maps.Keys(m)) {
		r.Set(k, m[k])
	}
	return r
}

func (r *Record) Get(key string) (any, bool) {
	v, ok := r.vals[key]
	return v, ok
}

func (r *Record) Has(key string) bool {
	_, ok := r.vals[key]
	return ok
}

// Set stores v under key. An existing key keeps its position.
func (r *Record) Set(key string, v any) {
	if r.vals == nil {
		r.vals = map[string]any{}
	}
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = v
}

func (r *Record) Delete(key string) {
	if _, ok := r.vals[key]; !ok {
		return
	}
	delete(r.vals, key)
	r.keys = slices.DeleteFunc(r.keys, func(k string) bool { return k == key })
}

func (r *Record) Len() int { return len(r.keys) }

// Keys returns the field names in order.
func (r *Record) Keys() []string { return slices.Clone(r.keys) }

// Clone returns a copy whose field set can be mutated independently. Values
// are shared, except []byte which is copied.
func (r *Record) Clone() *Record {
	c := &Record{keys: slices.Clone(r.keys), vals: make(map[string]any, len(r.vals))}
	for k, v := range r.vals {
		if b, ok := v.([]byte); ok {
			v = slices.Clone(b)
		}
		c.vals[k] = v
	}
	return c
}

func (r *Record) ToMap() map[string]any {
	return maps.Clone(r.vals)
}

// GetString returns the field as a string when it holds a string or []byte.
func (r *Record) GetString(key string) (string, bool) {
	switch v := r.vals[key].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// GetBytes returns the field as raw bytes when it holds a string or []byte.
// Fluentd-originated records usually carry binary payloads as msgpack str.
func (r *Record) GetBytes(key string) ([]byte, bool) {
	switch v := r.vals[key].(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}

// GetBinary is GetBytes for fields that may have crossed a JSON codec, which
// writes []byte as standard base64. A string field that is valid base64 is
// decoded; any other string is taken as raw bytes.
func (r *Record) GetBinary(key string) ([]byte, bool) {
	switch v := r.vals[key].(type) {
	case []byte:
		return v, true
	case string:
		if b, err := base64.StdEncoding.Strict().DecodeString(v); err == nil {
			return b, true
		}
		return []byte(v), true
	default:
		return nil, false
	}
}
