package world

import (
	"fmt"
	"reflect"
	"strconv"
)

// Record is a free-form section of the world state, such as the player or
// a single NPC. Values are JSON-native: string, float64 or int, bool, nil,
// []any, []string and nested maps. Other string-keyed maps and slices
// from Go callers are normalized to map[string]any and []any on the way in.
type Record map[string]any

// String returns the value at key rendered as text. Missing keys yield "".
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok {
		return ""
	}
	return formatValue(v)
}

// Int returns the value at key as an int when it is numeric.
func (r Record) Int(key string) (int, bool) {
	switch v := r[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Bool returns the value at key when it is a bool, false otherwise.
func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Strings returns the value at key as a list of strings. A lone string is
// treated as a one element list and non-string elements are formatted.
func (r Record) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, formatValue(item))
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = copyValue(v)
	}
	return out
}

// apply overwrites the keys present in delta. Keys absent from delta are
// left untouched.
func (r Record) apply(delta Record) {
	for k, v := range delta {
		r[k] = copyValue(v)
	}
}

// plain converts the record to a map[string]any deep copy, suitable for
// handing to callers outside the package.
func (r Record) plain() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = copyValue(v)
	}
	return out
}

// asRecord reports whether v is a mapping and returns it as a Record.
func asRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(Record, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// asList reports whether v is a sequence and returns its elements.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	case []Record:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// copyValue deep copies JSON-native values. Records are normalized to
// map[string]any so copies never share the package's named types.
func copyValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.plain()
	case map[string]any:
		return Record(t).plain()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = Record(t[i]).plain()
		}
		return out
	case []Record:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i].plain()
		}
		return out
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	}
	if rec, ok := asRecord(v); ok {
		return rec.plain()
	}
	if list, ok := asList(v); ok {
		return copyValue(list)
	}
	return v
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
