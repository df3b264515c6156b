// Package query wraps the platform's read-side APIs: the tabular query
// endpoint and the entity graph endpoint. Both are treated as black boxes
// whose responses are observed, never assumed.
package query

import "github.com/tidwall/gjson"

// Row is one result row: field or alias name to scalar or nested value.
// The raw JSON is retained so diagnostics can reproduce exactly what the
// platform returned.
type Row struct {
	raw gjson.Result
}

// NewRow wraps one parsed result element.
func NewRow(raw gjson.Result) Row {
	return Row{raw: raw}
}

// Field returns the value of a named field. Telemetry field names are
// flat keys; dots in them are literal ("queue.depth.sum" is one key).
func (r Row) Field(path string) (any, bool) {
	v := r.raw.Get(escapePath(path))
	if !v.Exists() {
		return nil, false
	}
	return v.Value(), true
}

// HasNonNull reports whether the field exists and is not JSON null.
func (r Row) HasNonNull(path string) bool {
	v := r.raw.Get(escapePath(path))
	return v.Exists() && v.Type != gjson.Null
}

// Raw returns the row's original JSON text.
func (r Row) Raw() string {
	return r.raw.Raw
}

// escapePath protects literal dots in telemetry field names such as
// "queue.waitingMessages.sum" from being read as gjson path separators.
func escapePath(path string) string {
	out := make([]byte, 0, len(path)*2)
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			out = append(out, '\\')
		}
		out = append(out, path[i])
	}
	return string(out)
}
