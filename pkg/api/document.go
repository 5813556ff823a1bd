package api

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Document types stored in the asset database.
const (
	TypeProject        = "project"
	TypeAsset          = "asset"
	TypeSubset         = "subset"
	TypeVersion        = "version"
	TypeMasterVersion  = "master_version"
	TypeRepresentation = "representation"
	TypeThumbnail      = "thumbnail"
)

// SubsetSchemaV3 marks subsets that carry their families on the subset
// itself instead of on each version.
const SubsetSchemaV3 = "avalon-core:subset-3.0"

// Document is an open-schema record from the asset database. Well-known keys
// are _id, type, name, parent, schema and data.
type Document map[string]any

// ID returns the document identifier.
func (d Document) ID() string { return d.StringAt("_id") }

// Type returns the document type.
func (d Document) Type() string { return d.StringAt("type") }

// Name returns the document name. Version names are rendered as integers.
func (d Document) Name() string { return d.StringAt("name") }

// Parent returns the identifier of the parent document.
func (d Document) Parent() string { return d.StringAt("parent") }

// Schema returns the document schema tag.
func (d Document) Schema() string { return d.StringAt("schema") }

// Data returns the data sub-document, never nil.
func (d Document) Data() Document {
	data := d.MapAt("data")
	if data == nil {
		return Document{}
	}
	return Document(data)
}

// Lookup walks nested maps along path.
func (d Document) Lookup(path ...string) (any, bool) {
	var current any = map[string]any(d)
	for _, key := range path {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Has reports whether path resolves to a non-nil value.
func (d Document) Has(path ...string) bool {
	v, ok := d.Lookup(path...)
	return ok && v != nil
}

// StringAt renders the value at path as a string. Missing values yield "".
func (d Document) StringAt(path ...string) string {
	v, ok := d.Lookup(path...)
	if !ok || v == nil {
		return ""
	}
	return Stringify(v)
}

// MapAt returns the nested map at path or nil.
func (d Document) MapAt(path ...string) map[string]any {
	v, ok := d.Lookup(path...)
	if !ok {
		return nil
	}
	m, _ := asMap(v)
	return m
}

// StringsAt returns the string list at path. Non-string members are skipped.
func (d Document) StringsAt(path ...string) []string {
	v, ok := d.Lookup(path...)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// IntAt returns the integer at path. JSON numbers decoded as float64 are
// accepted when they hold a whole value.
func (d Document) IntAt(path ...string) (int, bool) {
	v, ok := d.Lookup(path...)
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneMap(d))
}

// Stringify renders scalar document values the way templates and the
// database expect: whole floats print without a fraction.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	}
	return 0, false
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Document:
		return t, true
	case map[string]any:
		return t, true
	}
	return nil, false
}

func cloneMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return Document(cloneMap(t))
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}
