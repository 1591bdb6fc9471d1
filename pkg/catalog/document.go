package catalog

import (
	"fmt"
	"sort"
)

// Document is the flat projection of a resource that gets indexed.
// Values may be scalars, lists or multilingual maps (language -> text).
type Document map[string]any

// Key returns the unique key of the document.
func (d Document) Key() string {
	s, _ := d[KeyField].(string)
	return s
}

// normalizeDocument validates doc against the schema and converts its values.
// Fields unknown to the schema are dropped.
func normalizeDocument(schema Schema, doc Document) (Document, error) {
	key := doc.Key()
	if key == "" {
		return nil, fmt.Errorf("document has no %s", KeyField)
	}

	out := make(Document, len(doc))
	for name, raw := range doc {
		field, ok := schema[name]
		if !ok {
			continue
		}
		v, err := field.normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q of %s: %w", name, key, err)
		}
		if v == nil {
			continue
		}
		out[name] = v
	}
	out[KeyField] = key
	return out, nil
}

// Result is one document of a result set, restricted to its stored fields.
type Result struct {
	values Document
}

// Key returns the abspath of the document.
func (r Result) Key() string {
	return r.values.Key()
}

// Get returns the stored value of a field, or nil.
func (r Result) Get(name string) any {
	return r.values[name]
}

// String returns a stored value as a string. Multilingual values pick language
// lang when present, otherwise the smallest language.
func (r Result) String(name, lang string) string {
	switch v := r.values[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]string:
		if s, ok := v[lang]; ok {
			return s
		}
		langs := make([]string, 0, len(v))
		for l := range v {
			langs = append(langs, l)
		}
		sort.Strings(langs)
		if len(langs) > 0 {
			return v[langs[0]]
		}
		return ""
	default:
		return encodeTerm(v)
	}
}

// Strings returns a stored multiple value as strings.
func (r Result) Strings(name string) []string {
	var out []string
	for _, v := range flatten(r.values[name]) {
		out = append(out, encodeTerm(v))
	}
	return out
}

// Fields returns the stored values as a plain map.
func (r Result) Fields() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}
