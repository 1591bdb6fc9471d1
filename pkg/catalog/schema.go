package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// FieldType determines how values of a field are normalized, tokenized and compared.
type FieldType int

const (
	// Keyword values are indexed verbatim.
	Keyword FieldType = iota
	// Text values are split into lowercase tokens.
	Text
	// Integer values are int64.
	Integer
	// Time values are time.Time, indexed in UTC.
	Time
	// Boolean values are bool.
	Boolean
)

func (t FieldType) String() string {
	switch t {
	case Keyword:
		return "keyword"
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Time:
		return "time"
	case Boolean:
		return "boolean"
	}
	return "unknown"
}

// Check reports whether s can be indexed as a value of type t. The empty
// string is always accepted.
func (t FieldType) Check(s string) error {
	_, err := Field{Type: t}.scalar(s)
	return err
}

// Field describes one field of the index.
type Field struct {
	Type FieldType
	// Indexed fields can be queried.
	Indexed bool
	// Stored fields are returned with search results.
	Stored bool
	// Multiple fields hold a list of values.
	Multiple bool
}

// Schema maps field names to their description.
type Schema map[string]Field

// KeyField is the unique key of every document.
const KeyField = "abspath"

// Names returns the field names in lexical order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge adds the fields of other. A field declared twice with a different type is an error.
func (s Schema) Merge(other Schema) error {
	for name, f := range other {
		if prev, ok := s[name]; ok {
			if prev.Type != f.Type {
				return fmt.Errorf("field %q declared as %s and %s", name, prev.Type, f.Type)
			}
			prev.Indexed = prev.Indexed || f.Indexed
			prev.Stored = prev.Stored || f.Stored
			prev.Multiple = prev.Multiple || f.Multiple
			s[name] = prev
			continue
		}
		s[name] = f
	}
	return nil
}

// normalize converts a raw value into the canonical Go type for the field.
// Multilingual values (map[string]string) keep their shape.
func (f Field) normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := asStringMap(v); ok {
		return m, nil
	}
	if list, ok := asList(v); ok {
		out := make([]any, 0, len(list))
		for _, item := range list {
			n, err := f.scalar(item)
			if err != nil {
				return nil, err
			}
			if n != nil {
				out = append(out, n)
			}
		}
		return out, nil
	}
	return f.scalar(v)
}

func (f Field) scalar(v any) (any, error) {
	switch f.Type {
	case Keyword, Text:
		switch x := v.(type) {
		case string:
			if x == "" {
				return nil, nil
			}
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		default:
			return fmt.Sprint(x), nil
		}
	case Integer:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("value %v is not an integer", x)
			}
			return int64(x), nil
		case json.Number:
			return x.Int64()
		case string:
			if x == "" {
				return nil, nil
			}
			return strconv.ParseInt(x, 10, 64)
		}
	case Time:
		switch x := v.(type) {
		case time.Time:
			if x.IsZero() {
				return nil, nil
			}
			return x.UTC(), nil
		case string:
			if x == "" {
				return nil, nil
			}
			t, err := time.Parse(time.RFC3339Nano, x)
			if err != nil {
				return nil, err
			}
			return t.UTC(), nil
		}
	case Boolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if x == "" {
				return nil, nil
			}
			return strconv.ParseBool(x)
		}
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, f.Type)
}

// terms returns the index terms of a normalized value.
func (f Field) terms(v any) []string {
	var out []string
	for _, s := range flatten(v) {
		switch f.Type {
		case Text:
			out = append(out, tokenize(s.(string))...)
		default:
			out = append(out, encodeTerm(s))
		}
	}
	return out
}

// flatten expands lists and multilingual maps into scalars.
func flatten(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	case map[string]string:
		langs := make([]string, 0, len(x))
		for lang := range x {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		out := make([]any, 0, len(x))
		for _, lang := range langs {
			if x[lang] != "" {
				out = append(out, x[lang])
			}
		}
		return out
	default:
		return []any{x}
	}
}

func encodeTerm(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// decodeTerm parses a term back into a comparable value.
func (f Field) decodeTerm(term string) any {
	switch f.Type {
	case Integer:
		n, _ := strconv.ParseInt(term, 10, 64)
		return n
	case Time:
		t, _ := time.Parse(time.RFC3339Nano, term)
		return t
	case Boolean:
		b, _ := strconv.ParseBool(term)
		return b
	}
	return term
}

// compare orders two normalized scalars of the same type.
func compare(a, b any) int {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func asStringMap(v any) (map[string]string, bool) {
	switch x := v.(type) {
	case map[string]string:
		return x, true
	case map[string]any:
		m := make(map[string]string, len(x))
		for k, val := range x {
			if s, ok := val.(string); ok {
				m[k] = s
			}
		}
		return m, true
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
