package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Query errors.
var (
	ErrUnknownField = errors.New("unknown field")
	ErrNotIndexed   = errors.New("field is not indexed")
)

// Query is a boolean composition of predicates over indexed fields.
type Query interface {
	eval(ix *index) (keySet, error)
	String() string
}

type keySet map[string]struct{}

func (s keySet) add(k string) { s[k] = struct{}{} }

// PhraseQuery matches documents whose field equals Value. On text fields the
// tokens of Value must appear contiguously.
type PhraseQuery struct {
	Field string
	Value any
}

// Phrase builds a PhraseQuery.
func Phrase(field string, value any) PhraseQuery {
	return PhraseQuery{Field: field, Value: value}
}

func (q PhraseQuery) String() string { return fmt.Sprintf("%s:%q", q.Field, fmt.Sprint(q.Value)) }

func (q PhraseQuery) eval(ix *index) (keySet, error) {
	field, err := ix.field(q.Field)
	if err != nil {
		return nil, err
	}
	postings := ix.postings[q.Field]
	out := keySet{}

	if field.Type != Text {
		v, err := field.scalar(q.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", q, err)
		}
		if v == nil {
			return out, nil
		}
		for k := range postings[encodeTerm(v)] {
			out.add(k)
		}
		return out, nil
	}

	tokens := tokenize(fmt.Sprint(q.Value))
	if len(tokens) == 0 {
		return out, nil
	}
	for k := range postings[tokens[0]] {
		out.add(k)
	}
	for _, tok := range tokens[1:] {
		next := postings[tok]
		for k := range out {
			if _, ok := next[k]; !ok {
				delete(out, k)
			}
		}
	}
	if len(tokens) > 1 {
		for k := range out {
			if !containsSequence(field.terms(ix.docs[k][q.Field]), tokens) {
				delete(out, k)
			}
		}
	}
	return out, nil
}

func containsSequence(haystack, needle []string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// RangeQuery matches documents with a value in [Min, Max]. A nil bound is open.
type RangeQuery struct {
	Field    string
	Min, Max any
}

// Range builds a RangeQuery.
func Range(field string, min, max any) RangeQuery {
	return RangeQuery{Field: field, Min: min, Max: max}
}

func (q RangeQuery) String() string {
	return fmt.Sprintf("%s:[%v TO %v]", q.Field, q.Min, q.Max)
}

func (q RangeQuery) eval(ix *index) (keySet, error) {
	field, err := ix.field(q.Field)
	if err != nil {
		return nil, err
	}
	var min, max any
	if q.Min != nil {
		if min, err = field.scalar(q.Min); err != nil {
			return nil, fmt.Errorf("%s: %w", q, err)
		}
	}
	if q.Max != nil {
		if max, err = field.scalar(q.Max); err != nil {
			return nil, fmt.Errorf("%s: %w", q, err)
		}
	}

	out := keySet{}
	for term, keys := range ix.postings[q.Field] {
		v := field.decodeTerm(term)
		if min != nil && compare(v, min) < 0 {
			continue
		}
		if max != nil && compare(v, max) > 0 {
			continue
		}
		for k := range keys {
			out.add(k)
		}
	}
	return out, nil
}

// PrefixQuery matches documents having a term that starts with Prefix.
type PrefixQuery struct {
	Field  string
	Prefix string
}

// Prefix builds a PrefixQuery.
func Prefix(field, prefix string) PrefixQuery {
	return PrefixQuery{Field: field, Prefix: prefix}
}

func (q PrefixQuery) String() string { return fmt.Sprintf("%s:%s*", q.Field, q.Prefix) }

func (q PrefixQuery) eval(ix *index) (keySet, error) {
	field, err := ix.field(q.Field)
	if err != nil {
		return nil, err
	}
	prefix := q.Prefix
	if field.Type == Text {
		prefix = strings.ToLower(prefix)
	}
	out := keySet{}
	for term, keys := range ix.postings[q.Field] {
		if !strings.HasPrefix(term, prefix) {
			continue
		}
		for k := range keys {
			out.add(k)
		}
	}
	return out, nil
}

// GlobQuery matches documents having a term that matches a doublestar pattern,
// e.g. Glob("abspath", "/blog/**").
type GlobQuery struct {
	Field   string
	Pattern string
}

// Glob builds a GlobQuery.
func Glob(field, pattern string) GlobQuery {
	return GlobQuery{Field: field, Pattern: pattern}
}

func (q GlobQuery) String() string { return fmt.Sprintf("%s:glob(%s)", q.Field, q.Pattern) }

func (q GlobQuery) eval(ix *index) (keySet, error) {
	if _, err := ix.field(q.Field); err != nil {
		return nil, err
	}
	if !doublestar.ValidatePattern(q.Pattern) {
		return nil, fmt.Errorf("%s: %w", q, doublestar.ErrBadPattern)
	}
	out := keySet{}
	for term, keys := range ix.postings[q.Field] {
		ok, err := doublestar.Match(q.Pattern, term)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for k := range keys {
			out.add(k)
		}
	}
	return out, nil
}

// WhereQuery filters documents with a boolean expr-lang expression evaluated
// against the document values, e.g. `size > 1024 && format == "file"`.
// Documents for which the expression fails to evaluate do not match.
type WhereQuery struct {
	Source  string
	program *vm.Program
}

// Where compiles an expression into a WhereQuery.
func Where(source string) (*WhereQuery, error) {
	program, err := expr.Compile(source, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", source, err)
	}
	return &WhereQuery{Source: source, program: program}, nil
}

func (q *WhereQuery) String() string { return fmt.Sprintf("where(%s)", q.Source) }

func (q *WhereQuery) eval(ix *index) (keySet, error) {
	out := keySet{}
	for k, doc := range ix.docs {
		env := make(map[string]any, len(doc))
		for name, v := range doc {
			env[name] = v
		}
		res, err := expr.Run(q.program, env)
		if err != nil {
			continue
		}
		if ok, _ := res.(bool); ok {
			out.add(k)
		}
	}
	return out, nil
}

// AndQuery matches documents matched by every sub-query.
type AndQuery []Query

// And builds an AndQuery.
func And(qs ...Query) AndQuery { return AndQuery(qs) }

func (q AndQuery) String() string { return join("AND", q) }

func (q AndQuery) eval(ix *index) (keySet, error) {
	if len(q) == 0 {
		return ix.all(), nil
	}
	out, err := q[0].eval(ix)
	if err != nil {
		return nil, err
	}
	for _, sub := range q[1:] {
		next, err := sub.eval(ix)
		if err != nil {
			return nil, err
		}
		for k := range out {
			if _, ok := next[k]; !ok {
				delete(out, k)
			}
		}
	}
	return out, nil
}

// OrQuery matches documents matched by any sub-query.
type OrQuery []Query

// Or builds an OrQuery.
func Or(qs ...Query) OrQuery { return OrQuery(qs) }

func (q OrQuery) String() string { return join("OR", q) }

func (q OrQuery) eval(ix *index) (keySet, error) {
	out := keySet{}
	for _, sub := range q {
		next, err := sub.eval(ix)
		if err != nil {
			return nil, err
		}
		for k := range next {
			out.add(k)
		}
	}
	return out, nil
}

// NotQuery matches documents not matched by Query.
type NotQuery struct {
	Query Query
}

// Not builds a NotQuery.
func Not(q Query) NotQuery { return NotQuery{Query: q} }

func (q NotQuery) String() string { return "NOT " + q.Query.String() }

func (q NotQuery) eval(ix *index) (keySet, error) {
	excluded, err := q.Query.eval(ix)
	if err != nil {
		return nil, err
	}
	out := keySet{}
	for k := range ix.docs {
		if _, ok := excluded[k]; !ok {
			out.add(k)
		}
	}
	return out, nil
}

// AllQuery matches every document.
type AllQuery struct{}

// All builds an AllQuery.
func All() AllQuery { return AllQuery{} }

func (AllQuery) String() string { return "*" }

func (AllQuery) eval(ix *index) (keySet, error) { return ix.all(), nil }

func join(op string, qs []Query) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = q.String()
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}
