package core

import (
	"context"
	"sort"
	"strings"
)

// PropertyKind tells how a property holds its value.
type PropertyKind int

const (
	// Simple properties hold a single value.
	Simple PropertyKind = iota
	// Multilingual properties hold one value per language.
	Multilingual
	// Multiple properties hold an ordered list of values.
	Multiple
)

func (k PropertyKind) String() string {
	switch k {
	case Simple:
		return "simple"
	case Multilingual:
		return "multilingual"
	case Multiple:
		return "multiple"
	}
	return "unknown"
}

// Property is a named value of a resource. Only the member matching Kind is used.
type Property struct {
	Kind   PropertyKind
	Value  string
	Lang   map[string]string
	Values []string
}

// IsEmpty reports whether the property holds no value at all.
func (p *Property) IsEmpty() bool {
	switch p.Kind {
	case Multilingual:
		for _, v := range p.Lang {
			if v != "" {
				return false
			}
		}
		return true
	case Multiple:
		return len(p.Values) == 0
	}
	return p.Value == ""
}

// clone returns a deep copy.
func (p *Property) clone() *Property {
	c := &Property{Kind: p.Kind, Value: p.Value}
	if p.Lang != nil {
		c.Lang = make(map[string]string, len(p.Lang))
		for k, v := range p.Lang {
			c.Lang[k] = v
		}
	}
	if p.Values != nil {
		c.Values = append([]string(nil), p.Values...)
	}
	return c
}

// languages returns the languages with a non empty value, sorted.
func (p *Property) languages() []string {
	langs := make([]string, 0, len(p.Lang))
	for lang, v := range p.Lang {
		if v != "" {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}

// negotiate picks the value of a multilingual property. An explicit lang wins;
// otherwise the accepted languages of ctx are tried in order, then def, then
// the smallest available language. It never fails while a value exists.
func (p *Property) negotiate(ctx context.Context, lang, def string) string {
	if lang != "" {
		return p.Lang[lang]
	}
	accepted := Languages(ctx)
	candidates := make([]string, 0, len(accepted)+1)
	candidates = append(append(candidates, accepted...), def)
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if v := p.Lang[c]; v != "" {
			return v
		}
		// "fr-CA" accepts "fr"
		if base, _, ok := strings.Cut(c, "-"); ok {
			if v := p.Lang[base]; v != "" {
				return v
			}
		}
	}
	if langs := p.languages(); len(langs) > 0 {
		return p.Lang[langs[0]]
	}
	return ""
}
