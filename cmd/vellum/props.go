package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/vellum/pkg/core"
)

// parseProps turns name=value pairs into properties of class. A name given
// more than once, or declared as a multiple field, collects a list. The
// name[lang]=value form sets one language of a multilingual property.
func parseProps(class *core.Class, pairs []string) (core.Props, error) {
	props := core.Props{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid property %q, expected name=value", pair)
		}
		if base, lang, ok := strings.Cut(name, "["); ok && strings.HasSuffix(lang, "]") {
			lang = strings.TrimSuffix(lang, "]")
			m, _ := props[base].(map[string]string)
			if m == nil {
				if _, taken := props[base]; taken {
					return nil, fmt.Errorf("property %s mixes languages and plain values", base)
				}
				m = map[string]string{}
			}
			m[lang] = value
			props[base] = m
			continue
		}

		multiple := false
		if f, ok := class.Field(name); ok && f.Kind == core.Multiple {
			multiple = true
		}
		switch old := props[name].(type) {
		case nil:
			if multiple {
				props[name] = []string{value}
			} else {
				props[name] = value
			}
		case string:
			props[name] = []string{old, value}
		case []string:
			props[name] = append(old, value)
		default:
			return nil, fmt.Errorf("property %s mixes languages and plain values", name)
		}
	}
	return props, nil
}
