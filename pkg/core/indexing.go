package core

import (
	"context"
	"slices"
	"strings"

	"github.com/aretw0/vellum/pkg/catalog"
)

// Document computes the index document of r from its live state.
func (s *Store) Document(ctx context.Context, r *Resource) (catalog.Document, error) {
	doc := catalog.Document{
		catalog.KeyField: r.path,
		"name":           r.Name(),
		"format":         r.Format(),
		"version":        r.Version(),
		"paths":          Ancestors(r.path),
		"links":          r.Links(),
	}
	if parent := r.ParentPath(); parent != "" {
		doc["parent_path"] = parent
	}

	fields := append(append([]Field(nil), BaseFields...), r.class.Fields...)
	for _, f := range fields {
		if !f.Indexed && !f.Stored {
			continue
		}
		p, ok := r.meta.Properties[f.Name]
		if !ok {
			continue
		}
		switch p.Kind {
		case Multilingual:
			lang := make(map[string]string, len(p.Lang))
			for k, v := range p.Lang {
				lang[k] = v
			}
			doc[f.Name] = lang
		case Multiple:
			doc[f.Name] = append([]string(nil), p.Values...)
		default:
			doc[f.Name] = p.Value
		}
	}

	if r.IsFolder() {
		names, err := s.childNames(ctx, r.path)
		if err != nil {
			return nil, err
		}
		doc["size"] = len(names)
	} else {
		size := 0
		var text []string
		for _, name := range r.class.Handlers {
			h, err := r.Handler(name)
			if err != nil {
				return nil, err
			}
			data, err := h.Data(ctx)
			if err != nil {
				return nil, err
			}
			size += len(data)
			if len(data) > 0 && slices.Contains(r.class.FullText, name) {
				text = append(text, string(data))
			}
		}
		doc["size"] = size
		if len(text) > 0 {
			doc["text"] = strings.Join(text, "\n")
		}
	}
	return doc, nil
}
