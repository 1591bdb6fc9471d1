package core

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Transaction     string   `json:"transaction"`
	Added           int      `json:"added"`
	Changed         int      `json:"changed"`
	Removed         int      `json:"removed"`
	Moves           int      `json:"moves,omitempty"`
	CachedResources int      `json:"cached_resources"`
	DefaultLanguage string   `json:"default_language"`
	Classes         []string `json:"classes"`
	CatalogType     string   `json:"catalog_type"`
	Versioned       bool     `json:"versioned"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	classes := make([]string, 0)
	for _, c := range s.registry.Classes() {
		classes = append(classes, c.ID)
	}

	catalogType := "unknown"
	if comp, ok := s.catalog.(introspection.Component); ok {
		catalogType = comp.ComponentType()
	}
	_, gitless := s.vcs.(nopVCS)

	return StoreState{
		Transaction:     s.transactionState().String(),
		Added:           len(s.changes.added),
		Changed:         len(s.changes.changed),
		Removed:         len(s.changes.removed),
		Moves:           len(s.changes.moves),
		CachedResources: len(s.cache),
		DefaultLanguage: s.defaultLanguage,
		Classes:         classes,
		CatalogType:     catalogType,
		Versioned:       !gitless,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
