package catalog

import (
	"github.com/aretw0/introspection"
)

// CatalogState exposes internal state for observability.
type CatalogState struct {
	Path      string   `json:"path,omitempty"`
	Documents int      `json:"documents"`
	Pending   int      `json:"pending"`
	Fields    []string `json:"fields"`
}

// State implements introspection.Introspectable.
func (c *Catalog) State() any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CatalogState{
		Path:      c.path,
		Documents: len(c.ix.docs),
		Pending:   len(c.pending),
		Fields:    c.schema.Names(),
	}
}

// ComponentType implements introspection.Component.
func (c *Catalog) ComponentType() string {
	return "catalog"
}

var _ introspection.Introspectable = (*Catalog)(nil)
var _ introspection.Component = (*Catalog)(nil)
