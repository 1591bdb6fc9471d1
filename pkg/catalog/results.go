package catalog

import (
	"fmt"
	"sort"
)

// ResultSet is the set of keys matched by a search.
type ResultSet struct {
	catalog *Catalog
	keys    keySet
}

// Len returns the number of matched documents.
func (rs *ResultSet) Len() int {
	return len(rs.keys)
}

// Has reports whether key is part of the result set.
func (rs *ResultSet) Has(key string) bool {
	_, ok := rs.keys[key]
	return ok
}

// Keys returns the matched keys in lexical order.
func (rs *ResultSet) Keys() []string {
	return sortedKeys(rs.keys)
}

// Search refines the result set with another query.
func (rs *ResultSet) Search(q Query) (*ResultSet, error) {
	next, err := rs.catalog.Search(q)
	if err != nil {
		return nil, err
	}
	out := keySet{}
	for k := range rs.keys {
		if next.Has(k) {
			out.add(k)
		}
	}
	return &ResultSet{catalog: rs.catalog, keys: out}, nil
}

// Page selects and orders the documents returned by ResultSet.Documents.
type Page struct {
	// SortBy names a stored field. Empty sorts by key.
	SortBy  string
	Reverse bool
	Start   int
	// Size limits the number of documents. Zero means no limit.
	Size int
}

// Documents returns the stored fields of the matched documents.
func (rs *ResultSet) Documents(p Page) ([]Result, error) {
	c := rs.catalog
	if p.SortBy != "" {
		f, ok := c.schema[p.SortBy]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, p.SortBy)
		}
		if !f.Stored {
			return nil, fmt.Errorf("cannot sort by %s: field is not stored", p.SortBy)
		}
	}

	c.mu.RLock()
	results := make([]Result, 0, len(rs.keys))
	for k := range rs.keys {
		doc, ok := c.ix.docs[k]
		if !ok {
			continue
		}
		stored := make(Document, len(doc))
		for name, v := range doc {
			if c.schema[name].Stored || name == KeyField {
				stored[name] = v
			}
		}
		results = append(results, Result{values: stored})
	}
	c.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if p.SortBy != "" {
			if n := compareValues(a.values[p.SortBy], b.values[p.SortBy]); n != 0 {
				return (n < 0) != p.Reverse
			}
		}
		return (a.Key() < b.Key()) != p.Reverse
	})

	if p.Start > 0 {
		if p.Start >= len(results) {
			return nil, nil
		}
		results = results[p.Start:]
	}
	if p.Size > 0 && p.Size < len(results) {
		results = results[:p.Size]
	}
	return results, nil
}

// compareValues orders by the first scalar of each value; missing values sort first.
func compareValues(a, b any) int {
	fa, fb := flatten(a), flatten(b)
	switch {
	case len(fa) == 0 && len(fb) == 0:
		return 0
	case len(fa) == 0:
		return -1
	case len(fb) == 0:
		return 1
	}
	return compare(fa[0], fb[0])
}

func sortedKeys(s keySet) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
