package core

import (
	"fmt"
	"slices"
	"sort"

	"github.com/aretw0/vellum/pkg/catalog"
)

// Field declares a property of a resource class and how it is indexed.
type Field struct {
	Name string
	Kind PropertyKind
	// Type is the catalog type of the values. Zero is catalog.Keyword.
	Type    catalog.FieldType
	Indexed bool
	Stored  bool
	// Link fields hold absolute paths of other resources.
	Link bool
}

// Class is a resource type: its properties, handlers and paste rules.
type Class struct {
	ID      string
	Version string
	Folder  bool
	// Accepts lists the classes a folder takes as children. "*" accepts any.
	Accepts []string
	// Parents lists the folder classes this class can be pasted into. Empty means any.
	Parents  []string
	Fields   []Field
	Handlers []string
	// FullText lists the handlers whose content feeds the "text" field.
	FullText []string
}

// Field returns the declaration of a property, looking at the base fields
// shared by all classes first.
func (c *Class) Field(name string) (Field, bool) {
	for _, f := range BaseFields {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasHandler reports whether the class declares the named handler.
func (c *Class) HasHandler(name string) bool {
	return slices.Contains(c.Handlers, name)
}

// CanPaste reports whether this folder class accepts child as a child.
func (c *Class) CanPaste(child *Class) bool {
	if !c.Folder {
		return false
	}
	return slices.Contains(c.Accepts, "*") || slices.Contains(c.Accepts, child.ID)
}

// CanPasteInto reports whether this class can live inside parent.
func (c *Class) CanPasteInto(parent *Class) bool {
	return len(c.Parents) == 0 || slices.Contains(c.Parents, parent.ID)
}

// Base property names shared by all classes.
const (
	PropTitle      = "title"
	PropUUID       = "uuid"
	PropCTime      = "ctime"
	PropMTime      = "mtime"
	PropLastAuthor = "last_author"
)

// BaseFields are the properties every class has.
var BaseFields = []Field{
	{Name: PropTitle, Kind: Multilingual, Type: catalog.Text, Indexed: true, Stored: true},
	{Name: PropUUID, Kind: Simple, Type: catalog.Keyword, Indexed: true, Stored: true},
	{Name: PropCTime, Kind: Simple, Type: catalog.Time, Indexed: true, Stored: true},
	{Name: PropMTime, Kind: Simple, Type: catalog.Time, Indexed: true, Stored: true},
	{Name: PropLastAuthor, Kind: Simple, Type: catalog.Keyword, Indexed: true, Stored: true},
}

// baseSchema holds the structural fields of every index document.
var baseSchema = catalog.Schema{
	catalog.KeyField: {Type: catalog.Keyword, Indexed: true, Stored: true},
	"name":           {Type: catalog.Keyword, Indexed: true, Stored: true},
	"format":         {Type: catalog.Keyword, Indexed: true, Stored: true},
	"version":        {Type: catalog.Keyword, Stored: true},
	"parent_path":    {Type: catalog.Keyword, Indexed: true},
	"paths":          {Type: catalog.Keyword, Indexed: true, Multiple: true},
	"links":          {Type: catalog.Keyword, Indexed: true, Multiple: true},
	"size":           {Type: catalog.Integer, Indexed: true, Stored: true},
	"text":           {Type: catalog.Text, Indexed: true},
}

// Registry maps format tags to resource classes. It is built once and
// handed to the store.
type Registry struct {
	classes map[string]*Class
}

// NewRegistry builds a registry from the given classes.
func NewRegistry(classes ...*Class) (*Registry, error) {
	r := &Registry{classes: make(map[string]*Class)}
	for _, c := range classes {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a class. Registering the same ID twice is an error.
func (r *Registry) Register(c *Class) error {
	if c.ID == "" {
		return fmt.Errorf("class has no id")
	}
	if _, ok := r.classes[c.ID]; ok {
		return fmt.Errorf("class %q already registered", c.ID)
	}
	r.classes[c.ID] = c
	return nil
}

// Get returns the class registered under format.
func (r *Registry) Get(format string) (*Class, error) {
	c, ok := r.classes[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, format)
	}
	return c, nil
}

// Classes returns the registered classes sorted by ID.
func (r *Registry) Classes() []*Class {
	out := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Schema derives the catalog schema from the base fields and the indexed or
// stored fields of every class.
func (r *Registry) Schema() (catalog.Schema, error) {
	s := catalog.Schema{}
	if err := s.Merge(baseSchema); err != nil {
		return nil, err
	}
	add := func(f Field) error {
		if !f.Indexed && !f.Stored {
			return nil
		}
		return s.Merge(catalog.Schema{f.Name: {
			Type:     f.Type,
			Indexed:  f.Indexed,
			Stored:   f.Stored,
			Multiple: f.Kind == Multiple,
		}})
	}
	for _, f := range BaseFields {
		if err := add(f); err != nil {
			return nil, err
		}
	}
	for _, c := range r.Classes() {
		for _, f := range c.Fields {
			if err := add(f); err != nil {
				return nil, fmt.Errorf("class %s: %w", c.ID, err)
			}
		}
	}
	return s, nil
}
