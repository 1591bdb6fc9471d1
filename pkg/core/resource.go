package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Resource is a node of the tree: metadata plus content handlers.
//
// A resource returned by the store is live: property setters register it
// in the change set of the open transaction.
type Resource struct {
	store    *Store
	path     string
	class    *Class
	meta     *Metadata
	handlers map[string]*Handler
}

// Path returns the absolute path of the resource.
func (r *Resource) Path() string { return r.path }

// Name returns the last path segment, empty for the root.
func (r *Resource) Name() string { return BaseName(r.path) }

// ParentPath returns the path of the containing folder.
func (r *Resource) ParentPath() string { return ParentPath(r.path) }

// Class returns the class of the resource.
func (r *Resource) Class() *Class { return r.class }

// Format returns the class tag.
func (r *Resource) Format() string { return r.meta.Format }

// Version returns the class version the metadata was written with.
func (r *Resource) Version() string { return r.meta.Version }

// IsFolder reports whether the resource can have children.
func (r *Resource) IsFolder() bool { return r.class.Folder }

// Metadata returns a copy of the property bag.
func (r *Resource) Metadata() *Metadata { return r.meta.clone() }

// Property returns a copy of a property.
func (r *Resource) Property(name string) (Property, bool) {
	p, ok := r.meta.Properties[name]
	if !ok {
		return Property{}, false
	}
	return *p.clone(), true
}

// GetValue returns the value of a simple or multilingual property. For
// multilingual properties lang selects the language; when empty the
// language is negotiated.
func (r *Resource) GetValue(ctx context.Context, name, lang string) string {
	p, ok := r.meta.Properties[name]
	if !ok {
		return ""
	}
	switch p.Kind {
	case Multilingual:
		return p.negotiate(ctx, lang, r.store.defaultLanguage)
	case Multiple:
		if len(p.Values) > 0 {
			return p.Values[0]
		}
		return ""
	}
	return p.Value
}

// GetValues returns the values of a multiple property, or the single value
// of a simple one.
func (r *Resource) GetValues(name string) []string {
	p, ok := r.meta.Properties[name]
	if !ok {
		return nil
	}
	switch p.Kind {
	case Multiple:
		return slices.Clone(p.Values)
	case Simple:
		if p.Value != "" {
			return []string{p.Value}
		}
	}
	return nil
}

// Title returns the negotiated title, or the name when there is none.
func (r *Resource) Title(ctx context.Context) string {
	if t := r.GetValue(ctx, PropTitle, ""); t != "" {
		return t
	}
	return r.Name()
}

// kind returns the kind a property must have. Declared fields decide; an
// undeclared property keeps the kind it already has.
func (r *Resource) kind(name string, fallback PropertyKind) PropertyKind {
	if f, ok := r.class.Field(name); ok {
		return f.Kind
	}
	if p, ok := r.meta.Properties[name]; ok {
		return p.Kind
	}
	return fallback
}

// SetValue sets a simple property, or one language of a multilingual one.
// An empty lang on a multilingual property uses the store default language.
func (r *Resource) SetValue(name, value, lang string) error {
	p, err := r.valueProperty(name, value, lang)
	if err != nil {
		return err
	}
	return r.setProperty(name, p)
}

// SetValues replaces the values of a multiple property.
func (r *Resource) SetValues(name string, values ...string) error {
	p, err := r.valuesProperty(name, values)
	if err != nil {
		return err
	}
	return r.setProperty(name, p)
}

// checkType rejects values the catalog cannot index with the declared
// field type.
func (r *Resource) checkType(name string, values ...string) error {
	f, ok := r.class.Field(name)
	if !ok {
		return nil
	}
	for _, v := range values {
		if err := f.Type.Check(v); err != nil {
			return fmt.Errorf("%w: %s is a %s field: %w", ErrPropertyKind, name, f.Type, err)
		}
	}
	return nil
}

func (r *Resource) valueProperty(name, value, lang string) (*Property, error) {
	if err := r.checkType(name, value); err != nil {
		return nil, err
	}
	fallback := Simple
	if lang != "" {
		fallback = Multilingual
	}
	switch r.kind(name, fallback) {
	case Multiple:
		return nil, fmt.Errorf("%w: %s is a multiple property", ErrPropertyKind, name)
	case Multilingual:
		if lang == "" {
			lang = r.store.defaultLanguage
		}
		p := &Property{Kind: Multilingual, Lang: map[string]string{}}
		if old, ok := r.meta.Properties[name]; ok && old.Kind == Multilingual {
			p = old.clone()
		}
		p.Lang[lang] = value
		return p, nil
	}
	if lang != "" {
		return nil, fmt.Errorf("%w: %s is not multilingual", ErrPropertyKind, name)
	}
	return &Property{Kind: Simple, Value: value}, nil
}

func (r *Resource) valuesProperty(name string, values []string) (*Property, error) {
	if kind := r.kind(name, Multiple); kind != Multiple {
		return nil, fmt.Errorf("%w: %s is a %s property", ErrPropertyKind, name, kind)
	}
	if err := r.checkType(name, values...); err != nil {
		return nil, err
	}
	return &Property{Kind: Multiple, Values: slices.Clone(values)}, nil
}

// Props are the initial properties of a new resource. Values are a string,
// a []string for multiple properties or a map[string]string of languages.
type Props map[string]any

// applyProps sets props without touching the change set.
func (r *Resource) applyProps(props Props) error {
	for name, v := range props {
		var (
			p   *Property
			err error
		)
		switch x := v.(type) {
		case string:
			p, err = r.valueProperty(name, x, "")
		case []string:
			p, err = r.valuesProperty(name, x)
		case map[string]string:
			if kind := r.kind(name, Multilingual); kind != Multilingual {
				return fmt.Errorf("%w: %s is a %s property", ErrPropertyKind, name, kind)
			}
			p = &Property{Kind: Multilingual, Lang: make(map[string]string, len(x))}
			for lang, s := range x {
				if err := r.checkType(name, s); err != nil {
					return err
				}
				p.Lang[lang] = s
			}
		default:
			return fmt.Errorf("%w: unsupported value %T for %s", ErrPropertyKind, v, name)
		}
		if err != nil {
			return err
		}
		r.assign(name, p)
	}
	return nil
}

// SetProps sets several properties at once. Nothing is changed when one of
// them is rejected. An empty value removes the property.
func (r *Resource) SetProps(props Props) error {
	saved := r.meta.clone()
	if err := r.applyProps(props); err != nil {
		r.meta = saved
		return err
	}
	if err := r.store.changes.ChangeResource(r); err != nil {
		r.meta = saved
		return err
	}
	return nil
}

func (r *Resource) assign(name string, p *Property) {
	if p.IsEmpty() {
		delete(r.meta.Properties, name)
		return
	}
	r.meta.Properties[name] = p
}

// DelProperty removes a property.
func (r *Resource) DelProperty(name string) error {
	if _, ok := r.meta.Properties[name]; !ok {
		return nil
	}
	if err := r.store.changes.ChangeResource(r); err != nil {
		return err
	}
	delete(r.meta.Properties, name)
	return nil
}

func (r *Resource) setProperty(name string, p *Property) error {
	if err := r.store.changes.ChangeResource(r); err != nil {
		return err
	}
	r.assign(name, p)
	return nil
}

// Links returns the absolute paths held by the link fields of the class,
// sorted and without duplicates.
func (r *Resource) Links() []string {
	var links []string
	for _, f := range r.class.Fields {
		if !f.Link {
			continue
		}
		for _, v := range r.linkValues(f.Name) {
			links = append(links, CleanPath(v))
		}
	}
	slices.Sort(links)
	return slices.Compact(links)
}

func (r *Resource) linkValues(name string) []string {
	p, ok := r.meta.Properties[name]
	if !ok {
		return nil
	}
	if p.Kind == Multiple {
		return p.Values
	}
	if p.Value != "" {
		return []string{p.Value}
	}
	return nil
}

// rewriteLinks points the links into moved subtrees at their new paths.
// Each value is rewritten once, by the deepest matching move. It reports
// whether any value changed.
func (r *Resource) rewriteLinks(moves map[string]string) bool {
	changed := false
	for _, f := range r.class.Fields {
		if !f.Link {
			continue
		}
		p, ok := r.meta.Properties[f.Name]
		if !ok {
			continue
		}
		switch p.Kind {
		case Multiple:
			for i, v := range p.Values {
				if np, ok := movedPath(CleanPath(v), moves); ok {
					p.Values[i] = np
					changed = true
				}
			}
		case Simple:
			if np, ok := movedPath(CleanPath(p.Value), moves); ok {
				p.Value = np
				changed = true
			}
		}
	}
	return changed
}

// Handler returns the named content handler. A handler with no stored
// content is a phantom: it reads as empty until SetData is called.
func (r *Resource) Handler(name string) (*Handler, error) {
	if !r.class.HasHandler(name) {
		return nil, fmt.Errorf("%w: class %s has no handler %q", ErrUnknownHandler, r.class.ID, name)
	}
	if h, ok := r.handlers[name]; ok {
		return h, nil
	}
	h := &Handler{resource: r, name: name, key: handlerKey(r.path, name)}
	r.handlers[name] = h
	return h, nil
}

// Handler is the raw content payload of a resource.
type Handler struct {
	resource *Resource
	name     string
	key      string
	data     []byte
	loaded   bool
	phantom  bool
	dirty    bool
}

// Name returns the handler name.
func (h *Handler) Name() string { return h.name }

// Key returns the storage key of the content.
func (h *Handler) Key() string { return h.key }

func (h *Handler) load(ctx context.Context) error {
	if h.loaded {
		return nil
	}
	data, err := h.resource.store.storage.Read(ctx, h.key)
	switch {
	case errors.Is(err, ErrNotFound):
		h.data, h.phantom = nil, true
	case err != nil:
		return fmt.Errorf("failed to read handler %s: %w", h.key, err)
	default:
		h.data, h.phantom = data, false
	}
	h.loaded = true
	return nil
}

// Data returns the content.
func (h *Handler) Data(ctx context.Context) ([]byte, error) {
	if err := h.load(ctx); err != nil {
		return nil, err
	}
	return h.data, nil
}

// IsPhantom reports whether the handler has no stored content yet.
func (h *Handler) IsPhantom(ctx context.Context) (bool, error) {
	if err := h.load(ctx); err != nil {
		return false, err
	}
	return h.phantom, nil
}

// Size returns the content length.
func (h *Handler) Size(ctx context.Context) (int, error) {
	data, err := h.Data(ctx)
	return len(data), err
}

// SetData replaces the content. The write is queued in storage and becomes
// durable on commit.
func (h *Handler) SetData(ctx context.Context, data []byte) error {
	r := h.resource
	if err := r.store.changes.ChangeResource(r); err != nil {
		return err
	}
	if err := r.store.storage.Write(ctx, h.key, data); err != nil {
		return fmt.Errorf("failed to write handler %s: %w", h.key, err)
	}
	h.data, h.loaded, h.phantom, h.dirty = slices.Clone(data), true, false, true
	return nil
}

// keys returns the storage keys of the metadata and of every declared handler.
func (r *Resource) keys() []string {
	keys := []string{metadataKey(r.path)}
	for _, name := range r.class.Handlers {
		keys = append(keys, handlerKey(r.path, name))
	}
	return keys
}
