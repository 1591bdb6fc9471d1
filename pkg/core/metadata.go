package core

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// MetadataSuffix is appended to a resource path to name its metadata file.
const MetadataSuffix = ".metadata"

// Metadata is the property bag of a resource, persisted apart from its handlers.
type Metadata struct {
	Format     string
	Version    string
	Properties map[string]*Property
}

// NewMetadata returns empty metadata for the given class.
func NewMetadata(format, version string) *Metadata {
	return &Metadata{Format: format, Version: version, Properties: make(map[string]*Property)}
}

// Names returns the names of the non empty properties, sorted.
func (m *Metadata) Names() []string {
	names := make([]string, 0, len(m.Properties))
	for name, p := range m.Properties {
		if !p.IsEmpty() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (m *Metadata) clone() *Metadata {
	c := NewMetadata(m.Format, m.Version)
	for name, p := range m.Properties {
		c.Properties[name] = p.clone()
	}
	return c
}

type yamlProperty struct {
	Value  string            `yaml:"value,omitempty"`
	Lang   map[string]string `yaml:"lang,omitempty"`
	Values []string          `yaml:"values,omitempty"`
}

type yamlMetadata struct {
	Format     string                  `yaml:"format"`
	Version    string                  `yaml:"version,omitempty"`
	Properties map[string]yamlProperty `yaml:"properties,omitempty"`
}

// MarshalMetadata encodes m as YAML. Empty properties and empty language
// values are omitted; map keys are emitted sorted.
func MarshalMetadata(m *Metadata) ([]byte, error) {
	doc := yamlMetadata{Format: m.Format, Version: m.Version}
	for _, name := range m.Names() {
		p := m.Properties[name]
		var yp yamlProperty
		switch p.Kind {
		case Simple:
			yp.Value = p.Value
		case Multilingual:
			yp.Lang = make(map[string]string)
			for _, lang := range p.languages() {
				yp.Lang[lang] = p.Lang[lang]
			}
		case Multiple:
			yp.Values = p.Values
		}
		if doc.Properties == nil {
			doc.Properties = make(map[string]yamlProperty)
		}
		doc.Properties[name] = yp
	}
	return yaml.Marshal(doc)
}

// UnmarshalMetadata decodes a metadata file.
func UnmarshalMetadata(data []byte) (*Metadata, error) {
	var doc yamlMetadata
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if doc.Format == "" {
		return nil, fmt.Errorf("failed to parse metadata: missing format")
	}

	m := NewMetadata(doc.Format, doc.Version)
	for name, yp := range doc.Properties {
		p := &Property{}
		switch {
		case len(yp.Lang) > 0 && len(yp.Values) > 0:
			return nil, fmt.Errorf("property %q: %w: both multilingual and multiple", name, ErrPropertyKind)
		case len(yp.Lang) > 0:
			p.Kind, p.Lang = Multilingual, yp.Lang
		case len(yp.Values) > 0:
			p.Kind, p.Values = Multiple, yp.Values
		default:
			p.Kind, p.Value = Simple, yp.Value
		}
		if !p.IsEmpty() {
			m.Properties[name] = p
		}
	}
	return m, nil
}
