// Package classes ships the stock resource classes.
package classes

import (
	"github.com/aretw0/vellum/pkg/catalog"
	"github.com/aretw0/vellum/pkg/core"
)

// Class IDs.
const (
	Root   = "root"
	Folder = "folder"
	File   = "file"
	Page   = "page"
)

// Handler names.
const (
	DataHandler = "data"
	BodyHandler = "body"
)

// Workflow states of a page.
const (
	StatePrivate = "private"
	StatePending = "pending"
	StatePublic  = "public"
)

// NewRoot returns the class of the tree root.
func NewRoot() *core.Class {
	return &core.Class{
		ID:      Root,
		Version: "1",
		Folder:  true,
		Accepts: []string{Folder, File, Page},
	}
}

// NewFolder returns the generic folder class.
func NewFolder() *core.Class {
	return &core.Class{
		ID:      Folder,
		Version: "1",
		Folder:  true,
		Accepts: []string{Folder, File, Page},
		Fields: []core.Field{
			{Name: "description", Kind: core.Multilingual, Type: catalog.Text, Indexed: true},
		},
	}
}

// NewFile returns the class of binary or text files.
func NewFile() *core.Class {
	return &core.Class{
		ID:       File,
		Version:  "1",
		Handlers: []string{DataHandler},
		FullText: []string{DataHandler},
		Fields: []core.Field{
			{Name: "mimetype", Kind: core.Simple, Type: catalog.Keyword, Indexed: true, Stored: true},
			{Name: "filename", Kind: core.Simple, Type: catalog.Keyword, Stored: true},
		},
	}
}

// NewPage returns the class of web pages. Pages link to other resources
// through "related" and follow a publication workflow.
func NewPage() *core.Class {
	return &core.Class{
		ID:       Page,
		Version:  "1",
		Handlers: []string{BodyHandler},
		FullText: []string{BodyHandler},
		Fields: []core.Field{
			{Name: "workflow_state", Kind: core.Simple, Type: catalog.Keyword, Indexed: true, Stored: true},
			{Name: "related", Kind: core.Multiple, Type: catalog.Keyword, Link: true},
			{Name: "thumbnail", Kind: core.Simple, Type: catalog.Keyword, Link: true},
			{Name: "subject", Kind: core.Multiple, Type: catalog.Keyword, Indexed: true, Stored: true},
		},
	}
}

// NewRegistry returns a registry holding every stock class.
func NewRegistry() (*core.Registry, error) {
	return core.NewRegistry(NewRoot(), NewFolder(), NewFile(), NewPage())
}
