package vellum

import (
	"log/slog"
	"time"

	"github.com/aretw0/vellum/internal/platform"
	"github.com/aretw0/vellum/pkg/core"
)

// --- Types ---

// Site is an opened resource database.
type Site = platform.Site

// SiteState is the introspection snapshot of a Site.
type SiteState = platform.SiteState

// --- Configuration ---

// Option defines a functional option for configuring a Site.
type Option = platform.Option

// WithAutoInit creates the site (directory, git repository and root
// resource) when missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithVersioning enables or disables git.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the temporary directory sandbox of `go run`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithMustExist ensures the site directory must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRegistry replaces the stock resource classes.
func WithRegistry(reg *core.Registry) Option {
	return platform.WithRegistry(reg)
}

// WithRootFormat sets the class of the root resource.
func WithRootFormat(id string) Option {
	return platform.WithRootFormat(id)
}

// WithDefaultLanguage sets the fallback language of multilingual properties.
func WithDefaultLanguage(lang string) Option {
	return platform.WithDefaultLanguage(lang)
}

// WithSystemDir allows specifying the hidden directory name (e.g. ".vellum").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithClock overrides time.Now for the commit timestamps.
func WithClock(now func() time.Time) Option {
	return platform.WithClock(now)
}

// --- Factory ---

// ErrNotSite is returned by Open when the directory holds no site.
var ErrNotSite = platform.ErrNotSite

// Open opens an existing site.
func Open(path string, opts ...Option) (*Site, error) {
	return platform.Open(path, opts...)
}

// Init opens the site at path, creating it when needed.
func Init(path string, opts ...Option) (*Site, error) {
	return platform.Init(path, opts...)
}

// --- Safety & Utils ---

// ResolvePath determines the actual path for the site based on safety rules.
func ResolvePath(userPath string, forceTemp bool) string {
	return platform.ResolvePath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot recursively looks upwards for a site root.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// --- Semantic Commits ---

const (
	CommitTypeFeat     = platform.CommitTypeFeat
	CommitTypeFix      = platform.CommitTypeFix
	CommitTypeDocs     = platform.CommitTypeDocs
	CommitTypeRefactor = platform.CommitTypeRefactor
	CommitTypeChore    = platform.CommitTypeChore
)

// FormatChangeReason builds a Conventional Commit message.
func FormatChangeReason(ctype, scope, subject, body string) string {
	return platform.FormatChangeReason(ctype, scope, subject, body)
}

// AppendFooter appends the Vellum footer to an arbitrary message.
func AppendFooter(msg string) string {
	return platform.AppendFooter(msg)
}
