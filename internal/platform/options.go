package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/vellum/pkg/core"
)

// options holds the internal configuration of a Site.
type options struct {
	logger          *slog.Logger
	registry        *core.Registry
	rootFormat      string
	defaultLanguage string
	systemDir       string
	clock           func() time.Time

	autoInit  bool
	mustExist bool
	forceTemp bool
	devSafety bool
	// versioning is nil until set explicitly; it is then detected.
	versioning *bool
}

// Option defines a functional option for configuring a Site.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		devSafety: true,
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistry replaces the stock resource classes.
func WithRegistry(reg *core.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithRootFormat sets the class of the root folder created by Init.
func WithRootFormat(id string) Option {
	return func(o *options) {
		o.rootFormat = id
	}
}

// WithDefaultLanguage sets the fallback language of multilingual properties.
func WithDefaultLanguage(lang string) Option {
	return func(o *options) {
		o.defaultLanguage = lang
	}
}

// WithSystemDir sets the private directory name. Defaults to ".vellum".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.systemDir = name
	}
}

// WithClock overrides time.Now for the commit timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithAutoInit creates the directory, the git repository and the root
// resource when missing.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.autoInit = auto
	}
}

// WithMustExist ensures the site directory already exists.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithVersioning enables or disables git. When not set, git is used if the
// directory is a repository, or when a new site is initialized.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.versioning = &enabled
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox used when running via `go run`.
// By default (true) such runs are redirected to a temporary directory.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}
