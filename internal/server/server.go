// Package server exposes a site over a JSON HTTP API. Every mutating request
// is one transaction: it ends in exactly one commit, or in none.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/aretw0/vellum/pkg/core"
)

// Database is the transactional surface the server drives. *platform.Site
// implements it.
type Database interface {
	Update(ctx context.Context, fn func(ctx context.Context, store *core.Store) error) error
	View(ctx context.Context, fn func(ctx context.Context, store *core.Store) error) error
	Reindex(ctx context.Context) (int, error)
	Check(ctx context.Context) ([]core.FileStatus, error)
	State() any
}

// Request headers carrying the authoring context of a transaction.
const (
	HeaderAuthorName   = "X-Author-Name"
	HeaderAuthorEmail  = "X-Author-Email"
	HeaderChangeReason = "X-Change-Reason"
	HeaderLanguage     = "Accept-Language"
	HeaderRequestID    = "X-Request-Id"
)

// Config holds the server settings.
type Config struct {
	Addr   string
	Logger *slog.Logger
	// ShutdownTimeout bounds the graceful shutdown. Defaults to 5s.
	ShutdownTimeout time.Duration
}

// Server routes the API to a Database.
type Server struct {
	db     Database
	config Config
	logger *slog.Logger
	router *mux.Router
}

// New creates a server over db.
func New(db Database, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{db: db, config: cfg, logger: logger, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.requestContext)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/resources/{path:.*}", s.handleGetResource).Methods(http.MethodGet)
	api.HandleFunc("/resources/{path:.*}", s.handleMakeResource).Methods(http.MethodPost)
	api.HandleFunc("/resources/{path:.*}", s.handlePatchResource).Methods(http.MethodPatch)
	api.HandleFunc("/resources/{path:.*}", s.handleDeleteResource).Methods(http.MethodDelete)
	api.HandleFunc("/content/{handler}/{path:.*}", s.handleGetContent).Methods(http.MethodGet)
	api.HandleFunc("/content/{handler}/{path:.*}", s.handlePutContent).Methods(http.MethodPut)
	api.HandleFunc("/move", s.handleTransfer(true)).Methods(http.MethodPost)
	api.HandleFunc("/copy", s.handleTransfer(false)).Methods(http.MethodPost)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/revisions/{path:.*}", s.handleRevisions).Methods(http.MethodGet)
	api.HandleFunc("/check", s.handleCheck).Methods(http.MethodGet)
	api.HandleFunc("/reindex", s.handleReindex).Methods(http.MethodPost)
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestContext carries the author, change reason and languages of the
// request in its context, and tags it with a request id.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)

		ctx := r.Context()
		if name := r.Header.Get(HeaderAuthorName); name != "" {
			ctx = core.WithAuthor(ctx, core.Author{Name: name, Email: r.Header.Get(HeaderAuthorEmail)})
		}
		if reason := r.Header.Get(HeaderChangeReason); reason != "" {
			ctx = core.WithChangeReason(ctx, reason)
		}
		if langs := parseAcceptLanguage(r.Header.Get(HeaderLanguage)); len(langs) > 0 {
			ctx = core.WithLanguages(ctx, langs...)
		}

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		s.logger.Debug("request served", "id", id, "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
