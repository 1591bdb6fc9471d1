package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aretw0/vellum/pkg/catalog"
	"github.com/aretw0/vellum/pkg/core"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusOf maps store errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNameCollision),
		errors.Is(err, core.ErrConsistency),
		errors.Is(err, core.ErrRemoved),
		errors.Is(err, core.ErrAlreadyTracked):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidName),
		errors.Is(err, core.ErrUnknownClass),
		errors.Is(err, core.ErrUnknownHandler),
		errors.Is(err, core.ErrPropertyKind),
		errors.Is(err, core.ErrInvalidRefAction),
		errors.Is(err, core.ErrNotFolder),
		errors.Is(err, core.ErrRootResource),
		errors.Is(err, catalog.ErrUnknownField),
		errors.Is(err, catalog.ErrNotIndexed),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoHistory):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondError(w, status, err.Error())
}

// parseAcceptLanguage returns the languages of an Accept-Language header in
// the order given, without quality values.
func parseAcceptLanguage(h string) []string {
	var langs []string
	for _, part := range strings.Split(h, ",") {
		lang, _, _ := strings.Cut(part, ";")
		lang = strings.TrimSpace(lang)
		if lang != "" && lang != "*" {
			langs = append(langs, lang)
		}
	}
	return langs
}
