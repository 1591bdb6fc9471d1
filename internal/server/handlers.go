package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/gorilla/mux"

	"github.com/aretw0/vellum/pkg/catalog"
	"github.com/aretw0/vellum/pkg/core"
)

const maxContentSize = 32 << 20

// readOnly properties are maintained by the store.
var readOnly = []string{core.PropUUID, core.PropCTime, core.PropMTime, core.PropLastAuthor}

type resourceView struct {
	Path       string         `json:"path"`
	Name       string         `json:"name"`
	Format     string         `json:"format"`
	Version    string         `json:"version,omitempty"`
	Title      string         `json:"title"`
	Properties map[string]any `json:"properties"`
	Links      []string       `json:"links,omitempty"`
	Handlers   []string       `json:"handlers,omitempty"`
	Children   []string       `json:"children,omitempty"`
}

func viewOf(ctx context.Context, store *core.Store, res *core.Resource) (*resourceView, error) {
	v := &resourceView{
		Path:       res.Path(),
		Name:       res.Name(),
		Format:     res.Format(),
		Version:    res.Version(),
		Title:      res.Title(ctx),
		Properties: propsOf(res),
		Links:      res.Links(),
		Handlers:   res.Class().Handlers,
	}
	if res.IsFolder() {
		children, err := store.Children(ctx, res.Path())
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			v.Children = append(v.Children, c.Name())
		}
	}
	return v, nil
}

// propsOf returns the properties of res in their JSON shape.
func propsOf(res *core.Resource) map[string]any {
	meta := res.Metadata()
	out := make(map[string]any, len(meta.Properties))
	for name, p := range meta.Properties {
		switch p.Kind {
		case core.Multilingual:
			out[name] = p.Lang
		case core.Multiple:
			out[name] = p.Values
		default:
			out[name] = p.Value
		}
	}
	return out
}

// toProps converts decoded JSON values to store properties.
func toProps(in map[string]any) (core.Props, error) {
	props := make(core.Props, len(in))
	for name, v := range in {
		switch x := v.(type) {
		case string:
			props[name] = x
		case []any:
			values := make([]string, 0, len(x))
			for _, item := range x {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %s: values must be strings", errBadRequest, name)
				}
				values = append(values, s)
			}
			props[name] = values
		case map[string]any:
			lang := make(map[string]string, len(x))
			for k, item := range x {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %s: translations must be strings", errBadRequest, name)
				}
				lang[k] = s
			}
			props[name] = lang
		default:
			return nil, fmt.Errorf("%w: %s: unsupported value %v", errBadRequest, name, v)
		}
	}
	return props, nil
}

func resourcePath(r *http.Request) string {
	return "/" + mux.Vars(r)["path"]
}

// update runs fn as one transaction. A stale catalog after a durable commit
// is repaired on the spot.
func (s *Server) update(ctx context.Context, fn func(ctx context.Context, store *core.Store) error) error {
	err := s.db.Update(ctx, fn)
	if errors.Is(err, core.ErrIndexStale) {
		s.logger.Warn("catalog stale after commit, rebuilding", "error", err)
		if _, rerr := s.db.Reindex(ctx); rerr != nil {
			return errors.Join(err, rerr)
		}
		return nil
	}
	return err
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, p string) {
	var view *resourceView
	err := s.db.View(r.Context(), func(ctx context.Context, store *core.Store) error {
		res, err := store.GetResource(ctx, p)
		if err != nil {
			return err
		}
		view, err = viewOf(ctx, store, res)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, status, view)
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, resourcePath(r))
}

type makeRequest struct {
	Format     string         `json:"format"`
	Properties map[string]any `json:"properties"`
}

// handleMakeResource creates a resource. A path ending in "/" gets an
// automatic name.
func (s *Server) handleMakeResource(w http.ResponseWriter, r *http.Request) {
	var req makeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	props, err := toProps(req.Properties)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var created string
	err = s.update(r.Context(), func(ctx context.Context, store *core.Store) error {
		res, err := store.MakeResource(ctx, resourcePath(r), req.Format, props)
		if err != nil {
			return err
		}
		created = res.Path()
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/resources"+created)
	s.render(w, r, http.StatusCreated, created)
}

// handlePatchResource edits properties with a JSON Patch (RFC 6902) or, for
// the application/merge-patch+json content type, a JSON Merge Patch.
func (s *Server) handlePatchResource(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxContentSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	merge := r.Header.Get("Content-Type") == "application/merge-patch+json"
	p := resourcePath(r)

	err = s.update(r.Context(), func(ctx context.Context, store *core.Store) error {
		res, err := store.GetResource(ctx, p)
		if err != nil {
			return err
		}
		current := propsOf(res)
		next, err := applyPatch(current, body, merge)
		if err != nil {
			return err
		}
		for _, name := range readOnly {
			if fmt.Sprint(current[name]) != fmt.Sprint(next[name]) {
				return fmt.Errorf("%w: %s is read-only", errBadRequest, name)
			}
		}
		if sameJSON(current, next) {
			return nil
		}
		props, err := toProps(next)
		if err != nil {
			return err
		}
		if err := res.SetProps(props); err != nil {
			return err
		}
		for name := range current {
			if _, ok := next[name]; !ok {
				if err := res.DelProperty(name); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, p)
}

// sameJSON reports whether a and b encode to the same JSON document.
func sameJSON(a, b map[string]any) bool {
	x, err := json.Marshal(a)
	if err != nil {
		return false
	}
	y, err := json.Marshal(b)
	return err == nil && string(x) == string(y)
}

func applyPatch(current map[string]any, body []byte, merge bool) (map[string]any, error) {
	doc, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	var out []byte
	if merge {
		out, err = jsonpatch.MergePatch(doc, body)
	} else {
		var patch jsonpatch.Patch
		if patch, err = jsonpatch.DecodePatch(body); err == nil {
			out, err = patch.Apply(doc)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	var next map[string]any
	if err := json.Unmarshal(out, &next); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return next, nil
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	action := core.RefRestrict
	if v := r.URL.Query().Get("ref_action"); v != "" {
		var err error
		if action, err = core.ParseRefAction(v); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	err := s.update(r.Context(), func(ctx context.Context, store *core.Store) error {
		return store.DelResource(ctx, resourcePath(r), action)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	var (
		data     []byte
		phantom  bool
		mimetype string
	)
	err := s.db.View(r.Context(), func(ctx context.Context, store *core.Store) error {
		res, err := store.GetResource(ctx, resourcePath(r))
		if err != nil {
			return err
		}
		h, err := res.Handler(mux.Vars(r)["handler"])
		if err != nil {
			return err
		}
		if phantom, err = h.IsPhantom(ctx); err != nil {
			return err
		}
		mimetype = res.GetValue(ctx, "mimetype", "")
		data, err = h.Data(ctx)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if phantom {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if mimetype == "" {
		mimetype = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", mimetype)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handlePutContent(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxContentSize))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	err = s.update(r.Context(), func(ctx context.Context, store *core.Store) error {
		res, err := store.GetResource(ctx, resourcePath(r))
		if err != nil {
			return err
		}
		h, err := res.Handler(mux.Vars(r)["handler"])
		if err != nil {
			return err
		}
		return h.SetData(ctx, data)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type transferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) handleTransfer(move bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.From == "" || req.To == "" {
			respondError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
		var dst string
		err := s.update(r.Context(), func(ctx context.Context, store *core.Store) error {
			var (
				res *core.Resource
				err error
			)
			if move {
				res, err = store.MoveResource(ctx, req.From, req.To)
			} else {
				res, err = store.CopyResource(ctx, req.From, req.To)
			}
			if err != nil {
				return err
			}
			dst = res.Path()
			return nil
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.render(w, r, http.StatusOK, dst)
	}
}

type searchResponse struct {
	Query   string           `json:"query"`
	Total   int              `json:"total"`
	Results []map[string]any `json:"results"`
}

// handleSearch queries the catalog. Parameters combine with AND: format,
// within (a folder path), text, where (an expression) and glob (on name).
// Paging uses sort, reverse, start and size.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, page, err := parseSearch(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := searchResponse{Query: q.String(), Results: []map[string]any{}}
	err = s.db.View(r.Context(), func(ctx context.Context, store *core.Store) error {
		rs, err := store.Catalog().Search(q)
		if err != nil {
			return err
		}
		resp.Total = rs.Len()
		docs, err := rs.Documents(page)
		if err != nil {
			return fmt.Errorf("%w: %w", errBadRequest, err)
		}
		for _, d := range docs {
			resp.Results = append(resp.Results, d.Fields())
		}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func parseSearch(r *http.Request) (catalog.Query, catalog.Page, error) {
	params := r.URL.Query()
	var (
		qs   []catalog.Query
		page catalog.Page
	)
	if v := params.Get("format"); v != "" {
		qs = append(qs, catalog.Phrase("format", v))
	}
	if v := params.Get("within"); v != "" {
		qs = append(qs, catalog.Phrase("paths", core.CleanPath(v)))
	}
	if v := params.Get("text"); v != "" {
		qs = append(qs, catalog.Or(catalog.Phrase("title", v), catalog.Phrase("text", v)))
	}
	if v := params.Get("glob"); v != "" {
		qs = append(qs, catalog.Glob("name", v))
	}
	if v := params.Get("where"); v != "" {
		where, err := catalog.Where(v)
		if err != nil {
			return nil, page, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		qs = append(qs, where)
	}

	page.SortBy = params.Get("sort")
	page.Reverse = params.Get("reverse") == "true"
	for name, dst := range map[string]*int{"start": &page.Start, "size": &page.Size} {
		if v := params.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, page, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, v)
			}
			*dst = n
		}
	}

	switch len(qs) {
	case 0:
		return catalog.All(), page, nil
	case 1:
		return qs[0], page, nil
	}
	return catalog.And(qs...), page, nil
}

type revisionView struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
}

func (s *Server) handleRevisions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	var revs []core.Revision
	err := s.db.View(r.Context(), func(ctx context.Context, store *core.Store) error {
		var err error
		revs, err = store.Revisions(ctx, resourcePath(r), limit)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]revisionView, 0, len(revs))
	for _, rev := range revs {
		out = append(out, revisionView{Hash: rev.Hash, Author: rev.Author.String(), Date: rev.Date, Message: rev.Message})
	}
	respondJSON(w, http.StatusOK, out)
}

type checkResponse struct {
	Consistent bool              `json:"consistent"`
	Files      []core.FileStatus `json:"files,omitempty"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	files, err := s.db.Check(r.Context())
	if err != nil && !errors.Is(err, core.ErrInconsistent) {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, checkResponse{Consistent: err == nil, Files: files})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	n, err := s.db.Reindex(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"documents": n})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.db.State())
}
