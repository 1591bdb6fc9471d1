package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/vellum/internal/platform"
	"github.com/aretw0/vellum/internal/server"
	"github.com/aretw0/vellum/pkg/classes"
	"github.com/aretw0/vellum/pkg/core"
)

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func setup(t *testing.T) (*client, *platform.Site) {
	t.Helper()
	site, err := platform.Init(t.TempDir(), platform.WithVersioning(false))
	require.NoError(t, err)
	srv := httptest.NewServer(server.New(site, server.Config{}))
	t.Cleanup(srv.Close)
	return &client{t: t, srv: srv}, site
}

func (c *client) do(method, path, contentType string, body []byte, headers ...string) (*http.Response, map[string]any) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.srv.URL+path, bytes.NewReader(body))
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (c *client) json(method, path string, payload any, headers ...string) (*http.Response, map[string]any) {
	c.t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(c.t, err)
	return c.do(method, path, "application/json", body, headers...)
}

func TestServer_Resources(t *testing.T) {
	c, site := setup(t)

	resp, body := c.json(http.MethodPost, "/api/resources/about", map[string]any{
		"format": classes.Page,
		"properties": map[string]any{
			"title":   map[string]any{"en": "About", "fr": "A propos"},
			"subject": []any{"team"},
		},
	}, server.HeaderAuthorName, "Ann", server.HeaderChangeReason, "add about")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "/api/resources/about", resp.Header.Get("Location"))
	assert.NotEmpty(t, resp.Header.Get(server.HeaderRequestID))
	assert.Equal(t, "/about", body["path"])
	props := body["properties"].(map[string]any)
	assert.Equal(t, "Ann <nobody@localhost>", props[core.PropLastAuthor])

	t.Run("Get Negotiates Title", func(t *testing.T) {
		resp, body := c.do(http.MethodGet, "/api/resources/about", "", nil, "Accept-Language", "fr;q=0.9, en;q=0.5")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "A propos", body["title"])

		resp, body = c.do(http.MethodGet, "/api/resources/", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []any{"about"}, body["children"])
	})

	t.Run("Automatic Name", func(t *testing.T) {
		resp, body := c.json(http.MethodPost, "/api/resources/", map[string]any{"format": classes.Page})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "/1", body["path"])
	})

	t.Run("Errors", func(t *testing.T) {
		resp, _ := c.do(http.MethodGet, "/api/resources/missing", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, _ = c.json(http.MethodPost, "/api/resources/about", map[string]any{"format": classes.Page})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp, _ = c.json(http.MethodPost, "/api/resources/x", map[string]any{"format": "calendar"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = c.json(http.MethodPost, "/api/resources/y", map[string]any{
			"format":     classes.Page,
			"properties": map[string]any{"subject": 42},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = c.do(http.MethodPost, "/api/resources/z", "application/json", []byte("{"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	assert.True(t, site.Store().Changes().IsEmpty())
}

func TestServer_Patch(t *testing.T) {
	c, _ := setup(t)
	resp, _ := c.json(http.MethodPost, "/api/resources/p", map[string]any{
		"format":     classes.Page,
		"properties": map[string]any{"workflow_state": "private", "subject": []any{"a"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("JSON Patch", func(t *testing.T) {
		patch := `[{"op":"replace","path":"/workflow_state","value":"public"},{"op":"add","path":"/subject/-","value":"b"}]`
		resp, body := c.do(http.MethodPatch, "/api/resources/p", "application/json-patch+json", []byte(patch))
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		props := body["properties"].(map[string]any)
		assert.Equal(t, "public", props["workflow_state"])
		assert.Equal(t, []any{"a", "b"}, props["subject"])
	})

	t.Run("Merge Patch Removes", func(t *testing.T) {
		resp, body := c.do(http.MethodPatch, "/api/resources/p", "application/merge-patch+json", []byte(`{"subject":null}`))
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		props := body["properties"].(map[string]any)
		assert.NotContains(t, props, "subject")
		assert.Equal(t, "public", props["workflow_state"])
	})

	t.Run("Read Only And Invalid", func(t *testing.T) {
		resp, _ := c.do(http.MethodPatch, "/api/resources/p", "application/merge-patch+json", []byte(`{"uuid":"forged"}`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = c.do(http.MethodPatch, "/api/resources/p", "application/json-patch+json", []byte(`[{"op":"remove","path":"/nope"}]`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = c.do(http.MethodPatch, "/api/resources/p", "application/merge-patch+json", []byte(`{"workflow_state":["x"]}`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_PatchWithoutChanges(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	site, err := platform.Init(t.TempDir(), platform.WithVersioning(false), platform.WithClock(tick))
	require.NoError(t, err)
	srv := httptest.NewServer(server.New(site, server.Config{}))
	t.Cleanup(srv.Close)
	c := &client{t: t, srv: srv}

	resp, body := c.json(http.MethodPost, "/api/resources/p", map[string]any{
		"format":     classes.Page,
		"properties": map[string]any{"subject": []any{"a"}},
	}, server.HeaderAuthorName, "Ann")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	before := body["properties"].(map[string]any)

	for _, patch := range []struct{ contentType, body string }{
		{"application/merge-patch+json", `{}`},
		{"application/merge-patch+json", `{"subject":["a"]}`},
		{"application/json-patch+json", `[]`},
	} {
		resp, body := c.do(http.MethodPatch, "/api/resources/p", patch.contentType, []byte(patch.body), server.HeaderAuthorName, "Bob")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		after := body["properties"].(map[string]any)
		assert.Equal(t, before[core.PropMTime], after[core.PropMTime], patch.body)
		assert.Equal(t, before[core.PropLastAuthor], after[core.PropLastAuthor], patch.body)
	}
}

func TestServer_DeleteIntegrity(t *testing.T) {
	c, _ := setup(t)
	resp, _ := c.json(http.MethodPost, "/api/resources/target", map[string]any{"format": classes.Page})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = c.json(http.MethodPost, "/api/resources/referrer", map[string]any{
		"format":     classes.Page,
		"properties": map[string]any{"related": []any{"/target"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := c.do(http.MethodDelete, "/api/resources/target", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "/referrer")

	resp, _ = c.do(http.MethodDelete, "/api/resources/target?ref_action=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.do(http.MethodDelete, "/api/resources/target?ref_action=force", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/api/resources/target", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_MoveAndContent(t *testing.T) {
	c, _ := setup(t)
	resp, _ := c.json(http.MethodPost, "/api/resources/docs", map[string]any{"format": classes.Folder})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = c.json(http.MethodPost, "/api/resources/docs/a", map[string]any{"format": classes.Page})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = c.json(http.MethodPost, "/api/resources/index", map[string]any{
		"format":     classes.Page,
		"properties": map[string]any{"related": []any{"/docs/a"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/api/content/body/docs/a", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "phantom handler")

	resp, _ = c.do(http.MethodPut, "/api/content/body/docs/a", "text/html", []byte("<p>hello world</p>"))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := c.json(http.MethodPost, "/api/move", map[string]string{"from": "/docs", "to": "/guides"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "/guides", body["path"])

	resp, body = c.do(http.MethodGet, "/api/resources/index", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"/guides/a"}, body["links"])

	req, err := http.NewRequest(http.MethodGet, c.srv.URL+"/api/content/body/guides/a", nil)
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(raw.Body)
	require.NoError(t, err)
	assert.Equal(t, "<p>hello world</p>", buf.String())

	resp, _ = c.do(http.MethodGet, "/api/content/nope/guides/a", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = c.json(http.MethodPost, "/api/copy", map[string]string{"from": "/guides/a", "to": "/guides/b"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "/guides/b", body["path"])

	resp, _ = c.json(http.MethodPost, "/api/move", map[string]string{"from": "/guides", "to": "/guides/inner"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_Search(t *testing.T) {
	c, _ := setup(t)
	for _, p := range []string{"blog", "blog/one", "blog/two", "about"} {
		format := classes.Page
		if p == "blog" {
			format = classes.Folder
		}
		resp, _ := c.json(http.MethodPost, "/api/resources/"+p, map[string]any{
			"format":     format,
			"properties": map[string]any{"title": map[string]any{"en": "Post " + p}},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := c.do(http.MethodGet, "/api/search?format=page&within=/blog&sort=name&reverse=true", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, 2, body["total"])
	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "/blog/two", results[0].(map[string]any)["abspath"])

	resp, body = c.do(http.MethodGet, "/api/search?where=size+%3E+1&size=1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, 2, body["total"], "root and blog hold more than one child")
	assert.Len(t, body["results"], 1)

	resp, _ = c.do(http.MethodGet, "/api/search?where=%3D%3D", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/api/search?size=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/api/search?sort=text", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Maintenance(t *testing.T) {
	c, site := setup(t)

	resp, body := c.do(http.MethodGet, "/api/check", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["consistent"])

	resp, body = c.do(http.MethodPost, "/api/reindex", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["documents"])

	resp, body = c.do(http.MethodGet, "/api/state", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, site.Path(), body["path"])

	resp, _ = c.do(http.MethodGet, "/api/revisions/", "", nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode, "gitless sites keep no history")
}

func TestServer_ListenAndServe(t *testing.T) {
	_, site := setup(t)
	srv := server.New(site, server.Config{Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
