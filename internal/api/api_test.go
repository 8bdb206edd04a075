package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citysdk/layercatalog/internal/catalog"
	"github.com/citysdk/layercatalog/internal/registry"
	"github.com/citysdk/layercatalog/internal/serialize"
	"github.com/citysdk/layercatalog/internal/web/middleware"
	"github.com/citysdk/layercatalog/internal/web/ratelimit"
)

type renderCall struct {
	tokens []string
	format serialize.Format
	params serialize.Params
	req    serialize.Request
}

type fakeCatalog struct {
	calls      []renderCall
	body       []byte
	err        error
	rebuilds   int
	rebuildErr error
}

func (f *fakeCatalog) Render(_ context.Context, tokens []string, format serialize.Format, params serialize.Params, req serialize.Request) ([]byte, error) {
	f.calls = append(f.calls, renderCall{tokens: tokens, format: format, params: params, req: req})
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func (f *fakeCatalog) RebuildCache(context.Context) error {
	f.rebuilds++
	return f.rebuildErr
}

func do(t *testing.T, h http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestListLayers(t *testing.T) {
	cat := &fakeCatalog{body: []byte(`{"status":"success"}`)}
	h := NewRouter(Options{Catalog: cat})

	rec := do(t, h, http.MethodGet, "/layers?name=osm.*,%20other,,&geom", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, `{"status":"success"}`, rec.Body.String())

	require.Len(t, cat.calls, 1)
	call := cat.calls[0]
	assert.Equal(t, []string{"osm.*", "other"}, call.tokens)
	assert.Equal(t, serialize.FormatJSON, call.format)
	assert.True(t, call.params.IncludeGeometry)
	assert.Equal(t, "http://example.com/layers?name=osm.*,%20other,,&geom", call.req.URL)
}

func TestListLayers_MissingName(t *testing.T) {
	h := NewRouter(Options{Catalog: &fakeCatalog{}})

	rec := do(t, h, http.MethodGet, "/layers", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeBadRequest, decodeError(t, rec).Error.Code)
}

func TestShowLayer(t *testing.T) {
	cat := &fakeCatalog{body: []byte("@base <x> .\n")}
	h := NewRouter(Options{Catalog: cat})

	rec := do(t, h, http.MethodGet, "/layers/osm.roads", map[string]string{"Accept": "text/turtle"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/turtle; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Len(t, cat.calls, 1)
	assert.Equal(t, []string{"osm.roads"}, cat.calls[0].tokens)
	assert.Equal(t, serialize.FormatTurtle, cat.calls[0].format)
	assert.False(t, cat.calls[0].params.IncludeGeometry)
}

func TestNegotiateFormat(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		accept  string
		want    serialize.Format
		wantErr bool
	}{
		{name: "default", target: "/layers/a", want: serialize.FormatJSON},
		{name: "wildcard accept", target: "/layers/a", accept: "*/*", want: serialize.FormatJSON},
		{name: "turtle accept", target: "/layers/a", accept: "text/turtle", want: serialize.FormatTurtle},
		{name: "first supported wins", target: "/layers/a", accept: "text/html, text/turtle;q=0.9, application/json", want: serialize.FormatTurtle},
		{name: "query alias", target: "/layers/a?format=ttl", accept: "application/json", want: serialize.FormatTurtle},
		{name: "query mime", target: "/layers/a?format=application/json", want: serialize.FormatJSON},
		{name: "unsupported accept", target: "/layers/a", accept: "application/xml", wantErr: true},
		{name: "unsupported query", target: "/layers/a?format=rdfxml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			got, err := negotiateFormat(req)
			if tt.wantErr {
				assert.ErrorIs(t, err, serialize.ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{
			err:     fmt.Errorf("%w: %q", registry.ErrInvalidWildcard, "osm*"),
			status:  http.StatusUnprocessableEntity,
			code:    CodeInvalidWildcard,
			message: "You can only use wildcards in layer names directly after a name separator (e.g. osm.*)",
		},
		{
			err:     fmt.Errorf("%w: no layers", registry.ErrUnavailable),
			status:  http.StatusInternalServerError,
			code:    CodeCacheUnavailable,
			message: "Layer cache unavailable",
		},
		{err: catalog.ErrNoLayers, status: http.StatusNotFound, code: CodeNotFound},
		{err: serialize.ErrUnsupportedFormat, status: http.StatusNotAcceptable, code: CodeNotAcceptable},
		{err: errors.New("boom"), status: http.StatusInternalServerError, code: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			h := NewRouter(Options{Catalog: &fakeCatalog{err: tt.err}})

			rec := do(t, h, http.MethodGet, "/layers?name=x", nil)
			assert.Equal(t, tt.status, rec.Code)

			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, "/layers", resp.Path)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error.Message)
			}
		})
	}
}

func TestUnsupportedAcceptSkipsCatalog(t *testing.T) {
	cat := &fakeCatalog{}
	h := NewRouter(Options{Catalog: cat})

	rec := do(t, h, http.MethodGet, "/layers/a", map[string]string{"Accept": "image/png"})
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
	assert.Empty(t, cat.calls)
}

func TestAdminRebuild(t *testing.T) {
	cat := &fakeCatalog{}

	disabled := NewRouter(Options{Catalog: cat})
	rec := do(t, disabled, http.MethodPost, "/admin/cache/rebuild", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, cat.rebuilds)

	enabled := NewRouter(Options{Catalog: cat, AdminEnabled: true})
	rec = do(t, enabled, http.MethodPost, "/admin/cache/rebuild", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())
	assert.Equal(t, 1, cat.rebuilds)

	cat.rebuildErr = fmt.Errorf("%w: scan failed", registry.ErrUnavailable)
	rec = do(t, enabled, http.MethodPost, "/admin/cache/rebuild", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeCacheUnavailable, decodeError(t, rec).Error.Code)
}

func TestHealth(t *testing.T) {
	healthy := NewRouter(Options{Catalog: &fakeCatalog{}, Health: map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	}})
	rec := do(t, healthy, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok"}}`, rec.Body.String())

	degraded := NewRouter(Options{Catalog: &fakeCatalog{}, Health: map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"cache":    func(context.Context) error { return errors.New("dial tcp: refused") },
	}})
	rec = do(t, degraded, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"database":"ok","cache":"unavailable"}}`, rec.Body.String())
}

func TestRouterFallbacks(t *testing.T) {
	h := NewRouter(Options{Catalog: &fakeCatalog{}})

	rec := do(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rec).Error.Code)

	rec = do(t, h, http.MethodDelete, "/layers/a", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, CodeMethodNotAllowed, decodeError(t, rec).Error.Code)
}

type panickingCatalog struct{ fakeCatalog }

func (p *panickingCatalog) Render(context.Context, []string, serialize.Format, serialize.Params, serialize.Request) ([]byte, error) {
	panic("nil layer")
}

func TestPanicRecovered(t *testing.T) {
	h := NewRouter(Options{Catalog: &panickingCatalog{}})

	rec := do(t, h, http.MethodGet, "/layers/a", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeInternal, decodeError(t, rec).Error.Code)
}

func TestCORSEnabled(t *testing.T) {
	cors := middleware.DefaultCORSConfig()
	h := NewRouter(Options{Catalog: &fakeCatalog{body: []byte("{}")}, CORS: &cors})

	rec := do(t, h, http.MethodGet, "/layers/a", map[string]string{"Origin": "http://app.example.org"})
	assert.Equal(t, "http://app.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimited(t *testing.T) {
	limiter := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{Capacity: 1, Window: time.Minute})
	defer limiter.Close()
	cat := &fakeCatalog{body: []byte("{}")}
	h := NewRouter(Options{Catalog: cat, RateLimiter: limiter})

	rec := do(t, h, http.MethodGet, "/layers/a", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(ratelimit.HeaderLimit))

	rec = do(t, h, http.MethodGet, "/layers/a", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, CodeRateLimited, decodeError(t, rec).Error.Code)
	assert.Len(t, cat.calls, 1)

	// health is never limited
	rec = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitedPerClient(t *testing.T) {
	limiter := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{Capacity: 1, Window: time.Minute})
	defer limiter.Close()
	trusted, err := ratelimit.ParseTrustedProxies([]string{"10.0.0.1"})
	require.NoError(t, err)
	h := NewRouter(Options{
		Catalog:      &fakeCatalog{body: []byte("{}")},
		RateLimiter:  limiter,
		RateLimitKey: ratelimit.ForwardedFor(trusted),
	})

	get := func(remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/layers/a", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("198.51.100.9:1000", ""))
	// Rotating the header from an untrusted peer does not reset the limit
	assert.Equal(t, http.StatusTooManyRequests, get("198.51.100.9:1000", "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, get("198.51.100.9:1000", "203.0.113.2"))

	// Behind the trusted proxy each forwarded client has its own budget
	assert.Equal(t, http.StatusOK, get("10.0.0.1:1000", "203.0.113.1"))
	assert.Equal(t, http.StatusOK, get("10.0.0.1:1000", "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, get("10.0.0.1:1000", "203.0.113.2"))
}

func TestAdminStatsAndProfiling(t *testing.T) {
	disabled := NewRouter(Options{Catalog: &fakeCatalog{}, Profiling: true})
	assert.Equal(t, http.StatusNotFound, do(t, disabled, http.MethodGet, "/admin/stats", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, disabled, http.MethodGet, "/admin/debug/pprof/", nil).Code)

	noProfiling := NewRouter(Options{Catalog: &fakeCatalog{}, AdminEnabled: true})
	assert.Equal(t, http.StatusOK, do(t, noProfiling, http.MethodGet, "/admin/stats", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, noProfiling, http.MethodGet, "/admin/debug/pprof/", nil).Code)

	enabled := NewRouter(Options{Catalog: &fakeCatalog{}, AdminEnabled: true, Profiling: true})
	assert.Equal(t, http.StatusOK, do(t, enabled, http.MethodGet, "/admin/debug/pprof/heap", nil).Code)
}

func TestConditionalGet(t *testing.T) {
	cat := &fakeCatalog{body: []byte(`{"status":"success"}`)}
	h := NewRouter(Options{Catalog: cat})

	first := do(t, h, http.MethodGet, "/layers/osm.roads", nil)
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	tests := []struct {
		name        string
		ifNoneMatch string
		want        int
	}{
		{"matching tag", etag, http.StatusNotModified},
		{"weak form of the tag", "W/" + etag, http.StatusNotModified},
		{"tag among others", `"stale", ` + etag, http.StatusNotModified},
		{"wildcard", "*", http.StatusNotModified},
		{"stale tag", `"stale"`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/layers/osm.roads", map[string]string{"If-None-Match": tt.ifNoneMatch})
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, etag, rec.Header().Get("ETag"))
			if tt.want == http.StatusNotModified {
				assert.Empty(t, rec.Body.String())
			}
		})
	}
}
