package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/citysdk/layercatalog/internal/serialize"
	"github.com/citysdk/layercatalog/internal/web/middleware"
)

// listLayers serves GET /layers?name=a,b.*[&geom]
func (h *handler) listLayers(w http.ResponseWriter, r *http.Request) {
	tokens := layerTokens(r.URL.Query().Get("name"))
	if len(tokens) == 0 {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, "The name parameter is required")
		return
	}
	h.render(w, r, tokens)
}

// showLayer serves GET /layers/{name}
func (h *handler) showLayer(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, []string{chi.URLParam(r, "name")})
}

func (h *handler) render(w http.ResponseWriter, r *http.Request, tokens []string) {
	format, err := negotiateFormat(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	params := serialize.Params{IncludeGeometry: r.URL.Query().Has("geom")}
	body, err := h.catalog.Render(r.Context(), tokens, format, params, serialize.Request{URL: requestURL(r)})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	etag := layerETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Add("Vary", "Accept")
	if notModified(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// rebuildCache serves POST /admin/cache/rebuild
func (h *handler) rebuildCache(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.RebuildCache(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("layer cache rebuilt", zap.String("request_id", middleware.GetRequestID(r.Context())))
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// getHealth serves GET /health
func (h *handler) getHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK

	if len(h.health) > 0 {
		resp.Checks = make(map[string]string, len(h.health))
		for name, check := range h.health {
			if err := check(r.Context()); err != nil {
				h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	writeJSON(w, status, resp)
}
