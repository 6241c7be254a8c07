package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"recently-viewed/server/internal/catalog"
	"recently-viewed/server/internal/metrics"
	"recently-viewed/server/internal/recent"
)

type jsonResponse map[string]any

type errorResponse struct {
	Error string `json:"error"`
}

// Pinger reports whether backing storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Catalog  catalog.Catalog
	Resolver recent.Resolver
	Store    *recent.Store
	Tracker  *recent.Tracker
	Renderer *recent.Renderer
	Pages    recent.Template
	Health   Pinger
	Log      *slog.Logger
	Metrics  *metrics.Metrics
}

type Server struct {
	deps Deps
	log  *slog.Logger
}

func NewServer(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{deps: deps, log: log}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/products/{id}", s.handleProduct)
	mux.HandleFunc("/recently-viewed", s.handleRecentlyViewed)
	mux.HandleFunc("/healthz", s.handleHealthz)
	if s.deps.Metrics != nil {
		mux.Handle("/metrics", s.deps.Metrics.Handler())
	}
}

type productPage struct {
	Item           catalog.Item
	RecentlyViewed template.HTML
}

// handleProduct serves the single product detail page. A visible product is
// tracked as viewed before the page is drawn, so it leads its own
// recently viewed section. Tracking and section failures are logged and
// never turn the page into an error.
func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "product id must be a positive integer"})
		return
	}
	item, err := s.deps.Catalog.Item(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "product not found"})
		return
	}
	if err != nil {
		s.log.ErrorContext(r.Context(), "product.lookup_failed", "product", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !s.deps.Catalog.IsVisible(item) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "product not found"})
		return
	}

	if err := s.deps.Tracker.OnItemView(r, item); err != nil {
		s.log.ErrorContext(r.Context(), "recent.track_failed", "product", id, "err", err)
	}

	var section bytes.Buffer
	if err := s.deps.Renderer.Render(&section, r); err != nil {
		s.log.WarnContext(r.Context(), "recent.render_failed", "product", id, "err", err)
		section.Reset()
	}

	var page bytes.Buffer
	if err := s.deps.Pages.Render(&page, "product", productPage{
		Item:           item,
		RecentlyViewed: template.HTML(section.String()),
	}); err != nil {
		s.log.ErrorContext(r.Context(), "product.render_failed", "product", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page.Bytes())
}

func (s *Server) handleRecentlyViewed(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, jsonResponse{
			"items": s.deps.Renderer.Items(r),
		})
	case http.MethodDelete:
		key := s.deps.Resolver.Resolve(r)
		if err := s.deps.Store.Clear(r.Context(), key); err != nil {
			s.log.ErrorContext(r.Context(), "recent.clear_failed", "visitor", key.String(), "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			s.log.WarnContext(r.Context(), "healthz.storage_unavailable", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, jsonResponse{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(payload)
}
