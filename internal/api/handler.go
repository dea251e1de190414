// Package api provides HTTP helpers and catalog handlers.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/skincare-assistant/internal/domain"
	"github.com/go-chi/chi/v5"
)

const (
	defaultProductLimit = 20
	maxProductLimit     = 100
	healthTimeout       = 2 * time.Second
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Catalog is the read side of the product table used by the handlers.
type Catalog interface {
	List(ctx context.Context, exclude []string, limit int) ([]domain.Product, error)
	ListByConcern(ctx context.Context, concern string, limit int) ([]domain.Product, error)
	Ping(ctx context.Context) error
}

// CatalogHandler serves product listings and the dependency health check.
type CatalogHandler struct {
	catalog Catalog
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(c Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// RegisterRoutes registers catalog routes.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/products", h.ListProducts)
	})
}

// Health reports whether the product table is reachable.
func (h *CatalogHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.catalog.Ping(ctx); err != nil {
		slog.Error("Catalog health check failed", "error", err)
		JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "catalog": "down"})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok", "catalog": "up"})
}

// ListProducts returns products, optionally filtered by ?concern=.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit := defaultProductLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxProductLimit)
	}

	var (
		products []domain.Product
		err      error
	)
	if concern := r.URL.Query().Get("concern"); concern != "" {
		products, err = h.catalog.ListByConcern(r.Context(), concern, limit)
	} else {
		products, err = h.catalog.List(r.Context(), nil, limit)
	}
	if err != nil {
		slog.Error("Failed to list products", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []domain.Product{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{"products": products})
}
