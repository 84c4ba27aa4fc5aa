// Package handler exposes the reserved-name list to operators.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	dErrors "meroku/pkg/domain-errors"
	"meroku/pkg/platform/httputil"
	"meroku/pkg/requestcontext"
)

// Service defines the reserved-list operations the handler depends on.
type Service interface {
	Append(ctx context.Context, raw []string) (int, error)
	Ingest(ctx context.Context, source string, list []string) (int, error)
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// Handler wires the reserved-name admin endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAdmin mounts the reserved-name endpoints. The admin token middleware
// authenticates these before they reach the handler.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/reserved-names", h.HandleList)
	r.Post("/reserved-names", h.HandleAppend)
	r.Post("/reserved-names/ingest", h.HandleIngest)
}

// AppendRequest is the HTTP request body for POST /admin/reserved-names.
type AppendRequest struct {
	Names []string `json:"names"`
}

func (r *AppendRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Names) == 0 {
		return dErrors.New(dErrors.CodeValidation, "names is required")
	}
	return nil
}

// IngestRequest is the HTTP request body for POST /admin/reserved-names/ingest.
// Source identifies the upstream list so repeat runs resume from the last
// committed batch.
type IngestRequest struct {
	Source string   `json:"source"`
	Names  []string `json:"names"`
}

func (r *IngestRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Source = strings.TrimSpace(r.Source)
	if r.Source == "" {
		return dErrors.New(dErrors.CodeValidation, "source is required")
	}
	if len(r.Names) == 0 {
		return dErrors.New(dErrors.CodeValidation, "names is required")
	}
	return nil
}

// HandleList handles GET /admin/reserved-names.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"names": names,
		"count": len(names),
	})
}

// HandleAppend handles POST /admin/reserved-names.
func (h *Handler) HandleAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AppendRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	added, err := h.service.Append(ctx, req.Names)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "reserved names appended",
		"added", added, "submitted", len(req.Names))
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"added": added})
}

// HandleIngest handles POST /admin/reserved-names/ingest.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[IngestRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	added, err := h.service.Ingest(ctx, req.Source, req.Names)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "reserved names ingested",
		"source", req.Source, "added", added, "submitted", len(req.Names))
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"added": added})
}
