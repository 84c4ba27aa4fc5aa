// Package handler exposes the deployment address book to operators.
package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"meroku/internal/addressbook"
	"meroku/pkg/domain"
	dErrors "meroku/pkg/domain-errors"
	"meroku/pkg/platform/httputil"
	"meroku/pkg/requestcontext"
)

// Handler wires the address-book admin endpoints.
type Handler struct {
	book   *addressbook.Book
	logger *slog.Logger
}

func New(book *addressbook.Book, logger *slog.Logger) *Handler {
	return &Handler{book: book, logger: logger}
}

// RegisterAdmin mounts the address-book endpoints. The admin token middleware
// authenticates these before they reach the handler.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/addressbook", h.HandleList)
	r.Put("/addressbook/{name}", h.HandleSet)
}

// SetRequest is the HTTP request body for PUT /admin/addressbook/{name}.
type SetRequest struct {
	Address string `json:"address"`

	parsed domain.Address
}

func (r *SetRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	addr, err := domain.ParseAddress(r.Address)
	if err != nil {
		return err
	}
	r.parsed = addr
	return nil
}

// HandleList handles GET /admin/addressbook.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries := make(map[string]string)
	for _, name := range h.book.Names() {
		if addr, ok := h.book.Get(name); ok {
			entries[name] = addr.String()
		}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

// HandleSet handles PUT /admin/addressbook/{name}.
func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "name is required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if err := h.book.Set(name, req.parsed); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist address book"))
		return
	}
	h.logger.InfoContext(ctx, "address book entry updated", "name", name, "address", req.parsed)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"name": name, "address": req.parsed.String()})
}
