// Package handler wires the sale market endpoints to the market service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"meroku/internal/market/models"
	"meroku/pkg/domain"
	dErrors "meroku/pkg/domain-errors"
	"meroku/pkg/platform/httputil"
	"meroku/pkg/requestcontext"
)

// Service defines the market operations the handler depends on.
type Service interface {
	CreateSale(ctx context.Context, caller domain.Address, ns domain.Namespace, id domain.TokenID, price domain.Amount) (*models.Listing, error)
	Buy(ctx context.Context, buyer domain.Address, ns domain.Namespace, id domain.TokenID, paid domain.Amount) (*models.Listing, error)
	EndSale(ctx context.Context, caller domain.Address, ns domain.Namespace, id domain.TokenID) error
	Listing(ctx context.Context, ns domain.Namespace, id domain.TokenID) (*models.Listing, error)
	Listings(ctx context.Context, ns domain.Namespace) ([]models.Listing, error)
}

// Handler exposes the sale market over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a market handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the market endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Route("/registries/{ns}", func(r chi.Router) {
		r.Get("/sales", h.HandleListings)
		r.Post("/identities/{tokenID}/sale", h.HandleCreateSale)
		r.Get("/identities/{tokenID}/sale", h.HandleGetSale)
		r.Delete("/identities/{tokenID}/sale", h.HandleEndSale)
		r.Post("/identities/{tokenID}/buy", h.HandleBuy)
	})
}

// SaleRequest is the HTTP request body for creating a sale.
type SaleRequest struct {
	Price int64 `json:"price"`
}

func (r *SaleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Price <= 0 {
		return models.ErrInvalidPrice
	}
	return nil
}

// BuyRequest is the HTTP request body for a purchase.
type BuyRequest struct {
	Payment int64 `json:"payment"`
}

func (r *BuyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Payment <= 0 {
		return dErrors.New(dErrors.CodeValidation, "payment must be positive")
	}
	return nil
}

// ListingResponse is the HTTP shape of one sale listing.
type ListingResponse struct {
	Namespace string         `json:"namespace"`
	TokenID   domain.TokenID `json:"token_id"`
	Price     int64          `json:"price"`
	CreatedAt time.Time      `json:"created_at"`
}

// FromListing converts a listing to its HTTP shape.
func FromListing(l *models.Listing) *ListingResponse {
	return &ListingResponse{
		Namespace: l.Namespace.String(),
		TokenID:   l.TokenID,
		Price:     int64(l.Price),
		CreatedAt: l.CreatedAt,
	}
}

// HandleCreateSale handles POST /registries/{ns}/identities/{tokenID}/sale.
func (h *Handler) HandleCreateSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ns, id, caller, ok := h.saleTarget(w, r, true)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SaleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	listing, err := h.service.CreateSale(ctx, caller, ns, id, domain.Amount(req.Price))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromListing(listing))
}

// HandleGetSale handles GET /registries/{ns}/identities/{tokenID}/sale.
func (h *Handler) HandleGetSale(w http.ResponseWriter, r *http.Request) {
	ns, id, _, ok := h.saleTarget(w, r, false)
	if !ok {
		return
	}
	listing, err := h.service.Listing(r.Context(), ns, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromListing(listing))
}

// HandleEndSale handles DELETE /registries/{ns}/identities/{tokenID}/sale.
func (h *Handler) HandleEndSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ns, id, caller, ok := h.saleTarget(w, r, true)
	if !ok {
		return
	}
	if err := h.service.EndSale(ctx, caller, ns, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleBuy handles POST /registries/{ns}/identities/{tokenID}/buy.
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ns, id, caller, ok := h.saleTarget(w, r, true)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[BuyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	listing, err := h.service.Buy(ctx, caller, ns, id, domain.Amount(req.Payment))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "purchase completed",
		"namespace", ns, "token_id", id, "buyer", caller, "price", listing.Price)
	httputil.WriteJSON(w, http.StatusOK, FromListing(listing))
}

// HandleListings handles GET /registries/{ns}/sales.
func (h *Handler) HandleListings(w http.ResponseWriter, r *http.Request) {
	ns, err := domain.ParseNamespace(chi.URLParam(r, "ns"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	listings, err := h.service.Listings(r.Context(), ns)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]*ListingResponse, 0, len(listings))
	for i := range listings {
		out = append(out, FromListing(&listings[i]))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) saleTarget(w http.ResponseWriter, r *http.Request, needCaller bool) (domain.Namespace, domain.TokenID, domain.Address, bool) {
	ns, err := domain.ParseNamespace(chi.URLParam(r, "ns"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", 0, "", false
	}
	n, err := strconv.ParseInt(chi.URLParam(r, "tokenID"), 10, 64)
	if err != nil || !domain.TokenID(n).IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "token id must be a positive integer"))
		return "", 0, "", false
	}
	caller := requestcontext.Caller(r.Context())
	if needCaller && caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", 0, "", false
	}
	return ns, domain.TokenID(n), caller, true
}
