// Package handler wires the registry endpoints to the namespace ledgers.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"meroku/internal/registry/models"
	"meroku/internal/registry/service"
	"meroku/pkg/domain"
	dErrors "meroku/pkg/domain-errors"
	"meroku/pkg/platform/httputil"
	"meroku/pkg/requestcontext"
)

// Handler exposes the identity ledgers over HTTP.
type Handler struct {
	registry *service.Registry
	logger   *slog.Logger
}

// New constructs a registry handler with its dependencies.
func New(registry *service.Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Register mounts the caller-facing registry endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Route("/registries/{ns}", func(r chi.Router) {
		r.Post("/mints", h.HandleMintSelf)
		r.Get("/identities/{tokenID}", h.HandleGet)
		r.Get("/names/{name}", h.HandleGetByName)
		r.Post("/identities/{tokenID}/transfer", h.HandleTransfer)
		r.Post("/identities/{tokenID}/renew", h.HandleRenew)
		r.Post("/identities/{tokenID}/claim", h.HandleClaim)
		r.Put("/identities/{tokenID}/uri", h.HandleUpdateURI)
	})
}

// RegisterAdmin mounts the owner-facing registry endpoints. The admin token
// middleware authenticates these before they reach the handler.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Route("/registries/{ns}", func(r chi.Router) {
		r.Post("/mints", h.HandleAdminMint)
		r.Get("/config", h.HandleGetConfig)
		r.Put("/config", h.HandleUpdateConfig)
		r.Put("/params", h.HandleUpdateParams)
	})
}

// HandleMintSelf handles POST /registries/{ns}/mints.
func (h *Handler) HandleMintSelf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[MintRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	to := req.ParsedTo()
	if to.IsZero() {
		to = caller
	}
	ident, err := ledger.MintSelf(ctx, caller, to, req.URI, req.Name, domain.Amount(req.Payment))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, h.identityResponse(r, ledger, ident))
}

// HandleGet handles GET /registries/{ns}/identities/{tokenID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	ident, err := ledger.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.identityResponse(r, ledger, ident))
}

// HandleGetByName handles GET /registries/{ns}/names/{name}.
func (h *Handler) HandleGetByName(w http.ResponseWriter, r *http.Request) {
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	ident, err := ledger.GetByName(r.Context(), name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.identityResponse(r, ledger, ident))
}

// HandleTransfer handles POST /registries/{ns}/identities/{tokenID}/transfer.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	ident, err := ledger.Transfer(ctx, caller, req.ParsedTo(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.identityResponse(r, ledger, ident))
}

// HandleRenew handles POST /registries/{ns}/identities/{tokenID}/renew.
func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	h.handlePaid(w, r, func(ledger *service.Ledger, caller domain.Address, id domain.TokenID, payment domain.Amount) (any, error) {
		ident, err := ledger.Renew(r.Context(), caller, id, payment)
		if err != nil {
			return nil, err
		}
		return h.identityResponse(r, ledger, ident), nil
	})
}

// HandleClaim handles POST /registries/{ns}/identities/{tokenID}/claim.
func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	h.handlePaid(w, r, func(ledger *service.Ledger, caller domain.Address, id domain.TokenID, payment domain.Amount) (any, error) {
		ident, err := ledger.Claim(r.Context(), caller, id, payment)
		if err != nil {
			return nil, err
		}
		return h.identityResponse(r, ledger, ident), nil
	})
}

// HandleUpdateURI handles PUT /registries/{ns}/identities/{tokenID}/uri.
func (h *Handler) HandleUpdateURI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[URIRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	ident, err := ledger.UpdateURI(ctx, caller, id, req.URI)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.identityResponse(r, ledger, ident))
}

// HandleAdminMint handles POST /admin/registries/{ns}/mints. The mint runs as
// the namespace owner, so short names pass and no fee is taken.
func (h *Handler) HandleAdminMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AdminMintRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	ident, err := ledger.Mint(ctx, ledger.Owner(), req.ParsedTo(), req.URI, req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, h.identityResponse(r, ledger, ident))
}

// HandleGetConfig handles GET /admin/registries/{ns}/config.
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromConfig(ledger.Owner(), ledger.Params(), ledger.Config()))
}

// HandleUpdateConfig handles PUT /admin/registries/{ns}/config.
func (h *Handler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ConfigRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if req.PayForMint != nil {
		ledger.SetPayForMintFlag(*req.PayForMint)
	}
	if req.MintMany != nil {
		ledger.SetMintManyFlag(*req.MintMany)
	}
	if req.MintSpecial != nil {
		ledger.SetMintSpecialFlag(*req.MintSpecial)
	}
	if req.CheckReservedNames != nil {
		ledger.SetCheckReservedNamesFlag(*req.CheckReservedNames)
	}

	h.logger.InfoContext(ctx, "namespace config updated",
		"namespace", ledger.Namespace(), "request_id", requestcontext.RequestID(ctx))
	httputil.WriteJSON(w, http.StatusOK, FromConfig(ledger.Owner(), ledger.Params(), ledger.Config()))
}

// HandleUpdateParams handles PUT /admin/registries/{ns}/params.
func (h *Handler) HandleUpdateParams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ParamsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if req.MintFees != nil {
		ledger.SetMintFees(domain.Amount(*req.MintFees))
	}
	if req.RenewFees != nil {
		ledger.SetRenewFees(domain.Amount(*req.RenewFees))
	}
	if d, ok := req.TokenLife(); ok {
		ledger.SetTokenLife(d)
	}
	if d, ok := req.RenewLife(); ok {
		ledger.SetRenewLife(d)
	}

	h.logger.InfoContext(ctx, "namespace params updated",
		"namespace", ledger.Namespace(), "request_id", requestcontext.RequestID(ctx))
	httputil.WriteJSON(w, http.StatusOK, FromConfig(ledger.Owner(), ledger.Params(), ledger.Config()))
}

func (h *Handler) handlePaid(w http.ResponseWriter, r *http.Request, fn func(*service.Ledger, domain.Address, domain.TokenID, domain.Amount) (any, error)) {
	ctx := r.Context()
	ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PaymentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	resp, err := fn(ledger, caller, id, domain.Amount(req.Payment))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) (*service.Ledger, bool) {
	ns, err := domain.ParseNamespace(chi.URLParam(r, "ns"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	ledger, err := h.registry.Ledger(ns)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	return ledger, true
}

func (h *Handler) tokenID(w http.ResponseWriter, r *http.Request) (domain.TokenID, bool) {
	raw := chi.URLParam(r, "tokenID")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || !domain.TokenID(n).IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "token id must be a positive integer"))
		return 0, false
	}
	return domain.TokenID(n), true
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}

func (h *Handler) identityResponse(r *http.Request, ledger *service.Ledger, ident *models.Identity) *IdentityResponse {
	now := requestcontext.Now(r.Context())
	params := ledger.Params()
	return FromIdentity(ident, params.Namespace, params.RenewLife, now)
}
