// Package httpapi assembles the HTTP surface: public registry and market
// routes, the admin surface, and the operational endpoints.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	addressbookhandler "meroku/internal/addressbook/handler"
	markethandler "meroku/internal/market/handler"
	registryhandler "meroku/internal/registry/handler"
	reservedhandler "meroku/internal/reserved/handler"
	"meroku/pkg/platform/httputil"
	"meroku/pkg/platform/middleware/admin"
	"meroku/pkg/platform/middleware/auth"
	"meroku/pkg/platform/middleware/requestid"
	"meroku/pkg/platform/middleware/requesttime"
)

// Deps carries the wired handlers and cross-cutting dependencies.
type Deps struct {
	Registry    *registryhandler.Handler
	Market      *markethandler.Handler
	Reserved    *reservedhandler.Handler
	AddressBook *addressbookhandler.Handler
	Tokens      auth.TokenValidator
	AdminToken  string
	Logger      *slog.Logger
}

// NewRouter wires all endpoints behind the shared middleware stack.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(auth.Authenticate(deps.Tokens, deps.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	deps.Registry.Register(r)
	deps.Market.Register(r)

	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(deps.AdminToken, deps.Logger))
		deps.Registry.RegisterAdmin(r)
		deps.Reserved.RegisterAdmin(r)
		deps.AddressBook.RegisterAdmin(r)
	})

	return r
}
