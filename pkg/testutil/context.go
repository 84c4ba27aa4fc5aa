package testutil

import (
	"context"
	"net/http"
	"time"

	"meroku/pkg/domain"
	"meroku/pkg/requestcontext"
)

// ContextAt returns a background context pinned to the given time. Lifecycle
// predicates (expiry, grace period) read this clock, so tests step it forward
// instead of sleeping.
func ContextAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// WithCaller adds an authenticated caller address to the request context,
// simulating what the auth middleware does for authenticated requests.
func WithCaller(req *http.Request, addr domain.Address) *http.Request {
	ctx := requestcontext.WithCaller(req.Context(), addr)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock on an HTTP request.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), t)
	return req.WithContext(ctx)
}
