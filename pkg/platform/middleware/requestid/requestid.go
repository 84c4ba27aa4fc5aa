// Package requestid assigns a correlation id to each request.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"meroku/pkg/requestcontext"
)

// Header carries the correlation id in both directions: a client-supplied id
// is kept, otherwise a fresh one is generated.
const Header = "X-Request-ID"

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
