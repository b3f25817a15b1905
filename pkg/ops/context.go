package ops

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey struct{}

// WithAccountID stamps the authenticated account id onto the context.
// Authentication itself is an upstream concern; this package only consumes
// the result.
func WithAccountID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// AccountIDFromContext returns the authenticated account id, if any.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxKey{}).(uuid.UUID)
	return id, ok
}

// AccountHeaderMiddleware trusts the X-Account-ID header set by an upstream
// authenticating proxy. Only for deployments where that proxy strips the
// header from client traffic.
func AccountHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-Account-ID"); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(WithAccountID(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
