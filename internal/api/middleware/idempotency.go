package middleware

import (
	"context"
	"net/http"
)

// IdempotencyKeyMiddleware captures the optional Idempotency-Key header
// so the service layer can fold it into the guard reservation key.
// Requests without the header still dedupe on a TTL-sized time bucket.
func IdempotencyKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), idempotencyKeyContextKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdempotencyKeyFromContext returns the Idempotency-Key header value, if
// the request carried one.
func IdempotencyKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(idempotencyKeyContextKey).(string); ok {
		return v
	}
	return ""
}
