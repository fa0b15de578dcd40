package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"fundforge/pkg/requestcontext"
)

// DedupeStore records request IDs that have already been accepted. Backed by
// redis SETNX in production; a map fake in tests.
type DedupeStore interface {
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Idempotency rejects a mutating request whose X-Request-Id was already
// accepted. The engine itself has no replay protection beyond its state
// guards, so retried network submissions are deduplicated here.
//
// Store failures fail open: a lost dedupe window is preferable to rejecting
// live traffic, and the engine's state guards still stop double transitions.
func Idempotency(store DedupeStore, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			reqID := r.Header.Get("X-Request-Id")
			if reqID == "" {
				next.ServeHTTP(w, r)
				return
			}
			fresh, err := store.SetIfAbsent(r.Context(), "dedupe:"+reqID, ttl)
			if err != nil {
				logger.WarnContext(r.Context(), "dedupe store unavailable",
					"request_id", requestcontext.RequestID(r.Context()),
					"error", err.Error(),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !fresh {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"duplicate_request","error_description":"request id already processed"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
