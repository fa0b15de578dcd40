// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services read them, and tests
// inject them without running the HTTP chain. Keeping this package free of
// net/http lets the engine stay transport-agnostic.
package requestcontext

import (
	"context"
	"time"

	id "fundforge/pkg/domain"
)

type (
	contributorIDKey struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyContributorID = contributorIDKey{}
	ContextKeyRequestID     = requestIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// ContributorID retrieves the authenticated contributor from the context.
// Returns the zero value if not set.
func ContributorID(ctx context.Context) id.ContributorID {
	if c, ok := ctx.Value(ContextKeyContributorID).(id.ContributorID); ok {
		return c
	}
	return id.ContributorID{}
}

// WithContributorID injects a contributor ID into the context.
func WithContributorID(ctx context.Context, contributor id.ContributorID) context.Context {
	return context.WithValue(ctx, ContextKeyContributorID, contributor)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context. All operations within a
// single request observe the same "now", so deadline checks and audit stamps
// agree. Falls back to time.Now() for workers, CLI, and tests that don't set it.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Tests use this to pin the
// clock when exercising deadline-sensitive operations.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
