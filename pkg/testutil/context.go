package testutil

import (
	"net/http"

	id "fundforge/pkg/domain"
	"fundforge/pkg/requestcontext"
)

// WithContributor adds a contributor ID to the request context, simulating
// what the auth middleware would do for an authenticated request.
func WithContributor(req *http.Request, contributor id.ContributorID) *http.Request {
	ctx := requestcontext.WithContributorID(req.Context(), contributor)
	return req.WithContext(ctx)
}
