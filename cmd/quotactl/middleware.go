package main

import (
	"net/http"

	"github.com/opsdesk/platform/modules/usage"
	"github.com/opsdesk/platform/pkg/quota"
)

// scopeOrganization copies the resolved organization into the request
// context so the quota middleware and log records see it.
func scopeOrganization(resolve usage.OrganizationResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if orgID, ok := resolve(r); ok {
				r = r.WithContext(quota.WithOrganizationID(r.Context(), orgID))
			}
			next.ServeHTTP(w, r)
		})
	}
}
