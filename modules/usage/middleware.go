package usage

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/opsdesk/platform/pkg/logger"
	"github.com/opsdesk/platform/pkg/quota"
)

// OrganizationResolver extracts the organization of the request.
// The second value is false when the request is not scoped to an organization.
type OrganizationResolver func(r *http.Request) (int64, bool)

// OrganizationFromContext reads the organization set with quota.WithOrganizationID,
// typically by the authentication middleware.
func OrganizationFromContext(r *http.Request) (int64, bool) {
	return quota.OrganizationIDFromContext(r.Context())
}

// OrganizationFromHeader trusts header as set by the authenticating gateway.
// Missing, malformed and non-positive values are treated as unscoped.
func OrganizationFromHeader(header string) OrganizationResolver {
	return func(r *http.Request) (int64, bool) {
		id, err := strconv.ParseInt(r.Header.Get(header), 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	}
}

// RateLimit counts every request against the organization's hourly API limit
// and rejects it with 429 once the limit is reached. Requests that are not
// scoped to an organization pass through uncounted.
func RateLimit(enforcer quota.Enforcer, resolve OrganizationResolver, log *slog.Logger) func(http.Handler) http.Handler {
	if resolve == nil {
		resolve = OrganizationFromContext
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID, ok := resolve(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			result, err := enforcer.EnforceRateLimit(r.Context(), orgID)
			if result != nil {
				writeRateLimitHeaders(w, result)
			}
			if err != nil {
				if !quota.IsDenial(err) {
					log.ErrorContext(r.Context(), "rate limit check failed",
						logger.OrganizationID(orgID),
						logger.Error(err),
					)
				}
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireQuota rejects the request with 402 when creating one more res would
// exceed the organization's quota. Mount it on create endpoints only.
func RequireQuota(enforcer quota.Enforcer, res quota.Resource, resolve OrganizationResolver, log *slog.Logger) func(http.Handler) http.Handler {
	if resolve == nil {
		resolve = OrganizationFromContext
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID, ok := resolve(r)
			if !ok {
				WriteError(w, ErrUnauthorized)
				return
			}

			if err := enforcer.EnforceQuota(r.Context(), orgID, res); err != nil {
				if !quota.IsDenial(err) {
					log.ErrorContext(r.Context(), "quota check failed",
						logger.OrganizationID(orgID),
						logger.Resource(string(res)),
						logger.Error(err),
					)
				}
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
