package usage

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opsdesk/platform/pkg/logger"
	"github.com/opsdesk/platform/pkg/quota"
)

// Reporter is the read side of the quota service used by the dashboard endpoints.
type Reporter interface {
	GetQuotaSummary(ctx context.Context, orgID int64) (*quota.Summary, error)
	GetUsagePercentage(ctx context.Context, orgID int64, res quota.Resource) (int, error)
	CheckQuota(ctx context.Context, orgID int64, res quota.Resource) (*quota.CheckResult, error)
}

// RouterOptions configures the usage module.
type RouterOptions struct {
	Reporter Reporter             // Required.
	Resolver OrganizationResolver // Defaults to OrganizationFromContext.
	Logger   *slog.Logger         // Defaults to slog.Default().
}

// Router exposes the organization's quota state:
//
//	GET /summary            usage, limits, percentages and warnings
//	GET /usage/{resource}   usage percentage of one resource
//	GET /check/{resource}   whether one more resource may be created
//
// Example:
//
//	r := chi.NewRouter()
//	r.Use(usage.RateLimit(svc, nil, log))
//	r.Mount("/quota", usage.Router(usage.RouterOptions{Reporter: svc}))
func Router(opts RouterOptions) chi.Router {
	if opts.Reporter == nil {
		panic("usage: Reporter is required")
	}
	h := &handler{
		reporter: opts.Reporter,
		resolve:  opts.Resolver,
		log:      opts.Logger,
	}
	if h.resolve == nil {
		h.resolve = OrganizationFromContext
	}
	if h.log == nil {
		h.log = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/summary", h.summary)
	r.Get("/usage/{resource}", h.percentage)
	r.Get("/check/{resource}", h.check)
	return r
}

type handler struct {
	reporter Reporter
	resolve  OrganizationResolver
	log      *slog.Logger
}

func (h *handler) summary(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.resolve(r)
	if !ok {
		WriteError(w, ErrUnauthorized)
		return
	}

	summary, err := h.reporter.GetQuotaSummary(r.Context(), orgID)
	if err != nil {
		h.fail(w, r, orgID, err)
		return
	}
	writeJSON(w, http.StatusOK, JSONResponse{Code: "ok", Data: summary})
}

func (h *handler) percentage(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.resolve(r)
	if !ok {
		WriteError(w, ErrUnauthorized)
		return
	}
	res := quota.Resource(chi.URLParam(r, "resource"))

	pct, err := h.reporter.GetUsagePercentage(r.Context(), orgID, res)
	if err != nil {
		h.fail(w, r, orgID, err)
		return
	}
	writeJSON(w, http.StatusOK, JSONResponse{
		Code: "ok",
		Data: map[string]any{"resource_type": res, "percentage": pct},
	})
}

// check reports the admission decision without failing the request on denial,
// so clients can grey out create buttons.
func (h *handler) check(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.resolve(r)
	if !ok {
		WriteError(w, ErrUnauthorized)
		return
	}
	res := quota.Resource(chi.URLParam(r, "resource"))

	result, err := h.reporter.CheckQuota(r.Context(), orgID, res)
	if err != nil {
		h.fail(w, r, orgID, err)
		return
	}
	writeJSON(w, http.StatusOK, JSONResponse{Code: "ok", Data: result})
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, orgID int64, err error) {
	if !quota.IsDenial(err) && !errors.Is(err, quota.ErrInvalidResource) {
		h.log.ErrorContext(r.Context(), "quota request failed",
			logger.OrganizationID(orgID),
			logger.Error(err),
		)
	}
	WriteError(w, err)
}
