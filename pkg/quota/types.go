package quota

import "time"

// Resource represents a quota-governed organization resource.
type Resource string

// Governed resources.
const (
	ResourceUsers     Resource = "users"
	ResourceIncidents Resource = "incidents"
	ResourceAssets    Resource = "assets"
	ResourceRunbooks  Resource = "runbooks"
	ResourceTemplates Resource = "templates"
	ResourceStorage   Resource = "storage" // Measured in MB
	ResourceAPICalls  Resource = "api_calls"
)

// Unlimited is reported in results and summaries for resources without a ceiling.
const Unlimited int64 = -1

// countedResources are recomputed by a live count on every check.
var countedResources = []Resource{
	ResourceUsers,
	ResourceIncidents,
	ResourceAssets,
	ResourceRunbooks,
	ResourceTemplates,
}

// summaryResources is the display order used by the summary reporter.
var summaryResources = []Resource{
	ResourceUsers,
	ResourceIncidents,
	ResourceAssets,
	ResourceRunbooks,
	ResourceTemplates,
	ResourceStorage,
	ResourceAPICalls,
}

// Governed reports whether res may be passed to CheckQuota.
func (r Resource) Governed() bool {
	switch r {
	case ResourceUsers, ResourceIncidents, ResourceAssets, ResourceRunbooks, ResourceTemplates, ResourceStorage:
		return true
	}
	return false
}

// Limit returns a ceiling of n. A nil *int64 means unlimited.
func Limit(n int64) *int64 {
	return &n
}

// Ceilings holds the per-resource maximums of an organization.
// Nil count ceilings mean unlimited; storage and API rate are always bounded.
type Ceilings struct {
	Users        *int64 `json:"max_users" yaml:"max_users"`
	Incidents    *int64 `json:"max_incidents" yaml:"max_incidents"`
	Assets       *int64 `json:"max_assets" yaml:"max_assets"`
	Runbooks     *int64 `json:"max_runbooks" yaml:"max_runbooks"`
	Templates    *int64 `json:"max_templates" yaml:"max_templates"`
	StorageMb    int64  `json:"max_storage_mb" yaml:"max_storage_mb"`
	APIRateLimit int64  `json:"api_rate_limit" yaml:"api_rate_limit"`
}

// For returns the ceiling for res, or nil when res is unlimited.
// The second value is false when res has no ceiling in this table at all.
func (c Ceilings) For(res Resource) (*int64, bool) {
	switch res {
	case ResourceUsers:
		return c.Users, true
	case ResourceIncidents:
		return c.Incidents, true
	case ResourceAssets:
		return c.Assets, true
	case ResourceRunbooks:
		return c.Runbooks, true
	case ResourceTemplates:
		return c.Templates, true
	case ResourceStorage:
		return &c.StorageMb, true
	case ResourceAPICalls:
		return &c.APIRateLimit, true
	}
	return nil, false
}

// clone returns a deep copy so callers cannot mutate shared tier tables.
func (c Ceilings) clone() Ceilings {
	cp := c
	for _, p := range []**int64{&cp.Users, &cp.Incidents, &cp.Assets, &cp.Runbooks, &cp.Templates} {
		if *p != nil {
			*p = Limit(**p)
		}
	}
	return cp
}

// OrganizationLimits is the persisted limits record of one organization.
type OrganizationLimits struct {
	OrganizationID int64 `json:"organization_id"`
	Tier           Tier  `json:"tier"`
	Ceilings

	CurrentStorageMb int64      `json:"current_storage_mb"`
	APICallsThisHour int64      `json:"api_calls_this_hour"`
	APIResetAt       *time.Time `json:"api_reset_at,omitempty"` // nil before first API call
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ResourceUsage is a point-in-time snapshot of an organization's usage.
type ResourceUsage struct {
	Users            int64 `json:"users"`
	Incidents        int64 `json:"incidents"`
	Assets           int64 `json:"assets"`
	Runbooks         int64 `json:"runbooks"`
	Templates        int64 `json:"templates"`
	StorageMb        int64 `json:"storage_mb"`
	APICallsThisHour int64 `json:"api_calls_this_hour"`
}

// For returns the usage value for res.
func (u ResourceUsage) For(res Resource) (int64, bool) {
	switch res {
	case ResourceUsers:
		return u.Users, true
	case ResourceIncidents:
		return u.Incidents, true
	case ResourceAssets:
		return u.Assets, true
	case ResourceRunbooks:
		return u.Runbooks, true
	case ResourceTemplates:
		return u.Templates, true
	case ResourceStorage:
		return u.StorageMb, true
	case ResourceAPICalls:
		return u.APICallsThisHour, true
	}
	return 0, false
}

func (u *ResourceUsage) set(res Resource, v int64) {
	switch res {
	case ResourceUsers:
		u.Users = v
	case ResourceIncidents:
		u.Incidents = v
	case ResourceAssets:
		u.Assets = v
	case ResourceRunbooks:
		u.Runbooks = v
	case ResourceTemplates:
		u.Templates = v
	}
}

// CheckResult is the outcome of an admission decision.
// Limit and Remaining are Unlimited (-1) for resources without a ceiling.
type CheckResult struct {
	Allowed   bool       `json:"allowed"`
	Current   int64      `json:"current"`
	Limit     int64      `json:"limit"`
	Remaining int64      `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
	Err       error      `json:"error,omitempty"` // *QuotaExceededError or *RateLimitExceededError on denial
}

// Unlimited reports whether the checked resource has no ceiling.
func (r *CheckResult) Unlimited() bool {
	return r.Limit == Unlimited
}
