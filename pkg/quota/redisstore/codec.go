package redisstore

import (
	"fmt"
	"strconv"
	"time"

	"github.com/opsdesk/platform/pkg/quota"
)

func decode(fields map[string]string) (*quota.OrganizationLimits, error) {
	d := decoder{fields: fields}
	l := &quota.OrganizationLimits{
		OrganizationID: d.integer(fieldOrganizationID),
		Tier:           quota.Tier(fields[fieldTier]),
		Ceilings: quota.Ceilings{
			Users:        d.optInt(fieldMaxUsers),
			Incidents:    d.optInt(fieldMaxIncidents),
			Assets:       d.optInt(fieldMaxAssets),
			Runbooks:     d.optInt(fieldMaxRunbooks),
			Templates:    d.optInt(fieldMaxTemplates),
			StorageMb:    d.integer(fieldMaxStorageMb),
			APIRateLimit: d.integer(fieldAPIRateLimit),
		},
		CurrentStorageMb: d.integer(fieldCurrentStorageMb),
		APICallsThisHour: d.integer(fieldAPICalls),
		CreatedAt:        d.timestamp(fieldCreatedAt),
		UpdatedAt:        d.timestamp(fieldUpdatedAt),
	}
	if ms := d.optInt(fieldAPIResetAt); ms != nil {
		at := time.UnixMilli(*ms).UTC()
		l.APIResetAt = &at
	}
	if d.err != nil {
		return nil, d.err
	}
	return l, nil
}

// decoder keeps the first parse error so decode reads like a field list.
type decoder struct {
	fields map[string]string
	err    error
}

func (d *decoder) integer(field string) int64 {
	v := d.optInt(field)
	if v == nil {
		return 0
	}
	return *v
}

func (d *decoder) optInt(field string) *int64 {
	raw := d.fields[field]
	if raw == "" || d.err != nil {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		d.err = fmt.Errorf("redisstore: field %s: %w", field, err)
		return nil
	}
	return &n
}

func (d *decoder) timestamp(field string) time.Time {
	raw := d.fields[field]
	if raw == "" || d.err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		d.err = fmt.Errorf("redisstore: field %s: %w", field, err)
		return time.Time{}
	}
	return t
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
