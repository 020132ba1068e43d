package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// OrganizationID records the tenant under the key "organization_id".
func OrganizationID(id int64) slog.Attr {
	return slog.Int64("organization_id", id)
}

// Resource records a governed resource under the key "resource".
func Resource(name string) slog.Attr {
	return slog.String("resource", name)
}

// Tier records a subscription tier under the key "tier".
func Tier(name string) slog.Attr {
	return slog.String("tier", name)
}

// Fallback records the value used instead of an invalid one under the key "fallback".
func Fallback(value string) slog.Attr {
	return slog.String("fallback", value)
}

// Usage groups current usage and its limit under the key "usage".
func Usage(current, limit int64) slog.Attr {
	return slog.Group("usage",
		slog.Int64("current", current),
		slog.Int64("limit", limit),
	)
}

// ResetAt records when a rate-limit window ends under the key "reset_at".
func ResetAt(t time.Time) slog.Attr {
	return slog.Time("reset_at", t)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RequestID records the request identifier under the key "request_id".
// If id is empty, it returns an empty Attr.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
