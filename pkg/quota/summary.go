package quota

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary aggregates an organization's usage against its limits for dashboards.
type Summary struct {
	Usage       ResourceUsage      `json:"usage"`
	Limits      OrganizationLimits `json:"limits"`
	Percentages map[Resource]int   `json:"percentages"`
	Warnings    []string           `json:"warnings"`
}

// GetQuotaSummary reports the usage percentage of every resource and a warning
// for each one at or above the warning threshold. Unlimited resources report 0%
// and never warn.
func (s *Service) GetQuotaSummary(ctx context.Context, orgID int64) (*Summary, error) {
	if err := validOrg(orgID); err != nil {
		return nil, err
	}

	usage, limits, err := s.snapshot(ctx, orgID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Usage:       usage,
		Limits:      *limits,
		Percentages: make(map[Resource]int, len(summaryResources)),
		Warnings:    make([]string, 0),
	}

	p := message.NewPrinter(language.English)
	for _, res := range summaryResources {
		current, _ := usage.For(res)
		limit, _ := limits.Ceilings.For(res)

		pct := percentage(current, limit)
		summary.Percentages[res] = pct

		if limit != nil && pct >= s.warningThreshold {
			summary.Warnings = append(summary.Warnings, warningMessage(p, res, pct, current, *limit))
		}
	}

	return summary, nil
}

// GetUsagePercentage returns the usage percentage of a single resource (0 for unlimited).
func (s *Service) GetUsagePercentage(ctx context.Context, orgID int64, res Resource) (int, error) {
	if _, ok := (ResourceUsage{}).For(res); !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResource, res)
	}
	if err := validOrg(orgID); err != nil {
		return 0, err
	}
	usage, limits, err := s.snapshot(ctx, orgID)
	if err != nil {
		return 0, err
	}

	current, _ := usage.For(res)
	limit, _ := limits.Ceilings.For(res)
	return percentage(current, limit), nil
}

// percentage is round(current/limit*100). Unlimited reports 0; a zero
// ceiling is fully exhausted and reports 100.
func percentage(current int64, limit *int64) int {
	if limit == nil {
		return 0
	}
	if *limit == 0 {
		return 100
	}
	return int(math.Round(float64(current) / float64(*limit) * 100))
}

func warningMessage(p *message.Printer, res Resource, pct int, current, limit int64) string {
	unit := ""
	if res == ResourceStorage {
		unit = " MB"
	}
	return p.Sprintf("%s usage is at %d%% (%d of %d%s)", resourceLabel(res), pct, current, limit, unit)
}

func resourceLabel(res Resource) string {
	if res == ResourceAPICalls {
		return "Hourly API calls"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(res), "_", " "))
}
