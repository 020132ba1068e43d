package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsdesk/platform/pkg/quota"
)

// errDenied makes denied checks exit non-zero for scripts.
var errDenied = errors.New("request would be denied")

// orgCommand is a command scoped to one organization.
type orgCommand struct {
	orgID  int64
	format string
}

func (o *orgCommand) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&o.orgID, "org", 0, "organization ID")
	cmd.Flags().StringVarP(&o.format, "output", "o", "json", "output format: json or yaml")
	_ = cmd.MarkFlagRequired("org")
}

// run connects, builds the service and calls fn with the organization in context.
func (o *orgCommand) run(cmd *cobra.Command, fn func(ctx context.Context, svc *quota.Service) (any, error)) error {
	if o.orgID <= 0 {
		return fmt.Errorf("%w: --org must be positive", quota.ErrInvalidOrganization)
	}
	ctx := quota.WithOrganizationID(cmd.Context(), o.orgID)
	return withApp(ctx, cmd.ErrOrStderr(), func(a *app) error {
		svc, err := a.service(ctx, nil)
		if err != nil {
			return err
		}
		v, runErr := fn(ctx, svc)
		if v != nil {
			if err := render(cmd.OutOrStdout(), o.format, v); err != nil {
				return err
			}
		}
		return runErr
	})
}

func newEnsureCmd() *cobra.Command {
	var o orgCommand
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create the organization's limits record from its tier if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, svc *quota.Service) (any, error) {
				if err := svc.EnsureLimits(ctx, o.orgID); err != nil {
					return nil, err
				}
				return svc.GetLimits(ctx, o.orgID)
			})
		},
	}
	o.bind(cmd)
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var o orgCommand
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show usage, limits, percentages and warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, svc *quota.Service) (any, error) {
				return svc.GetQuotaSummary(ctx, o.orgID)
			})
		},
	}
	o.bind(cmd)
	return cmd
}

type checkOutput struct {
	Resource  quota.Resource `json:"resource" yaml:"resource"`
	Allowed   bool           `json:"allowed" yaml:"allowed"`
	Current   int64          `json:"current" yaml:"current"`
	Limit     int64          `json:"limit" yaml:"limit"`
	Remaining int64          `json:"remaining" yaml:"remaining"`
	Reason    string         `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func newCheckCmd() *cobra.Command {
	var (
		o        orgCommand
		resource string
		n        int64
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether n more units of a resource would be admitted",
		Long: `Check evaluates a quota without consuming it. The command exits
non-zero when the request would be denied. Use --resource api_calls to
inspect the current rate-limit window; an ended window is reset first,
the same way a live API request would reset it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := quota.Resource(resource)
			return o.run(cmd, func(ctx context.Context, svc *quota.Service) (any, error) {
				var (
					result *quota.CheckResult
					err    error
				)
				if res == quota.ResourceAPICalls {
					result, err = svc.CheckRateLimit(ctx, o.orgID)
				} else {
					result, err = svc.CheckQuotaN(ctx, o.orgID, res, n)
				}
				if err != nil {
					return nil, err
				}

				out := checkOutput{
					Resource:  res,
					Allowed:   result.Allowed,
					Current:   result.Current,
					Limit:     result.Limit,
					Remaining: result.Remaining,
				}
				if !result.Allowed {
					out.Reason = result.Err.Error()
					return out, errDenied
				}
				return out, nil
			})
		},
	}
	o.bind(cmd)
	cmd.Flags().StringVar(&resource, "resource", "", "resource: users, incidents, assets, runbooks, templates, storage or api_calls")
	cmd.Flags().Int64Var(&n, "n", 1, "units requested (MB for storage)")
	_ = cmd.MarkFlagRequired("resource")
	return cmd
}

func newTierCmd() *cobra.Command {
	var (
		o      orgCommand
		target string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "tier",
		Short: "Apply another tier's ceilings to an organization",
		Long: `Tier updates the organization's limits record to the ceilings of --to.
Downgrades below current usage are refused. With --dry-run only the
downgrade check runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := quota.Tier(target)
			return o.run(cmd, func(ctx context.Context, svc *quota.Service) (any, error) {
				if dryRun {
					if err := svc.CanDowngrade(ctx, o.orgID, tier); err != nil {
						return nil, err
					}
					return map[string]any{"organization_id": o.orgID, "tier": tier, "possible": true}, nil
				}
				if err := svc.ChangeTier(ctx, o.orgID, tier); err != nil {
					return nil, err
				}
				return svc.GetLimits(ctx, o.orgID)
			})
		},
	}
	o.bind(cmd)
	cmd.Flags().StringVar(&target, "to", "", "target tier")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only check whether current usage fits the target tier")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
