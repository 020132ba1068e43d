package main

import (
	"errors"
	"sort"

	"github.com/spf13/cobra"

	"github.com/opsdesk/platform/pkg/config"
	"github.com/opsdesk/platform/pkg/logger"
	"github.com/opsdesk/platform/pkg/quota"
	"github.com/opsdesk/platform/pkg/storagemeter"
)

type reconcileResult struct {
	OrganizationID int64 `json:"organization_id" yaml:"organization_id"`
	DeltaMb        int64 `json:"delta_mb" yaml:"delta_mb"`
}

func newReconcileStorageCmd() *cobra.Command {
	var (
		orgIDs      []int64
		concurrency int
		format      string
	)
	cmd := &cobra.Command{
		Use:   "reconcile-storage",
		Short: "Correct cached storage usage from the objects stored in S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range orgIDs {
				if id <= 0 {
					return quota.ErrInvalidOrganization
				}
			}
			if len(orgIDs) == 0 {
				return errors.New("at least one --org is required")
			}

			ctx := cmd.Context()
			return withApp(ctx, cmd.ErrOrStderr(), func(a *app) error {
				var s3cfg storagemeter.Config
				if err := config.Load(&s3cfg); err != nil {
					return err
				}
				meter, err := storagemeter.New(ctx, s3cfg, storagemeter.WithLogger(a.log.With(logger.Component("storagemeter"))))
				if err != nil {
					return err
				}
				svc, err := a.service(ctx, nil)
				if err != nil {
					return err
				}

				deltas, err := meter.ReconcileAll(ctx, svc, orgIDs, concurrency)
				if err != nil {
					return err
				}

				out := make([]reconcileResult, 0, len(deltas))
				for id, d := range deltas {
					out = append(out, reconcileResult{OrganizationID: id, DeltaMb: d})
				}
				sort.Slice(out, func(i, j int) bool { return out[i].OrganizationID < out[j].OrganizationID })
				return render(cmd.OutOrStdout(), format, out)
			})
		},
	}
	cmd.Flags().Int64SliceVar(&orgIDs, "org", nil, "organization IDs (repeatable or comma separated)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "organizations measured in parallel")
	cmd.Flags().StringVarP(&format, "output", "o", "json", "output format: json or yaml")
	return cmd
}
