package main

import (
	"github.com/spf13/cobra"

	"github.com/opsdesk/platform/pkg/logger"
	"github.com/opsdesk/platform/pkg/pg"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending organization_limits migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, cmd.ErrOrStderr(), func(a *app) error {
				return pg.Migrate(ctx, a.pool, a.cfg.PG, a.log.With(logger.Component("migrate")))
			})
		},
	}
}
