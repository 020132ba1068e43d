package main

import (
	"github.com/spf13/cobra"

	"github.com/opsdesk/platform/pkg/config"
)

var (
	// Version is set by build flags.
	Version = "dev"
	// GitCommit is set by build flags.
	GitCommit = "unknown"
)

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:   "quotactl",
		Short: "Operate organization quotas and API rate limits",
		Long: `quotactl manages the per-organization limits of the platform.

Configuration is read from the environment (and an optional .env file):
  PG_CONN_URL          PostgreSQL connection string (required)
  QUOTA_STORE          limits store: postgres (default) or redis
  REDIS_URL            Redis connection string when QUOTA_STORE=redis
  QUOTA_TIERS_FILE     optional YAML tier table
  STORAGE_S3_BUCKET    bucket measured by reconcile-storage`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFiles(envFiles...)
		},
	}

	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading configuration")

	root.AddCommand(
		newMigrateCmd(),
		newEnsureCmd(),
		newSummaryCmd(),
		newCheckCmd(),
		newTierCmd(),
		newTiersCmd(),
		newReconcileStorageCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}
