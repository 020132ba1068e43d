package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsdesk/platform/pkg/quota"
)

func newTiersCmd() *cobra.Command {
	var (
		file        string
		defaultTier string
		format      string
	)
	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Validate and print the tier table",
		Long: `Tiers prints the built-in tier table, or validates and prints the YAML
table given with --file. No database connection is needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tiers := quota.DefaultTiers()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return errors.Join(quota.ErrFailedToLoadTiers, err)
				}
				defer f.Close()
				if tiers, err = quota.NewYAMLTierSource(f).Load(cmd.Context()); err != nil {
					return errors.Join(quota.ErrFailedToLoadTiers, err)
				}
			}
			if err := quota.ValidateTiers(tiers, quota.Tier(defaultTier)); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, tiers)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML tier table (defaults to the built-in table)")
	cmd.Flags().StringVar(&defaultTier, "default-tier", string(quota.TierStarter), "tier that must be present as the fallback")
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "output format: json or yaml")
	return cmd
}
