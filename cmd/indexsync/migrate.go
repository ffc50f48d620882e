package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run one migration and print its result",
		Long: `Run one migration: apply the templates, rebuild the families whose template
changed, swap their alias and delete the superseded indexes. With --dry-run the changes
are only reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), c, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.shutdown(context.WithoutCancel(cmd.Context()))

			res, err := a.migrator.Migrate(cmd.Context())
			if res != nil {
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}
