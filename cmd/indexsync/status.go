package main

import (
	"context"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/clinia/indexsync/elasticx/migrate"
	"github.com/clinia/indexsync/errorx"
)

func newStatusCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report how every index family is served",
		Args:  cobra.NoArgs,
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

			families, err := a.migrator.Status(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), families); err != nil {
				return err
			}

			drifted := lo.FilterMap(families, func(s migrate.FamilyStatus, _ int) (string, bool) {
				return s.Family, s.Drift || s.MappingDrift
			})
			if check && len(drifted) > 0 {
				return errorx.FailedPreconditionErrorf("index families out of date: %v", drifted)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Fail when a family needs a migration")
	return cmd
}
