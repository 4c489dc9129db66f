package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateAll bool

var migrateCmd = &cobra.Command{
	Use:   "migrate [tenant-id]",
	Short: "Run migrations for one tenant, or for all with --all",
	Long: `Run migrations for a single tenant (fail fast) or for every
registered tenant sequentially. With --all, one tenant's failure does
not stop the batch; a per-tenant report is printed at the end.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if !migrateAll {
			if len(args) != 1 {
				return errors.New("a tenant id is required unless --all is set")
			}
			if err := a.migrator.One(ctx, args[0]); err != nil {
				return err
			}
			cmd.Printf("Tenant %q migrated.\n", args[0])
			return nil
		}

		report, err := a.migrator.All(ctx)
		if err != nil {
			return err
		}
		for _, res := range report.Results {
			if res.Err != nil {
				cmd.Printf("FAIL  %-20s %v\n", res.TenantID, res.Err)
			} else {
				cmd.Printf("OK    %s\n", res.TenantID)
			}
		}
		cmd.Printf("\n%d migrated, %d failed\n", report.Succeeded(), report.Failed())
		if report.Failed() > 0 {
			return fmt.Errorf("%d tenant(s) failed to migrate", report.Failed())
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateAll, "all", false, "migrate every registered tenant")
}
