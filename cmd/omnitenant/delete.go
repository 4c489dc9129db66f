package main

import (
	"github.com/spf13/cobra"
)

var deleteKeepResources bool

var deleteCmd = &cobra.Command{
	Use:   "delete <tenant-id>",
	Short: "Tear down a tenant's resources and remove its record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.deleteTenant(ctx, args[0], deleteKeepResources); err != nil {
			return err
		}
		cmd.Printf("Tenant %q deleted.\n", args[0])
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteKeepResources, "keep-resources", false,
		"remove only the registry record, leaving database/schema/cache data in place")
}
