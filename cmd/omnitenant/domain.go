package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

var domainCmd = &cobra.Command{
	Use:   "domain",
	Short: "Manage hostname-to-tenant mappings",
}

var domainAddCmd = &cobra.Command{
	Use:   "add <host> <tenant-id>",
	Short: "Map a hostname to a tenant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		d := &tenant.Domain{Host: args[0], TenantID: args[1]}
		if err := a.store.AddDomain(ctx, d); err != nil {
			return err
		}
		cmd.Printf("Domain %q mapped to tenant %q.\n", d.Host, d.TenantID)
		return nil
	},
}

var domainRemoveCmd = &cobra.Command{
	Use:   "remove <host>",
	Short: "Unmap a hostname",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.store.RemoveDomain(ctx, args[0]); err != nil {
			return err
		}
		cmd.Printf("Domain %q removed.\n", args[0])
		return nil
	},
}

func init() {
	domainCmd.AddCommand(domainAddCmd)
	domainCmd.AddCommand(domainRemoveCmd)
}
