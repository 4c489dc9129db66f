package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/omnitenant/pkg/registry"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

var listFlags struct {
	isolation string
	format    string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tenants",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		var filter registry.Filter
		if listFlags.isolation != "" {
			iso, err := tenant.ParseIsolation(listFlags.isolation)
			if err != nil {
				return err
			}
			filter.Isolation = iso
		}

		tenants, err := a.store.List(ctx, filter)
		if err != nil {
			return err
		}
		if len(tenants) == 0 {
			cmd.Println("No tenants found.")
			return nil
		}

		switch listFlags.format {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tenants)
		case "csv":
			w := csv.NewWriter(cmd.OutOrStdout())
			if err := w.Write([]string{"id", "name", "isolation", "active", "created_at"}); err != nil {
				return err
			}
			for _, t := range tenants {
				if err := w.Write([]string{
					t.ID, t.Name, string(t.Isolation),
					fmt.Sprintf("%t", t.Active),
					t.CreatedAt.Format(time.RFC3339),
				}); err != nil {
					return err
				}
			}
			w.Flush()
			return w.Error()
		case "table":
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tISOLATION\tACTIVE\tCREATED")
			for _, t := range tenants {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
					t.ID, t.Name, t.Isolation, t.Active,
					t.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		default:
			return fmt.Errorf("unknown format %q: use table, json or csv", listFlags.format)
		}
	},
}

func init() {
	listCmd.Flags().StringVar(&listFlags.isolation, "isolation", "", "filter by isolation kind (database/schema/table/cache)")
	listCmd.Flags().StringVar(&listFlags.format, "format", "table", "output format: table, json or csv")
}
