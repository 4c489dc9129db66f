package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/omnitenant/pkg/backend"
	"github.com/dmitrymomot/omnitenant/pkg/registry"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

var applyFile string

// manifest is the declarative tenant definition consumed by apply.
type manifest struct {
	Tenants []manifestTenant `yaml:"tenants"`
}

type manifestTenant struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Isolation string        `yaml:"isolation"`
	Config    tenant.Config `yaml:"config"`
	Domains   []string      `yaml:"domains"`
	Provision bool          `yaml:"provision"`
	Migrate   bool          `yaml:"migrate"`
	Inactive  bool          `yaml:"inactive"`
}

var applyCmd = &cobra.Command{
	Use:   "apply -f tenants.yaml",
	Short: "Create tenants declaratively from a YAML manifest",
	Long: `Create every tenant listed in the manifest. Tenants that
already exist are skipped; failures are reported per tenant without
stopping the batch.

Manifest format:

    tenants:
      - id: acme
        name: Acme Corp
        isolation: schema
        config:
          schema:
            name: acme
        domains: [acme.example.com]
        migrate: true`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(applyFile)
		if err != nil {
			return err
		}
		var m manifest
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("parse manifest: %w", err)
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		failed := 0
		for _, mt := range m.Tenants {
			isolation, err := tenant.ParseIsolation(mt.Isolation)
			if err != nil {
				cmd.Printf("FAIL  %-20s %v\n", mt.ID, err)
				failed++
				continue
			}
			t := &tenant.Tenant{
				ID:        mt.ID,
				Name:      mt.Name,
				Isolation: isolation,
				Config:    mt.Config,
				Active:    !mt.Inactive,
			}
			if t.Name == "" {
				t.Name = t.ID
			}
			err = a.createTenant(ctx, t, backend.CreateOptions{
				ProvisionDatabase: mt.Provision,
				RunMigrations:     mt.Migrate,
			}, mt.Domains)
			switch {
			case errors.Is(err, registry.ErrTenantExists):
				cmd.Printf("SKIP  %-20s already exists\n", mt.ID)
			case err != nil:
				cmd.Printf("FAIL  %-20s %v\n", mt.ID, err)
				failed++
			default:
				cmd.Printf("OK    %s\n", mt.ID)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d tenant(s) failed", failed)
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVarP(&applyFile, "file", "f", "", "manifest file (required)")
	_ = applyCmd.MarkFlagRequired("file")
}
