package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/omnitenant/pkg/backend"
	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

var createFlags struct {
	name        string
	isolation   string
	dbHost      string
	dbPort      int
	dbName      string
	dbUser      string
	dbPassword  string
	schema      string
	cachePrefix string
	domains     []string
	provision   bool
	migrate     bool
	inactive    bool
}

var createCmd = &cobra.Command{
	Use:   "create <tenant-id>",
	Short: "Register a tenant and provision its isolated resources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		isolation, err := tenant.ParseIsolation(createFlags.isolation)
		if err != nil {
			return err
		}

		t := &tenant.Tenant{
			ID:        args[0],
			Name:      createFlags.name,
			Isolation: isolation,
			Active:    !createFlags.inactive,
		}
		if t.Name == "" {
			t.Name = t.ID
		}
		switch isolation {
		case tenant.IsolationDatabase:
			password := createFlags.dbPassword
			if password == "" && createFlags.dbUser != "" {
				password = randomPassword()
				cmd.Printf("Generated password for role %s: %s\n", createFlags.dbUser, password)
			}
			t.Config.Database = &tenant.DatabaseConfig{
				Host:     createFlags.dbHost,
				Port:     createFlags.dbPort,
				Name:     createFlags.dbName,
				User:     createFlags.dbUser,
				Password: password,
			}
			if t.Config.Database.Name == "" {
				t.Config.Database.Name = t.ID
			}
		case tenant.IsolationSchema:
			if createFlags.schema != "" {
				t.Config.Schema = &tenant.SchemaConfig{Name: createFlags.schema}
			}
		case tenant.IsolationCache:
			if createFlags.cachePrefix != "" {
				t.Config.Cache = &tenant.CacheConfig{Prefix: createFlags.cachePrefix}
			}
		}

		if err := a.createTenant(ctx, t, backend.CreateOptions{
			ProvisionDatabase: createFlags.provision,
			RunMigrations:     createFlags.migrate,
		}, createFlags.domains); err != nil {
			return err
		}
		cmd.Printf("Tenant %q created.\n", t.ID)
		return nil
	},
}

func init() {
	f := createCmd.Flags()
	f.StringVar(&createFlags.name, "name", "", "display name (defaults to the tenant id)")
	f.StringVar(&createFlags.isolation, "isolation", "schema", "isolation kind: database, schema, table or cache")
	f.StringVar(&createFlags.dbHost, "db-host", "localhost", "tenant database host (database isolation)")
	f.IntVar(&createFlags.dbPort, "db-port", 5432, "tenant database port")
	f.StringVar(&createFlags.dbName, "db-name", "", "tenant database name (defaults to the tenant id)")
	f.StringVar(&createFlags.dbUser, "db-user", "", "tenant database role")
	f.StringVar(&createFlags.dbPassword, "db-password", "", "tenant database password (generated when empty)")
	f.StringVar(&createFlags.schema, "schema", "", "schema name (schema isolation, defaults to the tenant id)")
	f.StringVar(&createFlags.cachePrefix, "cache-prefix", "", "cache key prefix (cache isolation, defaults to the tenant id)")
	f.StringSliceVar(&createFlags.domains, "domain", nil, "hostname to map to the tenant (repeatable)")
	f.BoolVar(&createFlags.provision, "provision-db", false, "create the physical database and role now")
	f.BoolVar(&createFlags.migrate, "migrate", false, "run tenant migrations after provisioning")
	f.BoolVar(&createFlags.inactive, "inactive", false, "register the tenant as inactive")
}

func randomPassword() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}
