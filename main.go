package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fatboystring/tenantkit/cmd/create"
	"github.com/fatboystring/tenantkit/cmd/drop"
	"github.com/fatboystring/tenantkit/cmd/list"
	"github.com/fatboystring/tenantkit/cmd/migrate"
	"github.com/fatboystring/tenantkit/cmd/tables"
)

var rootCmd = &cobra.Command{
	Use:   "tenantkit",
	Short: "Schema-per-tenant management for PostgreSQL",
	Long: `tenantkit manages multi-tenant PostgreSQL databases where each tenant
lives in its own schema. It creates and drops tenant schemas, applies
per-schema migrations and maintains the tenant/domain routing tables in
the public schema.`,
}

func main() {
	rootCmd.AddCommand(create.NewCreateCommand())
	rootCmd.AddCommand(drop.NewDropCommand())
	rootCmd.AddCommand(list.NewListCommand())
	rootCmd.AddCommand(migrate.NewMigrateCommand())
	rootCmd.AddCommand(tables.NewTablesCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
