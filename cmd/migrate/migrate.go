package migrate

import (
	"context"
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/fatboystring/tenantkit/cmd/cmdutil"
	"github.com/fatboystring/tenantkit/core/schemaname"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply migrations to tenant schemas",
	Long: `Apply pending migrations. With --schema only that tenant schema is
migrated; without it every tenant schema is brought up to date in turn.
Each schema tracks its own migration version.`,
	RunE: migrateCommand,
}

const (
	schemaFlag = "schema"
	configFlag = "config"
)

var migrateFlags = map[string]cobraflags.Flag{
	schemaFlag: &cobraflags.StringFlag{
		Name:  schemaFlag,
		Value: "",
		Usage: "Migrate only this tenant schema",
	},
	configFlag: &cobraflags.StringFlag{
		Name:  configFlag,
		Value: "",
		Usage: "Path to a config file (optional)",
	},
}

func NewMigrateCommand() *cobra.Command {
	cobraflags.RegisterMap(migrateCmd, migrateFlags)
	return migrateCmd
}

func migrateCommand(cmd *cobra.Command, _ []string) error {
	env, err := cmdutil.Setup(migrateFlags[configFlag].GetString())
	if err != nil {
		return err
	}
	defer env.Close()

	if env.Migrator == nil {
		return fmt.Errorf("no migrations directory at %s", env.Cfg.MigrationsDir)
	}

	ctx := cmd.Context()
	if err := env.Store.EnsureSchema(ctx); err != nil {
		return err
	}

	if schema := migrateFlags[schemaFlag].GetString(); schema != "" {
		return migrateOne(ctx, env, schema)
	}

	tenants, err := env.Store.List(ctx)
	if err != nil {
		return err
	}
	for _, t := range tenants {
		if t.SchemaName == schemaname.PublicSchema {
			continue
		}
		if err := migrateOne(ctx, env, t.SchemaName); err != nil {
			return err
		}
	}
	return nil
}

func migrateOne(ctx context.Context, env *cmdutil.Env, schema string) error {
	if err := env.Migrator.ApplyToSchema(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema %q: %w", schema, err)
	}
	fmt.Printf("Migrated schema %q\n", schema)
	return nil
}
